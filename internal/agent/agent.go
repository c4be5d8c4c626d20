// Package agent implements the mode-driven tool-calling runtime (spec
// §4.F): a tool registry gated by state predicates, a streaming chat
// loop, and terminating-tool detection.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role tags one message-history entry.
type Role string

const (
	RoleDeveloper Role = "developer"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// MessageStatus tracks an assistant message's streaming progress.
type MessageStatus string

const (
	StatusInProgress MessageStatus = "in_progress"
	StatusComplete   MessageStatus = "complete"
)

// ToolCall is one tool invocation the model requested.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResult is the outcome of dispatching a ToolCall.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// Message is one role-tagged history entry.
type Message struct {
	ID         string
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolResult *ToolResult
	Status     MessageStatus
	IsError    bool
}

// Observer lets a caller watch one turn's tool dispatch as it happens,
// independent of how those observations get rendered or persisted
// downstream. Implementations must not block: the dispatch loop calls
// them synchronously between tool calls.
type Observer interface {
	ToolStarted(messageID string, call ToolCall)
	ToolFinished(messageID string, call ToolCall, result ToolResult, started, ended time.Time)
	AssetCreated(messageID string, snapshot AssetSnapshot)
}

// StateSetter is the only way a tool executor may mutate agent state
//.
type StateSetter func(key string, value any)

// ToolExecutor runs one tool call against a state snapshot.
type ToolExecutor func(ctx context.Context, input json.RawMessage, state map[string]any, set StateSetter) (string, error)

// EnablementPredicate decides whether a tool is currently selectable,
// purely from state.
type EnablementPredicate func(state map[string]any) bool

// ToolSchema is the wire-level tool description sent to the model.
type ToolSchema struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Tool bundles a schema with its executor and enablement predicate.
type Tool struct {
	Schema   ToolSchema
	Executor ToolExecutor
	Enabled  EnablementPredicate
}

// ToolLoader re-populates a Registry at the start of each turn (spec
// §4.F step 1).
type ToolLoader func(reg *Registry)

// Mode is the {prompt_template, model_name, tool_loader,
// terminating_tool_names} tuple a mode is built from.
type Mode struct {
	Name                 string
	PromptTemplate       string
	ModelName            string
	ToolLoader           ToolLoader
	TerminatingToolNames map[string]bool
}

// Registry holds the tools enabled for the current turn.
type Registry struct {
	mu    sync.Mutex
	tools map[string]*Tool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: map[string]*Tool{}}
}

// Clear empties the registry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = map[string]*Tool{}
}

// Register adds or replaces one tool.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Schema.Name] = &t
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tools[name]
	return t, ok
}

// Enabled returns the schemas of every tool whose predicate passes
// against state, predicate-filtered "at this instant".
func (r *Registry) Enabled(state map[string]any) []ToolSchema {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ToolSchema, 0, len(r.tools))
	for _, t := range r.tools {
		if t.Enabled == nil || t.Enabled(state) {
			out = append(out, t.Schema)
		}
	}
	return out
}

// State is the agent's shared state map, guarded by a single-writer
// lock.
type State struct {
	mu     sync.Mutex
	values map[string]any
}

// NewState returns an empty state map.
func NewState() *State {
	return &State{values: map[string]any{}}
}

// Snapshot returns a shallow copy safe for a tool executor to read
// without holding the lock across its own I/O.
func (s *State) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Set is the only mutation path, handed to tool executors as a
// StateSetter.
func (s *State) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// StreamDelta is one unit the LLMClient emits while streaming a turn.
// Exactly one of the fields beyond Err is meaningful per delta.
type StreamDelta struct {
	TextDelta      string
	ToolCallStart  *ToolCall // id + name; Input not yet populated
	ToolInputDelta *ToolInputDelta
	ToolCallDone   *ToolCall // complete with final Input
	StopReason     string    // set on the final delta of a turn
	Err            error
}

// ToolInputDelta is one chunk of a tool call's streamed JSON input.
type ToolInputDelta struct {
	ToolCallID  string
	PartialJSON string
}

// LLMClient streams one assistant turn given the history and the
// tools enabled at this instant.
type LLMClient interface {
	Stream(ctx context.Context, modelName string, history []Message, tools []ToolSchema) (<-chan StreamDelta, error)
}

// Agent runs one mode's tool-calling loop over a persistent message
// history.
type Agent struct {
	Mode     Mode
	LLM      LLMClient
	Registry *Registry
	State    *State
	History  []Message
	Observer Observer // optional; nil means no one is watching this turn

	turnMu sync.Mutex // one turn runs at a time per agent
}

// New constructs an Agent for the given mode.
func New(mode Mode, llm LLMClient) *Agent {
	return &Agent{
		Mode:     mode,
		LLM:      llm,
		Registry: NewRegistry(),
		State:    NewState(),
	}
}

// RunTurn implements the turn lifecycle for one user
// message, looping internally until a terminating tool fires, a
// provider error ends the step, or ctx is cancelled. A step whose reply
// calls no terminating tool does not end the turn: the loop streams
// again with the updated history.
func (a *Agent) RunTurn(ctx context.Context, userMessage string, datasets string) error {
	a.turnMu.Lock()
	defer a.turnMu.Unlock()

	a.History = append(a.History, Message{Role: RoleUser, Content: userMessage})

	// Step 1: clear and reload the tool registry for this mode.
	a.Registry.Clear()
	if a.Mode.ToolLoader != nil {
		a.Mode.ToolLoader(a.Registry)
	}

	// Step 2: render the prompt template.
	prompt, err := renderPrompt(a.Mode.PromptTemplate, datasets)
	if err != nil {
		return fmt.Errorf("render prompt: %w", err)
	}
	systemHistory := append([]Message{{Role: RoleDeveloper, Content: prompt}}, a.History...)

	for {
		select {
		case <-ctx.Done():
			a.History = append(a.History, Message{Role: RoleAssistant, Content: ctx.Err().Error(), IsError: true, Status: StatusComplete})
			return ctx.Err()
		default:
		}

		terminated, err := a.runStreamingStep(ctx, systemHistory)
		if err != nil {
			return err
		}
		// Step 5: reassemble the full history including whatever this
		// step appended, for the next iteration's system preamble.
		systemHistory = append([]Message{systemHistory[0]}, a.History...)
		if terminated {
			return nil
		}
	}
}

// runStreamingStep implements lifecycle steps 3-5 for a single
// streamed assistant turn. It returns true if a terminating tool
// fired.
func (a *Agent) runStreamingStep(ctx context.Context, history []Message) (bool, error) {
	tools := a.Registry.Enabled(a.State.Snapshot())

	deltas, err := a.LLM.Stream(ctx, a.Mode.ModelName, history, tools)
	if err != nil {
		a.History = append(a.History, Message{Role: RoleAssistant, Content: err.Error(), IsError: true, Status: StatusComplete})
		return true, nil // step 6: provider error ends the turn, not the process
	}

	assistant := Message{ID: uuid.New().String(), Role: RoleAssistant, Status: StatusInProgress}
	a.History = append(a.History, assistant)
	idx := len(a.History) - 1

	pending := map[string]*ToolCall{}
	var completedCalls []ToolCall
	stopReason := ""

	for delta := range deltas {
		select {
		case <-ctx.Done():
			a.History[idx].Status = StatusComplete
			a.History = append(a.History, Message{Role: RoleAssistant, Content: ctx.Err().Error(), IsError: true, Status: StatusComplete})
			return true, nil
		default:
		}

		switch {
		case delta.Err != nil:
			a.History[idx].Status = StatusComplete
			a.History = append(a.History, Message{Role: RoleAssistant, Content: delta.Err.Error(), IsError: true, Status: StatusComplete})
			return true, nil
		case delta.TextDelta != "":
			a.History[idx].Content += delta.TextDelta
		case delta.ToolCallStart != nil:
			tc := *delta.ToolCallStart
			pending[tc.ID] = &tc
		case delta.ToolInputDelta != nil:
			if tc, ok := pending[delta.ToolInputDelta.ToolCallID]; ok {
				tc.Input = append(tc.Input, []byte(delta.ToolInputDelta.PartialJSON)...)
			}
		case delta.ToolCallDone != nil:
			done := *delta.ToolCallDone
			pending[done.ID] = &done
			completedCalls = append(completedCalls, done)
		}
		if delta.StopReason != "" {
			stopReason = delta.StopReason
		}
	}
	_ = stopReason
	a.History[idx].Status = StatusComplete
	a.History[idx].ToolCalls = completedCalls

	// Step 4 dispatch: synchronously run each completed tool call and
	// append its result, mutating state through the setter only.
	messageID := a.History[idx].ID
	terminating := false
	for _, call := range completedCalls {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		default:
		}

		if a.Observer != nil {
			a.Observer.ToolStarted(messageID, call)
		}
		started := time.Now()
		result := a.dispatch(ctx, call)
		if a.Observer != nil {
			a.Observer.ToolFinished(messageID, call, result, started, time.Now())
			if snap, ok := a.State.Snapshot()[assetSnapshotKey].(AssetSnapshot); ok {
				a.Observer.AssetCreated(messageID, snap)
				a.State.Set(assetSnapshotKey, nil)
			}
		}
		a.History = append(a.History, Message{Role: RoleTool, ToolResult: &result, Status: StatusComplete, IsError: result.IsError})

		if a.Mode.TerminatingToolNames[call.Name] {
			terminating = true
		}
	}

	return terminating, nil
}

func (a *Agent) dispatch(ctx context.Context, call ToolCall) ToolResult {
	tool, ok := a.Registry.Get(call.Name)
	if !ok {
		return ToolResult{ToolCallID: call.ID, Content: fmt.Sprintf("unknown tool %q", call.Name), IsError: true}
	}
	snapshot := a.State.Snapshot()
	output, err := tool.Executor(ctx, call.Input, snapshot, a.State.Set)
	if err != nil {
		return ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
	}
	return ToolResult{ToolCallID: call.ID, Content: output}
}
