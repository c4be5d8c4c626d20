package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	maxStreamRetries  = 3
	initialBackoff    = 1 * time.Second
	softRequestTimeout = 60 * time.Second
	hardRequestTimeout = 180 * time.Second
)

// ErrAPIKeyRequired means an Anthropic key is needed and neither the
// constructor argument nor the environment variable supplied one.
var ErrAPIKeyRequired = errors.New("API key required")

// AnthropicClient implements LLMClient against the real Anthropic API,
// with retry/backoff around a streamed, tool-calling chat loop.
type AnthropicClient struct {
	client     anthropic.Client
	maxRetries int
	backoff    time.Duration
}

// NewAnthropicClient resolves the API key the same way everywhere in
// this codebase: env var ANTHROPIC_API_KEY takes precedence over the
// explicit argument.
func NewAnthropicClient(apiKey string) (*AnthropicClient, error) {
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or provide it explicitly", ErrAPIKeyRequired)
	}
	return &AnthropicClient{
		client:     anthropic.NewClient(option.WithAPIKey(apiKey)),
		maxRetries: maxStreamRetries,
		backoff:    initialBackoff,
	}, nil
}

func toAnthropicTool(t ToolSchema) anthropic.ToolParam {
	schema, _ := json.Marshal(t.InputSchema)
	var props anthropic.ToolInputSchemaParam
	_ = json.Unmarshal(schema, &props)
	return anthropic.ToolParam{
		Name:        t.Name,
		Description: anthropic.String(t.Description),
		InputSchema: props,
	}
}

func toAnthropicMessages(history []Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, m := range history {
		switch m.Role {
		case RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case RoleAssistant:
			blocks := []anthropic.ContentBlockParamUnion{}
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, json.RawMessage(tc.Input), tc.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		case RoleTool:
			if m.ToolResult != nil {
				out = append(out, anthropic.NewUserMessage(
					anthropic.NewToolResultBlock(m.ToolResult.ToolCallID, m.ToolResult.Content, m.ToolResult.IsError),
				))
			}
		}
	}
	return out
}

// system extracts the single developer/system message, which Anthropic
// carries as a top-level field rather than a history entry.
func system(history []Message) string {
	for _, m := range history {
		if m.Role == RoleDeveloper {
			return m.Content
		}
	}
	return ""
}

// Stream implements LLMClient. Connection-level retries use exponential
// backoff; once the stream opens successfully, deltas are forwarded
// until the provider closes it.
func (c *AnthropicClient) Stream(ctx context.Context, modelName string, history []Message, tools []ToolSchema) (<-chan StreamDelta, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelName),
		MaxTokens: 4096,
		System:    []anthropic.TextBlockParam{{Text: system(history)}},
		Messages:  toAnthropicMessages(history),
	}
	for _, t := range tools {
		toolParam := toAnthropicTool(t)
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{OfTool: &toolParam})
	}

	softCtx, cancelSoft := context.WithTimeout(ctx, softRequestTimeout)
	hardCtx, cancelHard := context.WithTimeout(ctx, hardRequestTimeout)

	var stream *anthropic.Stream[anthropic.MessageStreamEventUnion]
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.backoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-softCtx.Done():
				cancelSoft()
				cancelHard()
				return nil, softCtx.Err()
			}
		}
		stream = c.client.Messages.NewStreaming(hardCtx, params)
		if stream.Err() == nil {
			break
		}
		lastErr = stream.Err()
		if !isRetryable(lastErr) {
			cancelSoft()
			cancelHard()
			return nil, fmt.Errorf("non-retryable error: %w", lastErr)
		}
	}
	if stream == nil || stream.Err() != nil {
		cancelSoft()
		cancelHard()
		if lastErr == nil {
			lastErr = errors.New("anthropic stream failed with no error detail")
		}
		return nil, fmt.Errorf("failed after %d attempts: %w", c.maxRetries+1, lastErr)
	}

	out := make(chan StreamDelta)
	go func() {
		defer close(out)
		defer cancelSoft()
		defer cancelHard()

		var acc anthropic.Message
		toolNames := map[int64]string{}

		for stream.Next() {
			event := stream.Current()
			if err := acc.Accumulate(event); err != nil {
				out <- StreamDelta{Err: err}
				return
			}

			switch variant := event.AsAny().(type) {
			case anthropic.ContentBlockStartEvent:
				if tu, ok := variant.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
					toolNames[variant.Index] = tu.Name
					out <- StreamDelta{ToolCallStart: &ToolCall{ID: tu.ID, Name: tu.Name}}
				}
			case anthropic.ContentBlockDeltaEvent:
				switch delta := variant.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					out <- StreamDelta{TextDelta: delta.Text}
				case anthropic.InputJSONDelta:
					out <- StreamDelta{ToolInputDelta: &ToolInputDelta{PartialJSON: delta.PartialJSON}}
				}
			case anthropic.MessageDeltaEvent:
				if variant.Delta.StopReason != "" {
					out <- StreamDelta{StopReason: string(variant.Delta.StopReason)}
				}
			}
		}
		if err := stream.Err(); err != nil {
			out <- StreamDelta{Err: err}
			return
		}

		for _, block := range acc.Content {
			if tu, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
				out <- StreamDelta{ToolCallDone: &ToolCall{ID: tu.ID, Name: tu.Name, Input: json.RawMessage(tu.Input)}}
			}
		}
	}()
	return out, nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}
