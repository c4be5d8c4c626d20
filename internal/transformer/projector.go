package transformer

import (
	"fmt"
	"time"

	"github.com/untoldecay/dataplane/internal/agent"
	"github.com/untoldecay/dataplane/internal/types"
)

// ToolTitles maps a known tool name to the thought title shown while
// it runs. An unmapped tool name is used
// verbatim, so a newly registered tool still projects something
// readable without a transformer change.
var ToolTitles = map[string]string{
	"search_data_catalog": "Searching data catalog",
	"create_metric":       "Creating metric",
	"create_dashboard":    "Assembling dashboard",
	"respond_to_user":     "Responding",
}

// ThoughtTitle resolves a tool name to its thought title.
func ThoughtTitle(toolName string) string {
	if t, ok := ToolTitles[toolName]; ok {
		return t
	}
	return toolName
}

// Sink fans one projected Event out to a live channel (every event,
// in-progress included) and a persistent channel (completed events
// only, per IsComplete). Both are buffered: a full channel drops the
// event instead of blocking the caller, since the transformer must
// never stall the agent loop it observes.
type Sink struct {
	ChatID     string
	Live       chan Event
	Persistent chan Event
}

// NewSink allocates a Sink with the given per-channel buffer depth.
// chatID is stamped onto every event Emit sends, completing the
// {chat_id, message_id} envelope a wire consumer correlates a turn's
// events by.
func NewSink(buffer int, chatID string) *Sink {
	return &Sink{
		ChatID:     chatID,
		Live:       make(chan Event, buffer),
		Persistent: make(chan Event, buffer),
	}
}

// Emit stamps e with the sink's chat id, then fans it out to Live
// unconditionally and to Persistent when e is complete, dropping
// rather than blocking on a full channel.
func (s *Sink) Emit(e Event) {
	e.ChatID = s.ChatID
	select {
	case s.Live <- e:
	default:
	}
	if IsComplete(e) {
		select {
		case s.Persistent <- e:
		default:
		}
	}
}

// Close shuts down both channels. Callers must stop calling Emit first.
func (s *Sink) Close() {
	close(s.Live)
	close(s.Persistent)
}

// ProjectToolStarted emits a tool call's loading thought the instant
// dispatch begins.
func ProjectToolStarted(sink *Sink, messageID string, call agent.ToolCall) {
	sink.Emit(ThoughtStarted(messageID, ThoughtTitle(call.Name)))
}

// ProjectToolResult emits a tool call's completed thought, carrying
// its result text as the thought's single "pill".
func ProjectToolResult(sink *Sink, messageID string, call agent.ToolCall, result agent.ToolResult, started, ended time.Time) {
	sink.Emit(ThoughtFinished(messageID, ThoughtTitle(call.Name), started, ended, []string{result.Content}))
}

// versionID synthesizes the stable identifier a file_snapshot event's
// version_id carries. VersionHistory keys versions by number alone
//, so version_id is derived rather than stored.
func versionID(assetID fmt.Stringer, versionNumber int) string {
	return fmt.Sprintf("%s:%d", assetID.String(), versionNumber)
}

// ProjectMetricSnapshot emits the completed file_snapshot for a
// create_metric/update_metric tool call.
func ProjectMetricSnapshot(sink *Sink, messageID string, m *types.MetricFile, versionNumber int) error {
	lines, err := RenderMetricSnapshot(m.Content)
	if err != nil {
		return err
	}
	sink.Emit(FileSnapshotFinished(messageID, FileTypeMetric, m.Name, versionNumber, versionID(m.ID, versionNumber), lines))
	return nil
}

// ProjectDashboardSnapshot is ProjectMetricSnapshot's dashboard
// counterpart.
func ProjectDashboardSnapshot(sink *Sink, messageID string, d *types.DashboardFile, versionNumber int) error {
	lines, err := RenderDashboardSnapshot(d.Content)
	if err != nil {
		return err
	}
	sink.Emit(FileSnapshotFinished(messageID, FileTypeDashboard, d.Name, versionNumber, versionID(d.ID, versionNumber), lines))
	return nil
}

// GroupPills buckets a batch of completed thought events by title, the
// "pills group results by kind for human scanning" rule.
func GroupPills(events []Event) map[string][]Event {
	out := map[string][]Event{}
	for _, e := range events {
		if e.Type != KindThought || e.Status != StatusCompleted {
			continue
		}
		out[e.ThoughtTitle] = append(out[e.ThoughtTitle], e)
	}
	return out
}
