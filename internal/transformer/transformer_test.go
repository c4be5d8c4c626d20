package transformer

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/untoldecay/dataplane/internal/agent"
	"github.com/untoldecay/dataplane/internal/types"
)

func TestTextChunkIsNotComplete(t *testing.T) {
	e := TextChunk("m1", "partial ans")
	require.False(t, IsComplete(e))
}

func TestTextCompleteIsComplete(t *testing.T) {
	e := TextComplete("m1", "final answer")
	require.True(t, IsComplete(e))
}

func TestThoughtOnlyCompletesOnFinish(t *testing.T) {
	started := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	loading := ThoughtStarted("m1", "Searching data catalog")
	require.False(t, IsComplete(loading))

	finished := ThoughtFinished("m1", "Searching data catalog", started, started.Add(2500*time.Millisecond), []string{"columns: id, total"})
	require.True(t, IsComplete(finished))
	require.Equal(t, "2.5s", finished.ThoughtSecondaryTitle)
}

func TestFileSnapshotOnlyCompletesOnFinish(t *testing.T) {
	loading := FileSnapshotStarted("m1", FileTypeMetric, "revenue")
	require.False(t, IsComplete(loading))

	finished := FileSnapshotFinished("m1", FileTypeMetric, "revenue", 2, "v2", []FileLine{{LineNumber: 1, Text: "name: revenue"}})
	require.True(t, IsComplete(finished))
}

func TestSinkForwardsCompletedEventsOnlyToPersistent(t *testing.T) {
	sink := NewSink(4, "chat-1")
	sink.Emit(TextChunk("m1", "wor"))
	sink.Emit(TextComplete("m1", "world"))

	require.Len(t, sink.Live, 2)
	require.Len(t, sink.Persistent, 1)

	persisted := <-sink.Persistent
	require.Equal(t, "world", persisted.Message)
	require.Equal(t, "chat-1", persisted.ChatID)
}

func TestSinkEmitDropsRatherThanBlocksOnFullChannel(t *testing.T) {
	sink := NewSink(1, "chat-1")
	sink.Emit(TextComplete("m1", "first"))
	sink.Emit(TextComplete("m1", "second")) // both channels already full; must not block

	require.Len(t, sink.Live, 1)
	require.Len(t, sink.Persistent, 1)
}

func TestProjectToolLifecycleEmitsLoadingThenCompleted(t *testing.T) {
	sink := NewSink(4, "chat-1")
	call := agent.ToolCall{ID: "1", Name: "search_data_catalog"}
	started := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	ProjectToolStarted(sink, "m1", call)
	ProjectToolResult(sink, "m1", call, agent.ToolResult{ToolCallID: "1", Content: "columns: id, total"}, started, started.Add(time.Second))

	first := <-sink.Live
	require.Equal(t, StatusLoading, first.Status)
	require.Empty(t, sink.Persistent)

	second := <-sink.Live
	require.Equal(t, StatusCompleted, second.Status)
	require.Equal(t, []string{"columns: id, total"}, second.Thoughts)
	require.Equal(t, "Searching data catalog", second.ThoughtTitle)
}

func TestThoughtTitleFallsBackToToolName(t *testing.T) {
	require.Equal(t, "custom_tool", ThoughtTitle("custom_tool"))
	require.Equal(t, "Creating metric", ThoughtTitle("create_metric"))
}

func TestProjectMetricSnapshotRendersYAMLLines(t *testing.T) {
	sink := NewSink(4, "chat-1")
	m := &types.MetricFile{
		ID:   uuid.New(),
		Name: "revenue",
		Content: types.MetricYml{
			Name: "revenue",
			SQL:  "select sum(total) from orders",
		},
	}

	err := ProjectMetricSnapshot(sink, "m1", m, 2)
	require.NoError(t, err)

	e := <-sink.Live
	require.Equal(t, KindFileSnapshot, e.Type)
	require.Equal(t, FileTypeMetric, e.FileType)
	require.Equal(t, 2, e.VersionNumber)
	require.Contains(t, e.VersionID, m.ID.String())
	require.NotEmpty(t, e.File)
	require.Equal(t, 1, e.File[0].LineNumber)
}

func TestGroupPillsBucketsByTitle(t *testing.T) {
	events := []Event{
		ThoughtFinished("m1", "Searching data catalog", time.Time{}, time.Time{}, []string{"a"}),
		ThoughtFinished("m1", "Searching data catalog", time.Time{}, time.Time{}, []string{"b"}),
		ThoughtFinished("m1", "Creating metric", time.Time{}, time.Time{}, []string{"c"}),
		ThoughtStarted("m1", "Creating metric"), // in-progress, must be excluded
	}

	pills := GroupPills(events)
	require.Len(t, pills["Searching data catalog"], 2)
	require.Len(t, pills["Creating metric"], 1)
}
