package debugtrace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragmux/internal/model"
)

func TestRecord_AssignsIncrementingIDs(t *testing.T) {
	r := New(10, 100)
	a := r.Record(model.DebugTrace{Content: "a"})
	b := r.Record(model.DebugTrace{Content: "b"})
	assert.Equal(t, a.ID+1, b.ID)
}

func TestRecord_EvictsOldestOnceAtCapacity(t *testing.T) {
	r := New(2, 100)
	r.Record(model.DebugTrace{Content: "first"})
	r.Record(model.DebugTrace{Content: "second"})
	r.Record(model.DebugTrace{Content: "third"})

	require.Equal(t, 2, r.Len())
	all := r.Query(Filter{})
	contents := []string{all[0].Content, all[1].Content}
	assert.NotContains(t, contents, "first")
	assert.Contains(t, contents, "second")
	assert.Contains(t, contents, "third")
}

func TestRecord_TruncatesContentOverCeiling(t *testing.T) {
	r := New(10, 5)
	tr := r.Record(model.DebugTrace{Content: "0123456789"})
	assert.Equal(t, "01234...[truncated]", tr.Content)
}

func TestQuery_FiltersBySessionAndReturnsMostRecentFirst(t *testing.T) {
	r := New(10, 100)
	r.Record(model.DebugTrace{SessionID: "s1", Content: "one"})
	r.Record(model.DebugTrace{SessionID: "s2", Content: "two"})
	r.Record(model.DebugTrace{SessionID: "s1", Content: "three"})

	out := r.Query(Filter{SessionID: "s1"})
	require.Len(t, out, 2)
	assert.Equal(t, "three", out[0].Content)
	assert.Equal(t, "one", out[1].Content)
}

func TestQuery_RespectsLimit(t *testing.T) {
	r := New(10, 100)
	for i := 0; i < 5; i++ {
		r.Record(model.DebugTrace{SessionID: "s1", Content: "x"})
	}
	out := r.Query(Filter{SessionID: "s1", Limit: 2})
	assert.Len(t, out, 2)
}

func TestGetTaskFlow_OrdersChronologicallyAndSumsDuration(t *testing.T) {
	r := New(10, 100)
	now := time.Now()
	r.Record(model.DebugTrace{TaskUID: "t1", AgentName: "agent_b", Timestamp: now.Add(2 * time.Second), DurationMS: 20})
	r.Record(model.DebugTrace{TaskUID: "t1", AgentName: "agent_a", Timestamp: now, DurationMS: 10})

	flow := r.GetTaskFlow("t1")
	require.Len(t, flow.Traces, 2)
	assert.Equal(t, "agent_a", flow.Traces[0].AgentName)
	assert.Equal(t, "agent_b", flow.Traces[1].AgentName)
	assert.Equal(t, []string{"agent_a", "agent_b"}, flow.AgentsInvolved)
	assert.Equal(t, int64(30), flow.TotalDurationMS)
}

func TestRecordAgentOutput_SetsTypeAndDuration(t *testing.T) {
	r := New(10, 100)
	r.RecordAgentOutput("s1", "t1", "agent_a", "done", 150*time.Millisecond)
	out := r.Query(Filter{Type: model.TraceAgentOutput})
	require.Len(t, out, 1)
	assert.Equal(t, int64(150), out[0].DurationMS)
	assert.Equal(t, "agent_a", out[0].AgentName)
}

func TestRecordRouting_CarriesMetadata(t *testing.T) {
	r := New(10, 100)
	r.RecordRouting("s1", "t1", "classified as simple_chat", map[string]any{"category": "simple_chat"})
	out := r.Query(Filter{Type: model.TraceRouting})
	require.Len(t, out, 1)
	assert.Equal(t, "simple_chat", out[0].Metadata["category"])
}
