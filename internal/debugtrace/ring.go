// Package debugtrace implements the bounded, in-process debug trace ring
// buffer: a fixed-capacity FIFO that drops its oldest entry once full,
// guarded by one mutex around append and the id counter.
package debugtrace

import (
	"sort"
	"sync"
	"time"

	"ragmux/internal/model"
)

// Ring is a fixed-capacity, thread-safe FIFO of model.DebugTrace entries.
// It never reorders: Record appends are always chronological, and eviction
// always removes the oldest entry first.
type Ring struct {
	mu       sync.Mutex
	buf      []model.DebugTrace
	cap      int
	nextID   int64
	truncate int
}

// New builds a Ring with the given capacity and per-entry content
// truncation ceiling (in bytes of the Content field).
func New(capacity, truncateBytes int) *Ring {
	if capacity <= 0 {
		capacity = 2000
	}
	if truncateBytes <= 0 {
		truncateBytes = 2000
	}
	return &Ring{
		buf:      make([]model.DebugTrace, 0, capacity),
		cap:      capacity,
		truncate: truncateBytes,
	}
}

// Record appends one trace, evicting the oldest entry if the ring is full.
func (r *Ring) Record(t model.DebugTrace) model.DebugTrace {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	t.ID = r.nextID
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	t.Content = truncate(t.Content, r.truncate)

	if len(r.buf) >= r.cap {
		// Drop oldest; shift left. Capacity is small enough (~2000) that
		// this is cheap compared to a ring index and avoids off-by-one bugs
		// in the query methods below.
		copy(r.buf, r.buf[1:])
		r.buf[len(r.buf)-1] = t
	} else {
		r.buf = append(r.buf, t)
	}
	return t
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...[truncated]"
}

// Filter narrows a Query by any combination of session/task/agent/type.
type Filter struct {
	SessionID string
	TaskUID   string
	AgentName string
	Type      model.TraceType
	Limit     int
}

// Query returns matching traces, most recent first, bounded by f.Limit
// (0 means unbounded).
func (r *Ring) Query(f Filter) []model.DebugTrace {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.DebugTrace, 0, len(r.buf))
	for i := len(r.buf) - 1; i >= 0; i-- {
		t := r.buf[i]
		if f.SessionID != "" && t.SessionID != f.SessionID {
			continue
		}
		if f.TaskUID != "" && t.TaskUID != f.TaskUID {
			continue
		}
		if f.AgentName != "" && t.AgentName != f.AgentName {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		out = append(out, t)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}

// TaskFlow summarizes every trace recorded for one task: chronological
// order, the set of agents involved, and total recorded duration.
type TaskFlow struct {
	TaskUID       string
	Traces        []model.DebugTrace
	AgentsInvolved []string
	TotalDurationMS int64
}

// GetTaskFlow reconstructs the chronological flow of one task.
func (r *Ring) GetTaskFlow(taskUID string) TaskFlow {
	traces := r.Query(Filter{TaskUID: taskUID})
	sort.Slice(traces, func(i, j int) bool { return traces[i].Timestamp.Before(traces[j].Timestamp) })

	seen := map[string]bool{}
	var agents []string
	var total int64
	for _, t := range traces {
		if t.AgentName != "" && !seen[t.AgentName] {
			seen[t.AgentName] = true
			agents = append(agents, t.AgentName)
		}
		total += t.DurationMS
	}
	return TaskFlow{TaskUID: taskUID, Traces: traces, AgentsInvolved: agents, TotalDurationMS: total}
}

// Len reports the current number of retained traces.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}
