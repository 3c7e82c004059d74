// Package working implements the per-task working memory: a capacity-bounded
// LRU-ish store scored by a 0.7*relevance + 0.3*recency blend, capacity=20
// by default, evicting the least-relevant entry once full.
package working

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"ragmux/internal/model"
)

// Memory is one task's working memory. It is cleared whenever
// SetCurrentTask is called with a new task id, resetting state at task
// boundaries.
type Memory struct {
	mu          sync.Mutex
	capacity    int
	currentTask string
	order       []string // insertion/access order, oldest first
	items       map[string]*model.WorkingMemoryItem
}

// New builds a Memory with the given capacity (default 20 if <= 0).
func New(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 20
	}
	return &Memory{capacity: capacity, items: make(map[string]*model.WorkingMemoryItem)}
}

// SetCurrentTask clears all items when switching to a different task id.
func (m *Memory) SetCurrentTask(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if taskID != m.currentTask {
		m.currentTask = taskID
		m.order = nil
		m.items = make(map[string]*model.WorkingMemoryItem)
	}
}

// Store inserts or updates an item, evicting the least-relevant entry if
// the memory is at capacity.
func (m *Memory) Store(key string, content any, relevance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if existing, ok := m.items[key]; ok {
		existing.Content = content
		existing.Relevance = relevance
		existing.LastAccess = now
		m.touch(key)
		return
	}

	if len(m.items) >= m.capacity {
		m.evictLeastRelevant()
	}
	m.items[key] = &model.WorkingMemoryItem{
		Key: key, Content: content, Relevance: relevance,
		CreatedAt: now, LastAccess: now,
	}
	m.order = append(m.order, key)
}

// Get retrieves an item, bumping its access count/time and moving it to
// the most-recently-used position.
func (m *Memory) Get(key string) (model.WorkingMemoryItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if !ok {
		return model.WorkingMemoryItem{}, false
	}
	item.AccessCount++
	item.LastAccess = time.Now()
	m.touch(key)
	return *item, true
}

func (m *Memory) touch(key string) {
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.order = append(m.order, key)
}

// GetAll returns every current item, in insertion/access order.
func (m *Memory) GetAll() []model.WorkingMemoryItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.WorkingMemoryItem, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, *m.items[k])
	}
	return out
}

// GetTopRelevant returns the n items with the highest combined score.
func (m *Memory) GetTopRelevant(n int) []model.WorkingMemoryItem {
	if n <= 0 {
		n = 5
	}
	all := m.GetAll()
	sort.Slice(all, func(i, j int) bool {
		return combinedScore(all[i]) > combinedScore(all[j])
	})
	if n > len(all) {
		n = len(all)
	}
	return all[:n]
}

// UpdateRelevance changes an item's relevance without touching its
// access/recency bookkeeping.
func (m *Memory) UpdateRelevance(key string, relevance float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[key]
	if !ok {
		return false
	}
	item.Relevance = relevance
	return true
}

// Remove deletes an item.
func (m *Memory) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Clear removes every item.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = nil
	m.items = make(map[string]*model.WorkingMemoryItem)
}

// Len reports the current item count.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Contains reports whether key is currently held.
func (m *Memory) Contains(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[key]
	return ok
}

// IsEmpty reports whether the memory holds no items.
func (m *Memory) IsEmpty() bool { return m.Len() == 0 }

// CurrentTaskID reports the task this memory is currently scoped to.
func (m *Memory) CurrentTaskID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTask
}

// evictLeastRelevant removes the item with the lowest combined
// relevance*0.7 + recency*0.3 score. Must be called with m.mu held.
func (m *Memory) evictLeastRelevant() {
	if len(m.order) == 0 {
		return
	}
	worstKey := m.order[0]
	worstScore := combinedScore(*m.items[worstKey])
	for _, k := range m.order[1:] {
		s := combinedScore(*m.items[k])
		if s < worstScore {
			worstScore = s
			worstKey = k
		}
	}
	delete(m.items, worstKey)
	for i, k := range m.order {
		if k == worstKey {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// combinedScore is the eviction formula:
// relevance*0.7 + recency_factor*0.3, recency_factor = 1/(1+age_seconds/60).
func combinedScore(item model.WorkingMemoryItem) float64 {
	ageSeconds := time.Since(item.LastAccess).Seconds()
	recency := 1.0 / (1.0 + ageSeconds/60.0)
	return item.Relevance*0.7 + recency*0.3
}

// ToContextString renders the top-10 items as a bullet list suitable for
// injection into an LLM prompt, truncating any dict/string content longer
// than 200 characters.
func (m *Memory) ToContextString() string {
	top := m.GetTopRelevant(10)
	if len(top) == 0 {
		return ""
	}
	var b strings.Builder
	for _, item := range top {
		b.WriteString(fmt.Sprintf("- [%s] %s\n", item.Key, truncate(fmt.Sprint(item.Content), 200)))
	}
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
