// Package model holds the data types shared across ragmux's store, memory,
// agent, and transport layers.
package model

import "time"

// Session is one long-lived conversation between a user and the system.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Turn is one message (from the user or the assistant) within a Session.
type Turn struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Seq       int64     `json:"seq"`
	Role      string    `json:"role"` // "user" | "assistant"
	Content   string    `json:"content"`
	TaskUID   string    `json:"task_uid,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

const (
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Task is one Manager.Handle invocation: a classification, strategy, and a
// bounded run of the ReAct engine producing a final answer.
type Task struct {
	UID         string     `json:"uid"`
	SessionID   string     `json:"session_id"`
	UserID      string     `json:"user_id"`
	Query       string     `json:"query"`
	Category    string     `json:"category,omitempty"`
	Status      TaskStatus `json:"status"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ThinkingStep is one persisted Think or Act record of the ReAct engine,
// stored in gap-free order per Task.
type ThinkingStep struct {
	ID        string    `json:"id"`
	TaskUID   string    `json:"task_uid"`
	Seq       int64     `json:"seq"`
	Agent     string    `json:"agent"`
	Thought   string    `json:"thought,omitempty"`
	Action    string    `json:"action,omitempty"`
	Input     string    `json:"input,omitempty"`
	Output    string    `json:"output,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TraceType enumerates the kinds of events the debug ring buffer records.
type TraceType string

const (
	TraceAgentInput      TraceType = "agent_input"
	TraceAgentOutput     TraceType = "agent_output"
	TraceLLMRequest      TraceType = "llm_request"
	TraceLLMResponse     TraceType = "llm_response"
	TraceRouting         TraceType = "routing"
	TraceThinking        TraceType = "thinking"
	TraceError           TraceType = "error"
	TraceMemoryInjection TraceType = "memory_injection"
)

// DebugTrace is one entry in the bounded ring buffer (internal/debugtrace).
type DebugTrace struct {
	ID         int64          `json:"id"`
	SessionID  string         `json:"session_id,omitempty"`
	TaskUID    string         `json:"task_uid,omitempty"`
	AgentName  string         `json:"agent_name,omitempty"`
	Type       TraceType      `json:"type"`
	Content    string         `json:"content"`
	DurationMS int64          `json:"duration_ms,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// WorkingMemoryItem is one entry held in a task's in-process working memory.
type WorkingMemoryItem struct {
	Key         string
	Content     any
	Relevance   float64
	AccessCount int
	CreatedAt   time.Time
	LastAccess  time.Time
}

// EpisodeOutcome classifies how an episode turned out.
type EpisodeOutcome string

const (
	OutcomeSuccess EpisodeOutcome = "success"
	OutcomeFailure EpisodeOutcome = "failure"
	OutcomePartial EpisodeOutcome = "partial"
)

// Episode is one durable record of a completed task, used by the
// Experience Learner to recommend strategy overrides for similar queries.
type Episode struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Category    string         `json:"category"`
	Query       string         `json:"query"`
	Outcome     EpisodeOutcome `json:"outcome"`
	QualityScore float64       `json:"quality_score"`
	Lessons     []string       `json:"lessons,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Entity is a named thing the system has learned about a user (a person,
// project, preference target, etc).
type Entity struct {
	ID        string    `json:"id"` // deterministic: hash(type:lower(name):user_id)
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	Aliases   []string  `json:"aliases,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntityRelation is a directed edge between two entities belonging to the
// same user.
type EntityRelation struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Type     string `json:"type"`
}

// Preference is a cross-session user setting (key/value, no expiry).
type Preference struct {
	UserID    string    `json:"user_id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// KBCollection describes one knowledge-base collection in the vector store.
type KBCollection struct {
	Name       string   `json:"name"`
	Dimensions int      `json:"dimensions"`
	Metric     string   `json:"metric"`
	Skills     []string `json:"skills,omitempty"`
}

// ChatEventType enumerates the kinds of events streamed to WebSocket
// subscribers.
type ChatEventType string

const (
	EventThinking     ChatEventType = "thinking"
	EventProgress     ChatEventType = "progress"
	EventToolCall     ChatEventType = "tool_call"
	EventDelta        ChatEventType = "delta"
	EventFinal        ChatEventType = "final"
	EventError        ChatEventType = "error"
	EventCancelled    ChatEventType = "cancelled"
)

// ChatEvent is one message published on the per-session event bus and
// forwarded to WebSocket clients.
type ChatEvent struct {
	Type      ChatEventType  `json:"type"`
	SessionID string         `json:"session_id"`
	TaskUID   string         `json:"task_uid,omitempty"`
	Agent     string         `json:"agent,omitempty"`
	Data      string         `json:"data,omitempty"`
	Code      string         `json:"code,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Seq       int64          `json:"seq"`
	Timestamp time.Time      `json:"timestamp"`
}
