// Package agents implements the Agent Registry and the concurrency gate
// bounding how many agents can run at once, plus the built-in specialist
// agents the strategy adapter routes to. The registry and its bounded
// dispatch loop generalize a tool-call naming/dispatch idiom from "tool
// calls" to "named agent activations" behind a semaphore.
package agents

import (
	"context"
	"fmt"
)

// TaskContext is what the Manager/ReAct engine hands an Agent on each
// activation: the query plus whatever context memory has assembled.
type TaskContext struct {
	SessionID string
	TaskUID   string
	UserID    string
	Query     string
	Context   string // assembled working/episodic/preference context
	History   []string
}

// Result is the outcome of one agent activation.
type Result struct {
	Output  string
	Sources []string
}

// Agent is one named capability the Manager/ReAct engine can invoke.
type Agent interface {
	Name() string
	Capabilities() []string
	Handle(ctx context.Context, tc *TaskContext) (Result, error)
}

// Func adapts a plain function to the Agent interface for simple agents.
type Func struct {
	AgentName  string
	AgentCaps  []string
	HandleFunc func(ctx context.Context, tc *TaskContext) (Result, error)
}

func (f *Func) Name() string           { return f.AgentName }
func (f *Func) Capabilities() []string { return f.AgentCaps }
func (f *Func) Handle(ctx context.Context, tc *TaskContext) (Result, error) {
	return f.HandleFunc(ctx, tc)
}

// ErrUnknownAgent is returned by Registry.Get when no agent is registered
// under the requested name.
type ErrUnknownAgent struct{ Name string }

func (e *ErrUnknownAgent) Error() string { return fmt.Sprintf("agents: unknown agent %q", e.Name) }
