package agents

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Registry holds every named Agent and the global concurrency gate all
// activations go through.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent

	sem *semaphore.Weighted

	interruptMu sync.Mutex
	interrupted map[string]bool
	interruptAll atomic.Bool
}

// NewRegistry builds an empty Registry with the given concurrency limit.
func NewRegistry(concurrency int) *Registry {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Registry{
		agents:      make(map[string]Agent),
		sem:         semaphore.NewWeighted(int64(concurrency)),
		interrupted: make(map[string]bool),
	}
}

// Register adds or replaces an agent.
func (r *Registry) Register(a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.Name()] = a
}

// Get looks up an agent by name.
func (r *Registry) Get(name string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	if !ok {
		return nil, &ErrUnknownAgent{Name: name}
	}
	return a, nil
}

// Names lists every registered agent name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.agents))
	for n := range r.agents {
		out = append(out, n)
	}
	return out
}

// Interrupt flips the cooperative cancellation flag for one agent, or
// every agent when name is "" or "all".
func (r *Registry) Interrupt(name string) {
	if name == "" || name == "all" {
		r.interruptAll.Store(true)
		return
	}
	r.interruptMu.Lock()
	r.interrupted[name] = true
	r.interruptMu.Unlock()
}

// ClearInterrupt resets every interrupt flag. Flags set by Interrupt stay
// set until this is called; nothing in the request pipeline calls it.
func (r *Registry) ClearInterrupt() {
	r.interruptAll.Store(false)
	r.interruptMu.Lock()
	r.interrupted = make(map[string]bool)
	r.interruptMu.Unlock()
}

// Interrupted reports whether name (or the whole registry) has been
// signalled to stop.
func (r *Registry) Interrupted(name string) bool {
	if r.interruptAll.Load() {
		return true
	}
	r.interruptMu.Lock()
	defer r.interruptMu.Unlock()
	return r.interrupted[name]
}

// Activate acquires a concurrency slot, runs the agent, and releases the
// slot, recovering any panic from Handle into an error so one misbehaving
// agent never takes down the process.
func (r *Registry) Activate(ctx context.Context, name string, tc *TaskContext) (res Result, err error) {
	if r.Interrupted(name) {
		return Result{}, context.Canceled
	}

	agent, err := r.Get(name)
	if err != nil {
		return Result{}, err
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return Result{}, err
	}
	defer r.sem.Release(1)

	defer func() {
		if p := recover(); p != nil {
			err = &panicError{agent: name, value: p}
		}
	}()

	return agent.Handle(ctx, tc)
}

type panicError struct {
	agent string
	value any
}

func (e *panicError) Error() string {
	return "agents: agent " + e.agent + " panicked: " + formatPanic(e.value)
}

func formatPanic(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return "unknown panic"
}
