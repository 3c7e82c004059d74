// Package memory composes the working/episodic/entity/preferences
// subsystems behind one BuildContext entry point.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"ragmux/internal/memory/entity"
	"ragmux/internal/memory/episodic"
	"ragmux/internal/memory/preferences"
	"ragmux/internal/memory/working"
	"ragmux/internal/store"
)

// Manager composes the memory subsystems and provides per-task working
// memory instances keyed by task uid.
type Manager struct {
	Episodic    episodic.Store
	Entities    entity.Store
	Preferences preferences.Store
	store       store.Store

	workingCapacity int
	mu              sync.Mutex
	working         map[string]*working.Memory
}

// New builds a Manager. store is the Session/Turn store used for recent
// in-session context.
func New(st store.Store, ep episodic.Store, ent entity.Store, prefs preferences.Store, workingCapacity int) *Manager {
	return &Manager{
		Episodic:        ep,
		Entities:        ent,
		Preferences:     prefs,
		store:           st,
		workingCapacity: workingCapacity,
		working:         make(map[string]*working.Memory),
	}
}

// WorkingMemoryFor returns (creating if necessary) the working memory
// scoped to one task.
func (m *Manager) WorkingMemoryFor(taskUID string) *working.Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	wm, ok := m.working[taskUID]
	if !ok {
		wm = working.New(m.workingCapacity)
		wm.SetCurrentTask(taskUID)
		m.working[taskUID] = wm
	}
	return wm
}

// ReleaseTask drops a task's working memory once it completes.
func (m *Manager) ReleaseTask(taskUID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.working, taskUID)
}

// ContextOptions controls what BuildContext includes.
type ContextOptions struct {
	RecentTurnLimit      int
	IncludeCrossSession   bool
	CrossSessionLimit     int
}

// BuildContext assembles the prompt-ready context string for one query:
// recent in-session turns, user preferences, and optionally cross-session
// episodic success/failure patterns for the query's category.
func (m *Manager) BuildContext(ctx context.Context, sessionID, userID, query, category string, opts ContextOptions) (string, error) {
	if opts.RecentTurnLimit <= 0 {
		opts.RecentTurnLimit = 10
	}
	if opts.CrossSessionLimit <= 0 {
		opts.CrossSessionLimit = 5
	}

	var b strings.Builder

	if m.store != nil {
		turns, err := m.store.ListTurns(ctx, sessionID, opts.RecentTurnLimit)
		if err == nil && len(turns) > 0 {
			b.WriteString("Recent conversation:\n")
			for _, t := range turns {
				fmt.Fprintf(&b, "- %s: %s\n", t.Role, t.Content)
			}
		}
	}

	if m.Preferences != nil {
		prefs, err := m.Preferences.List(ctx, userID)
		if err == nil && len(prefs) > 0 {
			b.WriteString("User preferences:\n")
			for _, p := range prefs {
				fmt.Fprintf(&b, "- %s: %s\n", p.Key, p.Value)
			}
		}
	}

	if opts.IncludeCrossSession && m.Episodic != nil && category != "" {
		successes, err := m.Episodic.SuccessPatterns(ctx, category, opts.CrossSessionLimit)
		if err == nil && len(successes) > 0 {
			b.WriteString("Past successful approaches for similar requests:\n")
			for _, e := range successes {
				fmt.Fprintf(&b, "- %s\n", e.Query)
			}
		}
		failures, err := m.Episodic.FailurePatterns(ctx, category, opts.CrossSessionLimit)
		if err == nil && len(failures) > 0 {
			b.WriteString("Approaches that previously failed, avoid repeating:\n")
			for _, e := range failures {
				fmt.Fprintf(&b, "- %s\n", e.Query)
			}
		}
	}

	return b.String(), nil
}
