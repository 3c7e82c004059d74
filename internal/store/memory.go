package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"ragmux/internal/model"
)

// MemoryStore is an in-process Store used by tests: same interface as the
// durable store, map-backed, one mutex.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]model.Session
	turns    map[string][]model.Turn
	tasks    map[string]model.Task
	steps    map[string][]model.ThinkingStep
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]model.Session),
		turns:    make(map[string][]model.Turn),
		tasks:    make(map[string]model.Task),
		steps:    make(map[string][]model.ThinkingStep),
	}
}

func (s *MemoryStore) Init(ctx context.Context) error { return nil }
func (s *MemoryStore) Close()                         {}

func (s *MemoryStore) EnsureSession(ctx context.Context, userID, sessionID, title string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if existing, ok := s.sessions[sessionID]; ok {
		return existing, nil
	}
	sess := model.Session{ID: sessionID, UserID: userID, Title: title}
	s.sessions[sessionID] = sess
	return sess, nil
}

func (s *MemoryStore) GetSession(ctx context.Context, sessionID string) (model.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	return sess, ok, nil
}

func (s *MemoryStore) ListSessions(ctx context.Context, userID string) ([]model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (s *MemoryStore) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	delete(s.turns, sessionID)
	return nil
}

func (s *MemoryStore) AppendTurn(ctx context.Context, t model.Turn) (model.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Seq = int64(len(s.turns[t.SessionID]) + 1)
	s.turns[t.SessionID] = append(s.turns[t.SessionID], t)
	return t, nil
}

func (s *MemoryStore) ListTurns(ctx context.Context, sessionID string, limit int) ([]model.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.turns[sessionID]
	if limit <= 0 || limit >= len(all) {
		return append([]model.Turn(nil), all...), nil
	}
	return append([]model.Turn(nil), all[len(all)-limit:]...), nil
}

func (s *MemoryStore) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.UID == "" {
		t.UID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = model.TaskStatusRunning
	}
	s.tasks[t.UID] = t
	return t, nil
}

func (s *MemoryStore) UpdateTaskStatus(ctx context.Context, taskUID string, status model.TaskStatus, result, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskUID]
	if !ok {
		return nil
	}
	t.Status = status
	t.Result = result
	t.Error = errMsg
	s.tasks[taskUID] = t
	return nil
}

func (s *MemoryStore) GetTask(ctx context.Context, taskUID string) (model.Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskUID]
	return t, ok, nil
}

func (s *MemoryStore) AppendThinkingStep(ctx context.Context, step model.ThinkingStep) (model.ThinkingStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if step.ID == "" {
		step.ID = uuid.NewString()
	}
	step.Seq = int64(len(s.steps[step.TaskUID]) + 1)
	s.steps[step.TaskUID] = append(s.steps[step.TaskUID], step)
	return step, nil
}

func (s *MemoryStore) GetTaskHistory(ctx context.Context, taskUID string) ([]model.ThinkingStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ThinkingStep(nil), s.steps[taskUID]...), nil
}

var _ Store = (*MemoryStore)(nil)
