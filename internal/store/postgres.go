package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ragmux/internal/model"
)

// PostgresStore is the durable Store backed by one pgxpool.Pool. Writes to
// a given session are serialized through a per-session mutex so concurrent
// agents append turns/steps without interleaving.
type PostgresStore struct {
	pool *pgxpool.Pool

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewPostgresStore wraps an already-configured pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, locks: make(map[string]*sync.Mutex)}
}

func (s *PostgresStore) lockFor(sessionID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Init creates all tables the store needs if they do not already exist.
func (s *PostgresStore) Init(ctx context.Context) error {
	if s.pool == nil {
		return errors.New("postgres store requires a pool")
	}
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS sessions (
    id UUID PRIMARY KEY,
    user_id TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS sessions_user_updated_idx ON sessions(user_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS turns (
    id UUID PRIMARY KEY,
    session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    seq BIGINT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    task_uid UUID,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE(session_id, seq)
);
CREATE INDEX IF NOT EXISTS turns_session_seq_idx ON turns(session_id, seq);

CREATE TABLE IF NOT EXISTS tasks (
    uid UUID PRIMARY KEY,
    session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    query TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    result TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS tasks_session_idx ON tasks(session_id, created_at DESC);

CREATE TABLE IF NOT EXISTS thinking_steps (
    id UUID PRIMARY KEY,
    task_uid UUID NOT NULL REFERENCES tasks(uid) ON DELETE CASCADE,
    seq BIGINT NOT NULL,
    agent TEXT NOT NULL DEFAULT '',
    thought TEXT NOT NULL DEFAULT '',
    action TEXT NOT NULL DEFAULT '',
    input TEXT NOT NULL DEFAULT '',
    output TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE(task_uid, seq)
);
CREATE INDEX IF NOT EXISTS thinking_steps_task_seq_idx ON thinking_steps(task_uid, seq);
`)
	return err
}

func (s *PostgresStore) EnsureSession(ctx context.Context, userID, sessionID, title string) (model.Session, error) {
	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	row := s.pool.QueryRow(ctx, `
INSERT INTO sessions (id, user_id, title) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET updated_at = NOW()
RETURNING id, user_id, title, created_at, updated_at`, sessionID, userID, title)
	return scanSession(row)
}

func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (model.Session, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, user_id, title, created_at, updated_at FROM sessions WHERE id = $1`, sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Session{}, false, nil
	}
	if err != nil {
		return model.Session{}, false, err
	}
	return sess, true, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, userID string) ([]model.Session, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, user_id, title, created_at, updated_at FROM sessions WHERE user_id = $1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	return err
}

func scanSession(row pgx.Row) (model.Session, error) {
	var sess model.Session
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return model.Session{}, err
	}
	return sess, nil
}

func (s *PostgresStore) AppendTurn(ctx context.Context, t model.Turn) (model.Turn, error) {
	lock := s.lockFor(t.SessionID)
	lock.Lock()
	defer lock.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	var nextSeq int64
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE session_id = $1`, t.SessionID).Scan(&nextSeq); err != nil {
		return model.Turn{}, err
	}
	t.Seq = nextSeq

	var taskUID any
	if t.TaskUID != "" {
		taskUID = t.TaskUID
	}
	row := s.pool.QueryRow(ctx, `
INSERT INTO turns (id, session_id, seq, role, content, task_uid) VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, session_id, seq, role, content, COALESCE(task_uid::text, ''), created_at`,
		t.ID, t.SessionID, t.Seq, t.Role, t.Content, taskUID)

	var out model.Turn
	if err := row.Scan(&out.ID, &out.SessionID, &out.Seq, &out.Role, &out.Content, &out.TaskUID, &out.CreatedAt); err != nil {
		return model.Turn{}, err
	}
	if _, err := s.pool.Exec(ctx, `UPDATE sessions SET updated_at = NOW() WHERE id = $1`, t.SessionID); err != nil {
		return model.Turn{}, err
	}
	return out, nil
}

func (s *PostgresStore) ListTurns(ctx context.Context, sessionID string, limit int) ([]model.Turn, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, session_id, seq, role, content, COALESCE(task_uid::text, ''), created_at
FROM turns WHERE session_id = $1 ORDER BY seq DESC LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Turn
	for rows.Next() {
		var t model.Turn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Seq, &t.Role, &t.Content, &t.TaskUID, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	// reverse to chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	if t.UID == "" {
		t.UID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = model.TaskStatusRunning
	}
	row := s.pool.QueryRow(ctx, `
INSERT INTO tasks (uid, session_id, user_id, query, category, status) VALUES ($1, $2, $3, $4, $5, $6)
RETURNING uid, session_id, user_id, query, category, status, result, error, created_at, completed_at`,
		t.UID, t.SessionID, t.UserID, t.Query, t.Category, t.Status)
	return scanTask(row)
}

func (s *PostgresStore) UpdateTaskStatus(ctx context.Context, taskUID string, status model.TaskStatus, result, errMsg string) error {
	var completedAt any
	if status == model.TaskStatusCompleted || status == model.TaskStatusFailed || status == model.TaskStatusCancelled {
		completedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
UPDATE tasks SET status = $2, result = $3, error = $4, completed_at = COALESCE($5, completed_at) WHERE uid = $1`,
		taskUID, status, result, errMsg, completedAt)
	return err
}

func (s *PostgresStore) GetTask(ctx context.Context, taskUID string) (model.Task, bool, error) {
	row := s.pool.QueryRow(ctx, `
SELECT uid, session_id, user_id, query, category, status, result, error, created_at, completed_at
FROM tasks WHERE uid = $1`, taskUID)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Task{}, false, nil
	}
	if err != nil {
		return model.Task{}, false, err
	}
	return t, true, nil
}

func scanTask(row pgx.Row) (model.Task, error) {
	var t model.Task
	if err := row.Scan(&t.UID, &t.SessionID, &t.UserID, &t.Query, &t.Category, &t.Status, &t.Result, &t.Error, &t.CreatedAt, &t.CompletedAt); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

// AppendThinkingStep assigns the next gap-free sequence number for the
// task and inserts the step. Sequence assignment happens inside a
// task-scoped lock (keyed "task:"+TaskUID), separate from the session lock
// used for turns, so steps are never reordered or skipped.
func (s *PostgresStore) AppendThinkingStep(ctx context.Context, step model.ThinkingStep) (model.ThinkingStep, error) {
	lock := s.lockFor("task:" + step.TaskUID)
	lock.Lock()
	defer lock.Unlock()

	if step.ID == "" {
		step.ID = uuid.NewString()
	}
	var nextSeq int64
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM thinking_steps WHERE task_uid = $1`, step.TaskUID).Scan(&nextSeq); err != nil {
		return model.ThinkingStep{}, err
	}
	step.Seq = nextSeq

	row := s.pool.QueryRow(ctx, `
INSERT INTO thinking_steps (id, task_uid, seq, agent, thought, action, input, output) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, task_uid, seq, agent, thought, action, input, output, created_at`,
		step.ID, step.TaskUID, step.Seq, step.Agent, step.Thought, step.Action, step.Input, step.Output)

	var out model.ThinkingStep
	if err := row.Scan(&out.ID, &out.TaskUID, &out.Seq, &out.Agent, &out.Thought, &out.Action, &out.Input, &out.Output, &out.CreatedAt); err != nil {
		return model.ThinkingStep{}, err
	}
	return out, nil
}

func (s *PostgresStore) GetTaskHistory(ctx context.Context, taskUID string) ([]model.ThinkingStep, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, task_uid, seq, agent, thought, action, input, output, created_at
FROM thinking_steps WHERE task_uid = $1 ORDER BY seq ASC`, taskUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ThinkingStep
	for rows.Next() {
		var st model.ThinkingStep
		if err := rows.Scan(&st.ID, &st.TaskUID, &st.Seq, &st.Agent, &st.Thought, &st.Action, &st.Input, &st.Output, &st.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
