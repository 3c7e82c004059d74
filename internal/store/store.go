// Package store is the durable Session/Turn/Task/ThinkingStep layer,
// backed by Postgres via pgx: an Init() that issues CREATE TABLE IF NOT
// EXISTS, one exported struct implementing a small interface, writes
// serialized per session via an in-process lock.
package store

import (
	"context"

	"ragmux/internal/model"
)

// Store is the durable persistence boundary the Manager depends on. It is
// intentionally small: sessions, ordered turns, tasks, and gap-free
// thinking steps per task.
type Store interface {
	Init(ctx context.Context) error

	EnsureSession(ctx context.Context, userID, sessionID, title string) (model.Session, error)
	GetSession(ctx context.Context, sessionID string) (model.Session, bool, error)
	ListSessions(ctx context.Context, userID string) ([]model.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error

	AppendTurn(ctx context.Context, t model.Turn) (model.Turn, error)
	ListTurns(ctx context.Context, sessionID string, limit int) ([]model.Turn, error)

	CreateTask(ctx context.Context, t model.Task) (model.Task, error)
	UpdateTaskStatus(ctx context.Context, taskUID string, status model.TaskStatus, result, errMsg string) error
	GetTask(ctx context.Context, taskUID string) (model.Task, bool, error)

	AppendThinkingStep(ctx context.Context, s model.ThinkingStep) (model.ThinkingStep, error)
	GetTaskHistory(ctx context.Context, taskUID string) ([]model.ThinkingStep, error)

	Close()
}
