// Package preferences is the cross-session key/value store for user
// settings (no expiry, no history).
package preferences

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"ragmux/internal/model"
)

// Store is the preferences persistence boundary.
type Store interface {
	Init(ctx context.Context) error
	Get(ctx context.Context, userID, key string) (model.Preference, bool, error)
	Set(ctx context.Context, p model.Preference) (model.Preference, error)
	List(ctx context.Context, userID string) ([]model.Preference, error)
}

// PostgresStore is the Store backed by Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS user_preferences (
    user_id TEXT NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, key)
);
`)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, userID, key string) (model.Preference, bool, error) {
	var p model.Preference
	err := s.pool.QueryRow(ctx, `SELECT user_id, key, value, updated_at FROM user_preferences WHERE user_id=$1 AND key=$2`, userID, key).
		Scan(&p.UserID, &p.Key, &p.Value, &p.UpdatedAt)
	if err != nil {
		return model.Preference{}, false, nil
	}
	return p, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, p model.Preference) (model.Preference, error) {
	row := s.pool.QueryRow(ctx, `
INSERT INTO user_preferences (user_id, key, value) VALUES ($1,$2,$3)
ON CONFLICT (user_id, key) DO UPDATE SET value = $3, updated_at = NOW()
RETURNING user_id, key, value, updated_at`, p.UserID, p.Key, p.Value)
	var out model.Preference
	if err := row.Scan(&out.UserID, &out.Key, &out.Value, &out.UpdatedAt); err != nil {
		return model.Preference{}, err
	}
	return out, nil
}

func (s *PostgresStore) List(ctx context.Context, userID string) ([]model.Preference, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id, key, value, updated_at FROM user_preferences WHERE user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Preference
	for rows.Next() {
		var p model.Preference
		if err := rows.Scan(&p.UserID, &p.Key, &p.Value, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
