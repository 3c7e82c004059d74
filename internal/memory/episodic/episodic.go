// Package episodic is the durable, Postgres-indexed record of completed
// tasks used by the Experience Learner to recommend strategy overrides,
// with an optional Redis-backed pattern cache (TTL from config) in front
// of the repeated-query lookup path.
package episodic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"ragmux/internal/model"
)

// Store is the episodic memory persistence boundary.
type Store interface {
	Init(ctx context.Context) error
	Record(ctx context.Context, ep model.Episode) (model.Episode, error)
	FindSimilar(ctx context.Context, userID, category string, limit int) ([]model.Episode, error)
	SuccessPatterns(ctx context.Context, category string, limit int) ([]model.Episode, error)
	FailurePatterns(ctx context.Context, category string, limit int) ([]model.Episode, error)
}

// PostgresStore is the Store backed by Postgres, with an optional Redis
// pattern cache in front of SuccessPatterns/FailurePatterns.
type PostgresStore struct {
	pool  *pgxpool.Pool
	redis *redis.Client
	ttl   time.Duration
}

// NewPostgresStore builds a PostgresStore. redisClient may be nil, in
// which case the pattern cache is skipped and every call hits Postgres.
func NewPostgresStore(pool *pgxpool.Pool, redisClient *redis.Client, ttlSeconds int) *PostgresStore {
	if ttlSeconds <= 0 {
		ttlSeconds = 300
	}
	return &PostgresStore{pool: pool, redis: redisClient, ttl: time.Duration(ttlSeconds) * time.Second}
}

func (s *PostgresStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS episodes (
    id UUID PRIMARY KEY,
    user_id TEXT NOT NULL,
    category TEXT NOT NULL,
    query TEXT NOT NULL,
    outcome TEXT NOT NULL,
    quality_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    lessons JSONB NOT NULL DEFAULT '[]',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS episodes_user_category_outcome_idx ON episodes(user_id, category, outcome);
CREATE INDEX IF NOT EXISTS episodes_category_outcome_idx ON episodes(category, outcome);
`)
	return err
}

func (s *PostgresStore) Record(ctx context.Context, ep model.Episode) (model.Episode, error) {
	if ep.ID == "" {
		ep.ID = uuid.NewString()
	}
	lessons, err := json.Marshal(ep.Lessons)
	if err != nil {
		return model.Episode{}, err
	}
	row := s.pool.QueryRow(ctx, `
INSERT INTO episodes (id, user_id, category, query, outcome, quality_score, lessons) VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id, user_id, category, query, outcome, quality_score, lessons, created_at`,
		ep.ID, ep.UserID, ep.Category, ep.Query, ep.Outcome, ep.QualityScore, lessons)
	out, err := scanEpisode(row)
	if err != nil {
		return model.Episode{}, err
	}
	if s.redis != nil {
		s.invalidatePatternCache(ctx, ep.Category)
	}
	return out, nil
}

func (s *PostgresStore) FindSimilar(ctx context.Context, userID, category string, limit int) ([]model.Episode, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, user_id, category, query, outcome, quality_score, lessons, created_at
FROM episodes WHERE user_id = $1 AND category = $2 ORDER BY created_at DESC LIMIT $3`, userID, category, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEpisodes(rows)
}

func (s *PostgresStore) SuccessPatterns(ctx context.Context, category string, limit int) ([]model.Episode, error) {
	return s.cachedPatterns(ctx, "success", category, limit)
}

func (s *PostgresStore) FailurePatterns(ctx context.Context, category string, limit int) ([]model.Episode, error) {
	return s.cachedPatterns(ctx, "failure", category, limit)
}

func (s *PostgresStore) cachedPatterns(ctx context.Context, outcome, category string, limit int) ([]model.Episode, error) {
	if limit <= 0 {
		limit = 20
	}
	cacheKey := fmt.Sprintf("ragmux:patterns:%s:%s:%d", outcome, category, limit)

	if s.redis != nil {
		if raw, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
			var eps []model.Episode
			if json.Unmarshal([]byte(raw), &eps) == nil {
				return eps, nil
			}
		}
	}

	rows, err := s.pool.Query(ctx, `
SELECT id, user_id, category, query, outcome, quality_score, lessons, created_at
FROM episodes WHERE category = $1 AND outcome = $2 ORDER BY created_at DESC LIMIT $3`, category, outcome, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	eps, err := scanEpisodes(rows)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if raw, err := json.Marshal(eps); err == nil {
			_ = s.redis.Set(ctx, cacheKey, raw, s.ttl).Err()
		}
	}
	return eps, nil
}

func (s *PostgresStore) invalidatePatternCache(ctx context.Context, category string) {
	for _, outcome := range []string{"success", "failure", "partial"} {
		pattern := fmt.Sprintf("ragmux:patterns:%s:%s:*", outcome, category)
		iter := s.redis.Scan(ctx, 0, pattern, 0).Iterator()
		for iter.Next(ctx) {
			_ = s.redis.Del(ctx, iter.Val()).Err()
		}
	}
}

func scanEpisode(row pgx.Row) (model.Episode, error) {
	var ep model.Episode
	var lessons []byte
	if err := row.Scan(&ep.ID, &ep.UserID, &ep.Category, &ep.Query, &ep.Outcome, &ep.QualityScore, &lessons, &ep.CreatedAt); err != nil {
		return model.Episode{}, err
	}
	if len(lessons) > 0 {
		_ = json.Unmarshal(lessons, &ep.Lessons)
	}
	return ep, nil
}

func scanEpisodes(rows pgx.Rows) ([]model.Episode, error) {
	var out []model.Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
