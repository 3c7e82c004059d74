// Package entity is the durable store of named things the system has
// learned about a user, addressed by a deterministic id so repeated
// mentions upsert idempotently.
package entity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ragmux/internal/model"
)

// DeterministicID computes hash(type:lower(name):user_id) so repeated
// mentions of the same entity always collide onto one row.
func DeterministicID(entityType, name, userID string) string {
	key := entityType + ":" + strings.ToLower(name) + ":" + userID
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Store is the entity memory persistence boundary: idempotent upsert,
// alias-aware lookup, and relation traversal.
type Store interface {
	Init(ctx context.Context) error
	Upsert(ctx context.Context, e model.Entity) (model.Entity, error)
	FindEntity(ctx context.Context, userID, name string) (model.Entity, bool, error)
	Link(ctx context.Context, rel model.EntityRelation) error
	GetRelatedEntities(ctx context.Context, entityID string, maxDepth int) ([]model.Entity, error)
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
CREATE TABLE IF NOT EXISTS entities (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    type TEXT NOT NULL,
    name TEXT NOT NULL,
    aliases JSONB NOT NULL DEFAULT '[]',
    attrs JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS entities_user_idx ON entities(user_id);

CREATE TABLE IF NOT EXISTS entity_relations (
    source_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    target_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    type TEXT NOT NULL,
    PRIMARY KEY (source_id, target_id, type)
);
`)
	return err
}

// Upsert idempotently inserts or updates an entity keyed by its
// deterministic id, merging any new aliases.
func (s *PostgresStore) Upsert(ctx context.Context, e model.Entity) (model.Entity, error) {
	if e.ID == "" {
		e.ID = DeterministicID(e.Type, e.Name, e.UserID)
	}
	aliases, err := json.Marshal(e.Aliases)
	if err != nil {
		return model.Entity{}, err
	}
	attrs, err := json.Marshal(e.Attrs)
	if err != nil {
		return model.Entity{}, err
	}
	row := s.pool.QueryRow(ctx, `
INSERT INTO entities (id, user_id, type, name, aliases, attrs) VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET
    aliases = (
        SELECT jsonb_agg(DISTINCT val) FROM jsonb_array_elements(entities.aliases || $5::jsonb) AS val
    ),
    attrs = entities.attrs || $6::jsonb,
    updated_at = NOW()
RETURNING id, user_id, type, name, aliases, attrs, created_at, updated_at`,
		e.ID, e.UserID, e.Type, e.Name, aliases, attrs)
	return scanEntity(row)
}

// FindEntity looks up an entity by exact name or alias match.
func (s *PostgresStore) FindEntity(ctx context.Context, userID, name string) (model.Entity, bool, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, user_id, type, name, aliases, attrs, created_at, updated_at FROM entities
WHERE user_id = $1 AND (lower(name) = lower($2) OR aliases @> to_jsonb($2::text))
LIMIT 1`, userID, name)
	e, err := scanEntity(row)
	if err == pgx.ErrNoRows {
		return model.Entity{}, false, nil
	}
	if err != nil {
		return model.Entity{}, false, err
	}
	return e, true, nil
}

// Link records a directed relation between two entities belonging to the
// same user.
func (s *PostgresStore) Link(ctx context.Context, rel model.EntityRelation) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO entity_relations (source_id, target_id, type) VALUES ($1,$2,$3)
ON CONFLICT DO NOTHING`, rel.SourceID, rel.TargetID, rel.Type)
	return err
}

// GetRelatedEntities performs an iterative breadth-first traversal of the
// relation graph up to maxDepth hops, tracking visited ids to guard
// against cyclic references.
func (s *PostgresStore) GetRelatedEntities(ctx context.Context, entityID string, maxDepth int) ([]model.Entity, error) {
	if maxDepth <= 0 {
		maxDepth = 2
	}
	visited := map[string]bool{entityID: true}
	frontier := []string{entityID}
	var result []model.Entity

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		rows, err := s.pool.Query(ctx, `SELECT target_id FROM entity_relations WHERE source_id = ANY($1)`, frontier)
		if err != nil {
			return nil, err
		}
		var next []string
		for rows.Next() {
			var target string
			if err := rows.Scan(&target); err != nil {
				rows.Close()
				return nil, err
			}
			if !visited[target] {
				visited[target] = true
				next = append(next, target)
			}
		}
		rows.Close()
		frontier = next
	}

	delete(visited, entityID)
	if len(visited) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(visited))
	for id := range visited {
		ids = append(ids, id)
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, user_id, type, name, aliases, attrs, created_at, updated_at FROM entities WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func scanEntity(row pgx.Row) (model.Entity, error) {
	var e model.Entity
	var aliases, attrs []byte
	if err := row.Scan(&e.ID, &e.UserID, &e.Type, &e.Name, &aliases, &attrs, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return model.Entity{}, err
	}
	if len(aliases) > 0 {
		_ = json.Unmarshal(aliases, &e.Aliases)
	}
	if len(attrs) > 0 {
		_ = json.Unmarshal(attrs, &e.Attrs)
	}
	return e, nil
}

var _ Store = (*PostgresStore)(nil)
