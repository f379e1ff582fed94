package mapper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MappingStore persists confirmed mappings per user and header signature.
// Get returns nil with no error when no mapping is cached.
type MappingStore interface {
	Get(ctx context.Context, userID uuid.UUID, signature string) (Mapping, error)
	Put(ctx context.Context, userID uuid.UUID, signature string, m Mapping) error
}

// querier is the subset of pgxpool.Pool the store needs; pgxmock satisfies
// it too.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresMappingStore stores mappings in the import_mappings table, scoped
// by user id so one user's column choices never surface to another.
type PostgresMappingStore struct {
	db querier
}

// NewPostgresMappingStore creates a mapping store backed by the given pool.
func NewPostgresMappingStore(db querier) *PostgresMappingStore {
	return &PostgresMappingStore{db: db}
}

// Get looks up the cached mapping for a header signature.
func (s *PostgresMappingStore) Get(ctx context.Context, userID uuid.UUID, signature string) (Mapping, error) {
	query := `
		SELECT mapping
		FROM import_mappings
		WHERE user_id = $1 AND header_signature = $2`

	var raw []byte
	err := s.db.QueryRow(ctx, query, userID, signature).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import mapping: %w", err)
	}

	var m Mapping
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode import mapping: %w", err)
	}
	return m, nil
}

// Put upserts the mapping for a header signature.
func (s *PostgresMappingStore) Put(ctx context.Context, userID uuid.UUID, signature string, m Mapping) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode import mapping: %w", err)
	}

	query := `
		INSERT INTO import_mappings (user_id, header_signature, mapping)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, header_signature) DO UPDATE SET
			mapping = EXCLUDED.mapping,
			updated_at = now()`

	if _, err := s.db.Exec(ctx, query, userID, signature, raw); err != nil {
		return fmt.Errorf("failed to save import mapping: %w", err)
	}
	return nil
}
