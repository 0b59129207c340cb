package meta

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/errors"
)

const createTable = `CREATE TABLE IF NOT EXISTS index_meta (
	name        TEXT PRIMARY KEY,
	generation  BIGINT NOT NULL,
	segments    JSONB NOT NULL,
	schema      JSONB NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
)`

// PostgresStore keeps one index_meta row per index name, so several
// searcher processes can follow the indexer's commits.
type PostgresStore struct {
	db    *sql.DB
	index string
}

func NewPostgresStore(db *sql.DB, index string) *PostgresStore {
	return &PostgresStore{db: db, index: index}
}

// Migrate creates the index_meta table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("creating index_meta: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (*Meta, error) {
	var (
		m        = Meta{Index: s.index}
		segments []byte
		rawSch   []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT generation, segments, schema, updated_at FROM index_meta WHERE name = $1`,
		s.index,
	).Scan(&m.Generation, &segments, &rawSch, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading index meta %q: %w", s.index, err)
	}
	if err := json.Unmarshal(segments, &m.Segments); err != nil {
		return nil, apperrors.Corruptf("index_meta %q segments: %v", s.index, err)
	}
	m.Schema = new(schema.Schema)
	if err := json.Unmarshal(rawSch, m.Schema); err != nil {
		return nil, apperrors.Corruptf("index_meta %q schema: %v", s.index, err)
	}
	return &m, nil
}

// Save upserts the row. A generation older than the stored one is
// rejected so a stale writer cannot roll the index back.
func (s *PostgresStore) Save(ctx context.Context, m *Meta) error {
	segments, err := json.Marshal(m.Segments)
	if err != nil {
		return fmt.Errorf("encoding segments: %w", err)
	}
	rawSch, err := json.Marshal(m.Schema)
	if err != nil {
		return fmt.Errorf("encoding schema: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO index_meta (name, generation, segments, schema, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE
		SET generation = EXCLUDED.generation,
			segments = EXCLUDED.segments,
			schema = EXCLUDED.schema,
			updated_at = EXCLUDED.updated_at
		WHERE index_meta.generation < EXCLUDED.generation`,
		s.index, m.Generation, segments, rawSch, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving index meta %q: %w", s.index, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("saving index meta %q: generation %d is not newer than the stored one", s.index, m.Generation)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
