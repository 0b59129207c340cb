// Package meta persists the list of committed segments of an index. A
// commit is visible once its Meta is saved; segment files not listed are
// ignored on open.
package meta

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/schema"
)

// Meta describes one committed generation.
type Meta struct {
	Index      string         `json:"index"`
	Generation uint64         `json:"generation"`
	Segments   []string       `json:"segments"`
	Schema     *schema.Schema `json:"schema"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Store loads and saves Meta. Load returns (nil, nil) for an index that
// has never been committed.
type Store interface {
	Load(ctx context.Context) (*Meta, error)
	Save(ctx context.Context, m *Meta) error
}
