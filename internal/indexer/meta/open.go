package meta

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/postgres"
)

// Open returns the store selected by cfg.Index.MetaBackend and a function
// releasing its connections.
func Open(ctx context.Context, cfg *config.Config) (Store, func() error, error) {
	switch cfg.Index.MetaBackend {
	case "postgres":
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		store := NewPostgresStore(client.DB, cfg.Index.Name)
		if !cfg.Index.ReadOnly {
			if err := store.Migrate(ctx); err != nil {
				client.Close()
				return nil, nil, err
			}
		}
		return store, client.Close, nil
	case "file", "":
		return NewFileStore(cfg.Index.DataDir), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown meta backend %q", cfg.Index.MetaBackend)
	}
}
