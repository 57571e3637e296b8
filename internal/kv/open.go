package kv

import (
	"context"
	"fmt"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/config"
)

// Open connects the backend selected by cfg.StoreBackend and bootstraps its schema.
// The returned store is not yet wrapped with timeouts; see Wrap.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pg, err := NewPostgres(ctx, cfg.DBURL, cfg.StoreName)
		if err != nil {
			return nil, err
		}
		// Ensure required tables/indexes exist so `docker compose up --build` is enough.
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	case config.BackendSQLite:
		return OpenSQLite(cfg.SQLitePath, cfg.StoreName)
	case config.BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
