package storage

import (
	"context"
	"fmt"

	"github.com/recipeshelf/shelf/internal/config"
)

// Open creates the store selected by cfg.Driver.
// Supported drivers: "redis", "sqlite" (default), "memory".
func Open(ctx context.Context, cfg *config.StoreConfig) (Storage, error) {
	switch cfg.Driver {
	case config.DriverRedis:
		opts, err := ParseEndpoint(cfg.CacheEndpoint)
		if err != nil {
			return nil, err
		}
		return NewRedisStorage(ctx, opts)
	case config.DriverSQLite, "":
		return NewSQLiteStorage(cfg.DatabasePath)
	case config.DriverMemory:
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s (supported: redis, sqlite, memory)", cfg.Driver)
	}
}
