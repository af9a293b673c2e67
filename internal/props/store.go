// Package props persists the small set of string properties the add-on keeps
// between sessions: server URL, tenant, token and the output field selections.
package props

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"boffo/internal/config"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("property store closed")

// Store is the key/value persistence the host platform provides.
// All application logic should depend only on this interface.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Constructor opens a Store from configuration.
type Constructor func(ctx context.Context, cfg *config.Config) (Store, error)

// Constructors maps provider names to their constructors.
var Constructors = map[string]Constructor{
	config.StoreMemory: func(ctx context.Context, cfg *config.Config) (Store, error) {
		return NewMemoryStore(), nil
	},
	config.StoreFile: func(ctx context.Context, cfg *config.Config) (Store, error) {
		return NewFileStore(cfg.FilePath)
	},
	config.StoreSQLite: func(ctx context.Context, cfg *config.Config) (Store, error) {
		return NewSQLiteStore(cfg.SQLitePath)
	},
	config.StoreRedis: func(ctx context.Context, cfg *config.Config) (Store, error) {
		return NewRedisStore(ctx, cfg.RedisAddr)
	},
	config.StorePostgres: func(ctx context.Context, cfg *config.Config) (Store, error) {
		return NewPostgresStore(ctx, cfg.PostgresDSN)
	},
}

// New opens the store named by cfg.Store.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	constructor, ok := Constructors[cfg.Store]
	if !ok {
		return nil, fmt.Errorf("unsupported property store %q. Available: %v", cfg.Store, providers())
	}
	return constructor(ctx, cfg)
}

func providers() []string {
	names := make([]string, 0, len(Constructors))
	for name := range Constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
