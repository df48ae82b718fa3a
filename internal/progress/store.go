package progress

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"captioner/internal/config"
)

// ErrNotFound is returned by stores for unknown job ids.
var ErrNotFound = errors.New("progress state not found")

// Store persists progress documents keyed by job id.
type Store interface {
	Load(ctx context.Context, jobID string) (State, error)
	Save(ctx context.Context, state State) error
	Delete(ctx context.Context, jobID string) error
	List(ctx context.Context) ([]State, error)
	Close() error
}

// resetter is implemented by stores whose Reset differs from Delete.
type resetter interface {
	Reset(ctx context.Context, jobID string) error
}

// Open builds the store selected by cfg.Progress.Backend.
func Open(cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, errors.New("progress: configuration unavailable")
	}
	retention := cfg.ProgressRetention()
	switch strings.ToLower(strings.TrimSpace(cfg.Progress.Backend)) {
	case "", "file":
		store, err := NewFileStore(filepath.Join(cfg.Paths.StateDir, "progress"), cfg.ProgressFilePath())
		if err != nil {
			return nil, err
		}
		return store, nil
	case "sqlite":
		store, err := OpenSQLite(cfg.Progress.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "redis":
		store, err := NewRedisStore(RedisOptions{
			Addr:      cfg.Progress.RedisAddr,
			Password:  cfg.Progress.RedisPassword,
			DB:        cfg.Progress.RedisDB,
			KeyPrefix: cfg.Progress.RedisKeyPrefix,
			Retention: retention,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("progress: unknown backend %q", cfg.Progress.Backend)
	}
}
