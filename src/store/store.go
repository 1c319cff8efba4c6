package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/warp-contracts/blockwatch/src/utils/config"
	"github.com/warp-contracts/blockwatch/src/watch"
)

const (
	BackendLevelDB  = "leveldb"
	BackendPostgres = "postgres"
)

var ErrUnknownBackend = errors.New("unknown store backend")

type Store interface {
	watch.Store
	Close() error
}

// Persistent store selected in the config
func Open(ctx context.Context, config *config.Config) (out Store, err error) {
	switch config.Store.Backend {
	case BackendLevelDB:
		var s *LevelStore
		s, err = NewLevelStore(config.Store.Path)
		if err != nil {
			return
		}
		return s, nil
	case BackendPostgres:
		var s *PostgresStore
		s, err = NewPostgresStore(ctx, &config.Database)
		if err != nil {
			return
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, config.Store.Backend)
	}
}

// Store used by the watcher. Without persistence the window is kept only in memory.
func ForWatcher(ctx context.Context, config *config.Config) (out Store, err error) {
	if config.Watcher.Persist {
		return Open(ctx, config)
	}

	s, err := NewMemoryLevelStore()
	if err != nil {
		return
	}
	return s, nil
}
