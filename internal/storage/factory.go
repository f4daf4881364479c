package storage

import (
	"fmt"

	"github.com/user/stickynotes/internal/config"
	"go.uber.org/zap"
)

// New returns the backend selected by cfg.Type. The backend still needs Init.
func New(cfg config.Storage, logger *zap.Logger) (Storage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Type {
	case config.StorageLocal:
		return NewLocalStorage(LocalOptions{
			Dir:      cfg.LocalDir(),
			InMemory: cfg.Local.InMemory,
			Logger:   logger,
		}), nil
	case config.StorageFile:
		return NewFileStorage(FileOptions{
			NotesDir:        cfg.NotesDir(),
			IndexPath:       cfg.IndexPath(),
			ReadWorkers:     cfg.File.ReadWorkers,
			SerializeWrites: cfg.File.SerializeWrites,
			Logger:          logger,
		}), nil
	case config.StorageSQLite:
		return NewSQLiteStorage(cfg.SQLitePath(), logger), nil
	case config.StorageRemote:
		if cfg.Remote.BaseURL == "" {
			return nil, fmt.Errorf("%w: remote storage requires a base URL", config.ErrInvalidConfig)
		}
		return NewRemoteStorage(RemoteOptions{
			BaseURL: cfg.Remote.BaseURL,
			Token:   cfg.Remote.Token,
			Timeout: cfg.Remote.Timeout,
			Logger:  logger,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown storage type %q", config.ErrInvalidConfig, cfg.Type)
	}
}
