package storage

import (
	"context"
	"fmt"
	"log/slog"

	"blockwatch/internal/config"
	"blockwatch/internal/models"
)

//go:generate mockgen -source=storage.go -destination=../mocks/storage.go -package=mocks

// StorageProvider persists the block registry and its history. Save replaces
// the whole registry atomically; a reader never observes a partial write.
// noinspection GoNameStartsWithPackageName
type StorageProvider interface {
	// Load returns the last saved registry, or an empty slice when nothing was saved yet.
	Load(ctx context.Context) ([]models.BlockEntry, error)
	Save(ctx context.Context, entries []models.BlockEntry) error

	AppendHistory(ctx context.Context, event models.HistoryEvent) error
	// ListHistory returns at most limit events, newest first.
	ListHistory(ctx context.Context, limit int) ([]models.HistoryEvent, error)

	Ping(ctx context.Context) error
	Close() error
}

func NewStorageProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (StorageProvider, error) {
	switch cfg.Store.Type {
	case "file":
		logger.Info("using file store", "state_file", cfg.Store.StateFile, "history_file", cfg.Store.HistoryFile)
		provider, err := NewFileProvider(cfg.Store.StateFile, cfg.Store.HistoryFile, logger)
		if err != nil {
			return nil, err
		}
		return provider, nil
	case "redis":
		logger.Info("using redis store", "key_prefix", cfg.Redis.KeyPrefix)
		provider, err := NewRedisProvider(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		return provider, nil
	case "postgres":
		logger.Info("using postgres store", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		provider, err := NewDatabaseProvider(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}

		logger.Debug("running database migrations")
		if err := provider.RunMigrations(ctx); err != nil {
			provider.Close()
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}

		return provider, nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Store.Type)
	}
}
