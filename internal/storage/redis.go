package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"blockwatch/internal/config"
	"blockwatch/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of the go-redis client used by RedisProvider.
type RedisClient interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Ping(ctx context.Context) *redis.StatusCmd
	PoolStats() *redis.PoolStats
	Close() error
}

// RedisProvider keeps the registry in a hash keyed by address and the history
// in a list with the newest event at the head.
type RedisProvider struct {
	client     RedisClient
	blocksKey  string
	historyKey string
	logger     *slog.Logger
}

func NewRedisProvider(ctx context.Context, cfg *config.RedisConfig, logger *slog.Logger) (*RedisProvider, error) {
	var client *redis.Client

	if cfg.Sentinel != nil {
		logger.Info("connecting to redis via sentinel",
			"master", cfg.Sentinel.MasterName,
			"sentinels", cfg.Sentinel.SentinelAddresses)

		client = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:       cfg.Sentinel.MasterName,
			SentinelAddrs:    cfg.Sentinel.SentinelAddresses,
			SentinelUsername: cfg.Sentinel.SentinelUsername,
			SentinelPassword: cfg.Sentinel.SentinelPassword,
			Username:         cfg.Username,
			Password:         cfg.Password,
			DB:               cfg.Index,
			MinIdleConns:     2,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:         cfg.Address,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.Index,
			MinIdleConns: 2,
		})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisProviderWithClient(client, cfg.KeyPrefix, logger), nil
}

func NewRedisProviderWithClient(client RedisClient, keyPrefix string, logger *slog.Logger) *RedisProvider {
	keyPrefix = strings.TrimSuffix(keyPrefix, ":")
	return &RedisProvider{
		client:     client,
		blocksKey:  keyPrefix + ":blocks",
		historyKey: keyPrefix + ":history",
		logger:     logger,
	}
}

func (r *RedisProvider) Load(ctx context.Context) ([]models.BlockEntry, error) {
	fields, err := r.client.HGetAll(ctx, r.blocksKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, persistenceError("load", err)
	}

	entries := make([]models.BlockEntry, 0, len(fields))
	for ip, raw := range fields {
		var entry models.BlockEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, persistenceError("load", fmt.Errorf("entry %s: %w", ip, err))
		}
		entries = append(entries, entry)
	}

	slices.SortFunc(entries, func(a, b models.BlockEntry) int { return a.BlockedAt.Compare(b.BlockedAt) })

	return entries, nil
}

// Save replaces the registry hash inside a MULTI/EXEC transaction.
func (r *RedisProvider) Save(ctx context.Context, entries []models.BlockEntry) error {
	values := make(map[string]interface{}, len(entries))
	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return persistenceError("save", err)
		}
		values[entry.IP] = string(data)
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.blocksKey)
		if len(values) > 0 {
			pipe.HSet(ctx, r.blocksKey, values)
		}
		return nil
	})

	return persistenceError("save", err)
}

func (r *RedisProvider) AppendHistory(ctx context.Context, event models.HistoryEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return persistenceError("append_history", err)
	}

	return persistenceError("append_history", r.client.LPush(ctx, r.historyKey, string(data)).Err())
}

func (r *RedisProvider) ListHistory(ctx context.Context, limit int) ([]models.HistoryEvent, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	raw, err := r.client.LRange(ctx, r.historyKey, 0, stop).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, persistenceError("list_history", err)
	}

	events := make([]models.HistoryEvent, 0, len(raw))
	for _, item := range raw {
		var event models.HistoryEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			r.logger.Warn("skipping unreadable history event", "key", r.historyKey, "error", err)
			continue
		}
		events = append(events, event)
	}

	return events, nil
}

func (r *RedisProvider) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// PoolStats lets the provider be registered with a redisprometheus collector.
func (r *RedisProvider) PoolStats() *redis.PoolStats {
	return r.client.PoolStats()
}

func (r *RedisProvider) Close() error {
	return r.client.Close()
}
