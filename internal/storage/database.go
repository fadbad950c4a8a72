package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"blockwatch/internal/config"
	"blockwatch/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DatabaseProvider struct {
	pool *pgxpool.Pool
}

func NewDatabaseProvider(ctx context.Context, cfg *config.PostgresConfig) (*DatabaseProvider, error) {
	dbPool, err := pgxpool.New(ctx, GetConnectionStringFromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseProvider{pool: dbPool}, nil
}

func (p *DatabaseProvider) GetPool() *pgxpool.Pool {
	return p.pool
}

func (p *DatabaseProvider) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

func (p *DatabaseProvider) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS block_entries (
		ip          TEXT PRIMARY KEY,
		blocked_at  TIMESTAMPTZ NOT NULL,
		expires_at  TIMESTAMPTZ,
		updated_at  TIMESTAMPTZ NOT NULL,
		source      TEXT NOT NULL,
		status      TEXT NOT NULL,
		domain      TEXT NOT NULL DEFAULT '',
		reason      TEXT NOT NULL DEFAULT '',
		country     TEXT NOT NULL DEFAULT '',
		asn         BIGINT NOT NULL DEFAULT 0,
		asn_org     TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS block_history (
		id          UUID PRIMARY KEY,
		event_type  TEXT NOT NULL,
		ip          TEXT NOT NULL,
		reason      TEXT NOT NULL DEFAULT '',
		entry       JSONB NOT NULL,
		client_ip   TEXT,
		user_agent  TEXT,
		client      TEXT,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS block_history_created_at_idx ON block_history (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS block_history_ip_idx ON block_history (ip)`,
}

func (p *DatabaseProvider) RunMigrations(ctx context.Context) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	for i, stmt := range migrations {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}

var blockEntryColumns = []string{
	"ip", "blocked_at", "expires_at", "updated_at", "source", "status",
	"domain", "reason", "country", "asn", "asn_org",
}

func (p *DatabaseProvider) Load(ctx context.Context) ([]models.BlockEntry, error) {
	query := `
		SELECT ip, blocked_at, expires_at, updated_at, source, status,
		       domain, reason, country, asn, asn_org
		FROM block_entries
		ORDER BY blocked_at
	`

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, persistenceError("load", err)
	}
	defer rows.Close()

	entries := []models.BlockEntry{}
	for rows.Next() {
		var entry models.BlockEntry
		var asn int64
		err := rows.Scan(
			&entry.IP,
			&entry.BlockedAt,
			&entry.ExpiresAt,
			&entry.UpdatedAt,
			&entry.Source,
			&entry.Status,
			&entry.Domain,
			&entry.Reason,
			&entry.Country,
			&asn,
			&entry.ASNOrg,
		)
		if err != nil {
			return nil, persistenceError("load", fmt.Errorf("failed to scan block entry: %w", err))
		}
		entry.ASN = uint(asn)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, persistenceError("load", err)
	}

	return entries, nil
}

// Save rewrites block_entries in one transaction.
func (p *DatabaseProvider) Save(ctx context.Context, entries []models.BlockEntry) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return persistenceError("save", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM block_entries`); err != nil {
		return persistenceError("save", fmt.Errorf("failed to clear block entries: %w", err))
	}

	_, err = tx.CopyFrom(ctx, pgx.Identifier{"block_entries"}, blockEntryColumns,
		pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
			e := entries[i]
			return []any{
				e.IP, e.BlockedAt, e.ExpiresAt, e.UpdatedAt, string(e.Source), string(e.Status),
				e.Domain, e.Reason, e.Country, int64(e.ASN), e.ASNOrg,
			}, nil
		}))
	if err != nil {
		return persistenceError("save", fmt.Errorf("failed to copy block entries: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return persistenceError("save", fmt.Errorf("failed to commit: %w", err))
	}

	return nil
}

func (p *DatabaseProvider) AppendHistory(ctx context.Context, event models.HistoryEvent) error {
	query := `
		INSERT INTO block_history (id, event_type, ip, reason, entry, client_ip, user_agent, client, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	entry, err := json.Marshal(event.Entry)
	if err != nil {
		return persistenceError("append_history", err)
	}

	_, err = p.pool.Exec(ctx, query,
		event.ID, string(event.Type), event.IP, event.Reason, entry,
		event.ClientIP, event.UserAgent, event.Client, event.Timestamp,
	)
	if err != nil {
		return persistenceError("append_history", fmt.Errorf("failed to insert history event: %w", err))
	}

	return nil
}

func (p *DatabaseProvider) ListHistory(ctx context.Context, limit int) ([]models.HistoryEvent, error) {
	query := `
		SELECT id::text, event_type, ip, reason, entry, client_ip, user_agent, client, created_at
		FROM block_history
		ORDER BY created_at DESC
		LIMIT $1
	`

	if limit <= 0 {
		limit = 1000
	}

	rows, err := p.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, persistenceError("list_history", err)
	}
	defer rows.Close()

	events := []models.HistoryEvent{}
	for rows.Next() {
		var event models.HistoryEvent
		var entry []byte
		var createdAt time.Time
		err := rows.Scan(
			&event.ID,
			&event.Type,
			&event.IP,
			&event.Reason,
			&entry,
			&event.ClientIP,
			&event.UserAgent,
			&event.Client,
			&createdAt,
		)
		if err != nil {
			return nil, persistenceError("list_history", fmt.Errorf("failed to scan history event: %w", err))
		}

		if err := json.Unmarshal(entry, &event.Entry); err != nil {
			return nil, persistenceError("list_history", fmt.Errorf("history event %s: %w", event.ID, err))
		}
		event.Timestamp = createdAt.UTC()
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, persistenceError("list_history", err)
	}

	return events, nil
}
