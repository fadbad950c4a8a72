package middlewares

import (
	"context"
	"time"

	"blockwatch/internal/blocker"
	"blockwatch/internal/models"
	"blockwatch/internal/resolver"
)

//go:generate mockgen -source=block_manager.go -destination=../mocks/block_manager.go -package=mocks

// BlockManager is the part of blocker.Manager the HTTP handlers use.
type BlockManager interface {
	Block(ctx context.Context, ip string, ttl *time.Duration, source models.BlockSource) (models.BlockEntry, error)
	BlockDomain(ctx context.Context, domain string, r resolver.Resolver, ttl *time.Duration) (models.BlockEntry, error)
	Unblock(ctx context.Context, ip string, reason string) error
	ListActive() []models.BlockEntry
	Get(ip string) (models.BlockEntry, error)
	ListHistory(ctx context.Context, limit int) ([]models.HistoryEvent, error)
	Sweep(ctx context.Context) (blocker.SweepResult, error)
}
