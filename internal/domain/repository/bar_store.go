package repository

import (
	"context"
	"time"

	"TrendPull/internal/domain/models"
)

// BarStore provides read access to closed bars for the engine, plus the
// write path the ingestion pipeline feeds.
type BarStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, b models.Bar) error
	StoreBatch(ctx context.Context, bars []models.Bar) error
	GetBars(ctx context.Context, instrument string, from, to time.Time, tf Timeframe) ([]models.Bar, error)
	GetLatestNBars(ctx context.Context, instrument string, n int, tf Timeframe) ([]models.Bar, error)
	Health(ctx context.Context) error
	Close() error
}
