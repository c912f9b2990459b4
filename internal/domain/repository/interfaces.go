package repository

import (
	"context"

	"TrendPull/internal/domain/models"
)

// BarStream delivers closed bars from the upstream feed.
type BarStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Bar, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// BarPublisher forwards raw bars to the message bus for the evaluation
// consumer group.
type BarPublisher interface {
	Publish(ctx context.Context, b models.Bar) error
	PublishBatch(ctx context.Context, bars []models.Bar) error
	Close() error
}

// EvaluationPublisher pushes per-bar evaluations and lever outputs to
// downstream consumers.
type EvaluationPublisher interface {
	PublishEvaluation(ctx context.Context, ev *models.Evaluation) error
	PublishLever(ctx context.Context, lv *models.LeverOutput) error
	Close() error
}

// BucketResolver reports the market-cap bucket an instrument currently
// belongs to. An empty bucket with nil error means "not yet assigned".
type BucketResolver interface {
	Bucket(ctx context.Context, instrument string) (string, error)
}

// IntentSource supplies the externally aggregated per-token intent delta.
// A zero delta with nil error means "no active intent".
type IntentSource interface {
	Intent(ctx context.Context, instrument string) (models.IntentDelta, error)
}

// Metrics abstracts operational counters so usecases stay testable.
type Metrics interface {
	RecordBarIngested(backend, instrument string)
	RecordEvaluation(instrument, tf string, state string)
	RecordError(kind string)
	RecordLastPrice(instrument string, price float64)
	RecordLever(instrument string, a, e float64)
	RecordLatency(op string, seconds float64)
}
