package history

import (
	"context"
	"fmt"

	models "TrendPull/internal/domain/models"
	domrepo "TrendPull/internal/domain/repository"
	"TrendPull/pkg/logger"
	"TrendPull/pkg/queue"
)

// BackfillType is the queue message type for bar backfill requests.
const BackfillType = "backfill.bars"

// BackfillRequest asks for the latest N bars of one series to be
// fetched over REST and written to storage.
type BackfillRequest struct {
	Instrument string `json:"instrument"`
	Timeframe  string `json:"tf"`
	Bars       int    `json:"bars"`
}

// BackfillJob seeds evaluation windows from the REST history endpoint.
// It runs on the redis queue so restarts and rebootstraps retry with
// backoff instead of hammering the feed.
type BackfillJob struct {
	provider *Provider
	storage  domrepo.BarStore
	logger   *logger.Logger
}

func NewBackfillJob(provider *Provider, storage domrepo.BarStore, l *logger.Logger) *BackfillJob {
	return &BackfillJob{provider: provider, storage: storage, logger: l}
}

func (j *BackfillJob) Name() string { return "bar-backfill" }
func (j *BackfillJob) Type() string { return BackfillType }

func (j *BackfillJob) Handle(ctx context.Context, payload interface{}) error {
	req, err := queue.ParsePayload[BackfillRequest](payload)
	if err != nil {
		return fmt.Errorf("backfill payload: %w", err)
	}
	if req.Instrument == "" || req.Timeframe == "" {
		return fmt.Errorf("backfill payload: missing instrument or timeframe")
	}
	if req.Bars <= 0 {
		req.Bars = models.MinHistoryBars + models.SlopeLookback
	}

	bars, err := j.provider.FetchBars(ctx, req.Instrument, req.Timeframe, req.Bars)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		j.logger.Warn("backfill returned no bars",
			logger.String("instrument", req.Instrument),
			logger.String("tf", req.Timeframe))
		return nil
	}

	if err := j.storage.StoreBatch(ctx, bars); err != nil {
		return fmt.Errorf("backfill store %s %s: %w", req.Instrument, req.Timeframe, err)
	}
	j.logger.Info("backfill complete",
		logger.String("instrument", req.Instrument),
		logger.String("tf", req.Timeframe),
		logger.Int("bars", len(bars)))
	return nil
}

// EnqueueAll publishes one backfill request per (instrument, timeframe).
func EnqueueAll(ctx context.Context, q queue.QueueService, instruments, timeframes []string, bars int) error {
	for _, inst := range instruments {
		for _, tf := range timeframes {
			req := BackfillRequest{Instrument: inst, Timeframe: tf, Bars: bars}
			if err := q.PublishMessage(ctx, BackfillType, req); err != nil {
				return fmt.Errorf("enqueue backfill %s %s: %w", inst, tf, err)
			}
		}
	}
	return nil
}
