package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	drepo "TrendPull/internal/domain/repository"
	"TrendPull/internal/regime"
	"TrendPull/pkg/cache"
	"TrendPull/pkg/logger"
)

// RegimeRunner rebuilds the driver snapshot on the micro-timeframe
// cadence. Snapshots go to the store only when fully built, so instrument
// evaluations always read a complete set of readings.
type RegimeRunner struct {
	builder  *regime.Builder
	store    *regime.Store
	metrics  drepo.Metrics
	log      *logger.Logger
	interval time.Duration
	mirror   cache.Service // optional cross-process copy

	seq     atomic.Uint64
	stopCh  chan struct{}
	once    sync.Once
	started bool
	mu      sync.Mutex
}

const regimeMirrorKey = "regime:snapshot"

func NewRegimeRunner(builder *regime.Builder, store *regime.Store, metrics drepo.Metrics, log *logger.Logger, interval time.Duration, mirror cache.Service) *RegimeRunner {
	if interval <= 0 {
		interval = time.Minute
	}
	return &RegimeRunner{
		builder:  builder,
		store:    store,
		metrics:  metrics,
		log:      log,
		interval: interval,
		mirror:   mirror,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the rebuild loop. The first snapshot is built
// immediately so instrument evaluations do not wait a full interval.
func (r *RegimeRunner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	go func() {
		r.rebuild(ctx)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			case <-ticker.C:
				r.rebuild(ctx)
			}
		}
	}()
}

// Stop terminates the rebuild loop.
func (r *RegimeRunner) Stop() {
	r.once.Do(func() { close(r.stopCh) })
}

func (r *RegimeRunner) rebuild(ctx context.Context) {
	start := time.Now()
	snap := r.builder.Build(ctx, r.seq.Add(1))
	if !r.store.Publish(snap) {
		r.metrics.RecordError("regime_stale_snapshot")
		return
	}
	if r.mirror != nil {
		// Best effort: in-process readers already have the snapshot.
		if err := r.mirror.Set(ctx, regimeMirrorKey, snap, 2*r.interval); err != nil {
			r.metrics.RecordError("regime_mirror")
			r.log.Warn("regime snapshot mirror failed", logger.Error(err))
		}
	}
	r.metrics.RecordLatency("regime_rebuild", time.Since(start).Seconds())
	r.log.Debug("regime snapshot published",
		logger.Uint64("seq", snap.Seq),
		logger.Int("drivers", len(snap.Readings)),
		logger.Int("buckets", len(snap.BucketReadings)))
}
