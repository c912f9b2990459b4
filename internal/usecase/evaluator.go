package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"TrendPull/internal/domain/models"
	drepo "TrendPull/internal/domain/repository"
	"TrendPull/internal/engine"
	"TrendPull/internal/engine/lever"
	"TrendPull/internal/engine/signal"
	"TrendPull/internal/regime"
	"TrendPull/pkg/logger"
)

// Evaluator owns the engine-state arena and runs one evaluation per bar
// close. States are small value structs; the arena swaps them whole under
// a short-held lock, and a stale evaluation never overwrites a newer one.
type Evaluator struct {
	bars      drepo.BarStore
	snapshots *regime.Store
	publisher drepo.EvaluationPublisher
	buckets   drepo.BucketResolver
	intents   drepo.IntentSource
	metrics   drepo.Metrics
	log       *logger.Logger

	sigCfg     signal.Config
	leverCfg   lever.Config
	windowBars int
	execTFs    map[string]string // instrument -> execution timeframe

	mu    sync.Mutex
	arena map[models.InstrumentKey]models.EngineState
}

// NewEvaluator creates the evaluator. execTFs maps each tracked
// instrument to the execution timeframe that selects its weight row.
func NewEvaluator(
	bars drepo.BarStore,
	snapshots *regime.Store,
	publisher drepo.EvaluationPublisher,
	buckets drepo.BucketResolver,
	intents drepo.IntentSource,
	metrics drepo.Metrics,
	log *logger.Logger,
	sigCfg signal.Config,
	leverCfg lever.Config,
	windowBars int,
	execTFs map[string]string,
) *Evaluator {
	return &Evaluator{
		bars:       bars,
		snapshots:  snapshots,
		publisher:  publisher,
		buckets:    buckets,
		intents:    intents,
		metrics:    metrics,
		log:        log,
		sigCfg:     sigCfg,
		leverCfg:   leverCfg,
		windowBars: windowBars,
		execTFs:    execTFs,
	}
}

// OnBarClose runs the full evaluation for one closed bar. Faults are
// contained to this series: the previous state is retained and other
// instruments are unaffected.
func (e *Evaluator) OnBarClose(ctx context.Context, bar models.Bar) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.RecordError("evaluation_panic")
			e.log.Error("evaluation panic",
				logger.String("instrument", bar.Instrument),
				logger.String("tf", bar.Timeframe),
				logger.Any("panic", r))
			err = fmt.Errorf("evaluation panic: %v", r)
		}
	}()

	start := time.Now()
	window, err := e.bars.GetLatestNBars(ctx, bar.Instrument, e.windowBars, drepo.Timeframe(bar.Timeframe))
	if err != nil {
		e.metrics.RecordError("window_fetch")
		return fmt.Errorf("fetch window %s/%s: %w", bar.Instrument, bar.Timeframe, err)
	}
	if len(window) == 0 {
		return nil
	}

	key := bar.Key()
	prev, hasPrev := e.lookup(key)
	var prevPtr *models.EngineState
	if hasPrev {
		prevPtr = &prev
	}

	ev, err := engine.EvaluateWindow(window, prevPtr, e.sigCfg)
	if errors.Is(err, engine.ErrStaleBar) {
		return nil
	}
	if err != nil {
		e.metrics.RecordError("evaluation")
		e.log.Warn("bar rejected, state retained",
			logger.String("instrument", bar.Instrument),
			logger.String("tf", bar.Timeframe),
			logger.Error(err))
		return err
	}

	if !e.commit(key, ev.State) {
		// A newer evaluation landed while this one was computing.
		return nil
	}

	e.metrics.RecordEvaluation(bar.Instrument, bar.Timeframe, string(ev.State.State))
	e.metrics.RecordLastPrice(bar.Instrument, ev.Bar.Close)
	e.metrics.RecordLatency("evaluate", time.Since(start).Seconds())

	if err := e.publisher.PublishEvaluation(ctx, &ev); err != nil {
		e.metrics.RecordError("publish_evaluation")
		e.log.Warn("publish evaluation failed", logger.Error(err))
	}

	if execTF, ok := e.execTFs[bar.Instrument]; ok && execTF == bar.Timeframe {
		if lv, err := e.Lever(ctx, bar.Instrument); err == nil {
			e.metrics.RecordLever(bar.Instrument, lv.AFinal, lv.EFinal)
			if err := e.publisher.PublishLever(ctx, lv); err != nil {
				e.metrics.RecordError("publish_lever")
				e.log.Warn("publish lever failed", logger.Error(err))
			}
		} else {
			e.metrics.RecordError("lever")
			e.log.Warn("lever computation failed",
				logger.String("instrument", bar.Instrument),
				logger.Error(err))
		}
	}

	return nil
}

// Lever combines the current regime snapshot, bucket assignment and
// intent into the final bounded pair for one instrument.
func (e *Evaluator) Lever(ctx context.Context, instrument string) (*models.LeverOutput, error) {
	execTF, ok := e.execTFs[instrument]
	if !ok {
		return nil, fmt.Errorf("instrument %s is not tracked", instrument)
	}

	bucket, err := e.buckets.Bucket(ctx, instrument)
	if err != nil {
		// Missing bucket zeroes three contributions, nothing more.
		e.metrics.RecordError("bucket_resolve")
		bucket = ""
	}
	intent, err := e.intents.Intent(ctx, instrument)
	if err != nil {
		e.metrics.RecordError("intent_fetch")
		intent = models.IntentDelta{}
	}

	lv, err := lever.Combine(e.leverCfg, instrument, execTF, bucket, e.snapshots.Current(), intent)
	if err != nil {
		return nil, err
	}
	return &lv, nil
}

// State returns the current engine state for an instrument series.
func (e *Evaluator) State(instrument, tf string) (models.EngineState, bool) {
	return e.lookup(models.InstrumentKey{Instrument: instrument, Timeframe: tf})
}

func (e *Evaluator) lookup(key models.InstrumentKey) (models.EngineState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.arenaMap()[key]
	return st, ok
}

// commit installs the new state unless a newer sequence already won.
func (e *Evaluator) commit(key models.InstrumentKey, st models.EngineState) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := e.arenaMap()
	if cur, ok := m[key]; ok && cur.LastSeq >= st.LastSeq && st.LastSeq != 0 {
		return false
	}
	m[key] = st
	return true
}

func (e *Evaluator) arenaMap() map[models.InstrumentKey]models.EngineState {
	if e.arena == nil {
		e.arena = make(map[models.InstrumentKey]models.EngineState)
	}
	return e.arena
}
