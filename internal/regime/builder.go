package regime

import (
	"context"
	"errors"
	"sync"
	"time"

	"TrendPull/internal/domain/models"
	"TrendPull/internal/domain/repository"
	"TrendPull/internal/engine"
	"TrendPull/internal/engine/signal"
	"TrendPull/pkg/logger"
)

// Config maps driver identities onto the composite series symbols the bar
// store carries, plus the bucket composites to track.
type Config struct {
	Symbols map[models.DriverID]string `yaml:"symbols"` // BTC, ALT, BTCD, USDTD
	Buckets map[string]string          `yaml:"buckets"` // bucket name -> composite symbol
	// WindowBars is how many bars each driver evaluation loads.
	WindowBars int `yaml:"window_bars"`
	// RebuildInterval is the snapshot refresh cadence.
	RebuildInterval time.Duration `yaml:"rebuild_interval"`
}

// Builder assembles full regime snapshots. It keeps its own prior state
// per (symbol, regime timeframe) so driver series transition like any
// instrument series.
type Builder struct {
	cfg    Config
	sigCfg signal.Config
	bars   repository.BarStore
	log    *logger.Logger

	mu     sync.Mutex
	states map[models.InstrumentKey]driverCell
}

// driverCell holds the last evaluation of one driver series. Flags and
// the transition marker belong to the bar, not the rebuild cycle, so
// they are kept alongside the state and republished until the next bar
// sequence arrives.
type driverCell struct {
	state      models.EngineState
	flags      models.SignalFlags
	transition bool
}

func NewBuilder(cfg Config, sigCfg signal.Config, bars repository.BarStore, log *logger.Logger) *Builder {
	return &Builder{
		cfg:    cfg,
		sigCfg: sigCfg,
		bars:   bars,
		log:    log,
		states: make(map[models.InstrumentKey]driverCell),
	}
}

// Build evaluates every driver series on every regime timeframe and
// returns a complete snapshot. Unavailable series (no data yet, fetch
// failure, short history) become missing readings, never errors; the
// snapshot is complete in the sense that every reachable reading is in.
func (b *Builder) Build(ctx context.Context, seq uint64) *models.RegimeSnapshot {
	snap := &models.RegimeSnapshot{
		Seq:            seq,
		Readings:       make(map[models.DriverID]map[models.RegimeTimeframe]models.RegimeDriverReading),
		BucketReadings: make(map[string]map[models.RegimeTimeframe]models.RegimeDriverReading),
	}

	for _, d := range models.AllDrivers {
		if d == models.DriverBucket {
			continue
		}
		symbol, ok := b.cfg.Symbols[d]
		if !ok {
			b.log.Warn("regime driver has no symbol mapping", logger.String("driver", string(d)))
			continue
		}
		snap.Readings[d] = b.readDriver(ctx, snap, d, symbol)
	}
	for bucket, symbol := range b.cfg.Buckets {
		snap.BucketReadings[bucket] = b.readDriver(ctx, snap, models.DriverBucket, symbol)
	}
	return snap
}

func (b *Builder) readDriver(ctx context.Context, snap *models.RegimeSnapshot, d models.DriverID, symbol string) map[models.RegimeTimeframe]models.RegimeDriverReading {
	out := make(map[models.RegimeTimeframe]models.RegimeDriverReading, len(models.AllRegimeTimeframes))
	for _, tf := range models.AllRegimeTimeframes {
		reading, barTS, ok := b.readOne(ctx, d, symbol, tf)
		if !ok {
			continue
		}
		out[tf] = reading
		if snap.Timestamp.Before(barTS) {
			snap.Timestamp = barTS
		}
	}
	return out
}

func (b *Builder) readOne(ctx context.Context, d models.DriverID, symbol string, tf models.RegimeTimeframe) (models.RegimeDriverReading, time.Time, bool) {
	barTF := barTimeframe(tf)
	bars, err := b.bars.GetLatestNBars(ctx, symbol, b.cfg.WindowBars, barTF)
	if err != nil {
		b.log.Warn("regime driver window unavailable",
			logger.String("driver", string(d)),
			logger.String("symbol", symbol),
			logger.String("tf", string(barTF)),
			logger.Error(err))
		return models.RegimeDriverReading{}, time.Time{}, false
	}
	if len(bars) == 0 {
		return models.RegimeDriverReading{}, time.Time{}, false
	}
	barTS := bars[len(bars)-1].Timestamp

	key := models.InstrumentKey{Instrument: symbol, Timeframe: string(barTF)}
	b.mu.Lock()
	cell, hasPrev := b.states[key]
	b.mu.Unlock()

	var prev *models.EngineState
	if hasPrev {
		prev = &cell.state
	}
	ev, err := engine.EvaluateWindow(bars, prev, b.sigCfg)
	if errors.Is(err, engine.ErrStaleBar) {
		// Repeat cycle on an unchanged window: the slow drivers close a
		// bar far less often than the snapshot rebuilds, so the reading
		// that bar produced, transition marker included, stays in force.
		if hasPrev {
			return readingFromState(d, tf, cell.state, cell.flags, cell.transition), barTS, true
		}
		return models.RegimeDriverReading{}, time.Time{}, false
	}
	if err != nil {
		b.log.Warn("regime driver evaluation failed",
			logger.String("driver", string(d)),
			logger.String("symbol", symbol),
			logger.Error(err))
		return models.RegimeDriverReading{}, time.Time{}, false
	}
	if ev.Insufficient {
		return models.RegimeDriverReading{}, time.Time{}, false
	}

	transition := hasPrev && ev.State.State != ev.State.PrevState
	b.mu.Lock()
	b.states[key] = driverCell{state: ev.State, flags: ev.Flags, transition: transition}
	b.mu.Unlock()

	return readingFromState(d, tf, ev.State, ev.Flags, transition), barTS, true
}

func readingFromState(d models.DriverID, tf models.RegimeTimeframe, st models.EngineState, flags models.SignalFlags, transition bool) models.RegimeDriverReading {
	r := models.RegimeDriverReading{
		Driver:    d,
		Timeframe: tf,
		State:     st.State,
		Flags:     flags,
		Available: true,
	}
	if transition {
		r.TransitionOccurred = true
		r.TransitionFrom = st.PrevState
	}
	return r
}

func barTimeframe(tf models.RegimeTimeframe) repository.Timeframe {
	switch tf {
	case models.RegimeMacro:
		return repository.TF1d
	case models.RegimeMeso:
		return repository.TF1h
	default:
		return repository.TF1m
	}
}
