package regime

import (
	"context"
	"testing"
	"time"

	"TrendPull/internal/domain/models"
	"TrendPull/internal/domain/repository"
	"TrendPull/internal/engine/signal"
	"TrendPull/pkg/logger"
)

// seriesStore serves a single synthetic daily series and exposes a cut
// so tests can close one bar at a time.
type seriesStore struct {
	bars []models.Bar
	cut  int
}

func (s *seriesStore) Init(context.Context) error                     { return nil }
func (s *seriesStore) Store(context.Context, models.Bar) error        { return nil }
func (s *seriesStore) StoreBatch(context.Context, []models.Bar) error { return nil }
func (s *seriesStore) GetBars(context.Context, string, time.Time, time.Time, repository.Timeframe) ([]models.Bar, error) {
	return nil, nil
}
func (s *seriesStore) GetLatestNBars(_ context.Context, _ string, n int, tf repository.Timeframe) ([]models.Bar, error) {
	if tf != repository.TF1d {
		return nil, nil
	}
	visible := s.bars[:s.cut]
	if len(visible) > n {
		visible = visible[len(visible)-n:]
	}
	return visible, nil
}
func (s *seriesStore) Health(context.Context) error { return nil }
func (s *seriesStore) Close() error                 { return nil }

func dailySeries(symbol string, closes []float64) []models.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		bars[i] = models.Bar{
			Instrument: symbol,
			Timeframe:  "1d",
			Timestamp:  start.Add(time.Duration(i) * 24 * time.Hour),
			Seq:        uint64(i + 1),
			Open:       open,
			High:       c + 1,
			Low:        c - 1,
			Close:      c,
			Volume:     10,
		}
	}
	return bars
}

func newTestBuilder(t *testing.T, store *seriesStore, symbol string) *Builder {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "disabled", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	cfg := Config{
		Symbols:    map[models.DriverID]string{models.DriverBTC: symbol},
		WindowBars: 400,
	}
	return NewBuilder(cfg, signal.DefaultConfig(), store, log)
}

// A driver bar closes once a day while snapshots rebuild every minute.
// The reading a bar produced, transition marker and flags included, must
// survive every rebuild until the next bar arrives.
func TestBuildRepeatsReadingUntilNextBar(t *testing.T) {
	closes := make([]float64, 0, 950)
	p := 400.0
	for i := 0; i < 450; i++ {
		closes = append(closes, p)
		p -= 0.4
	}
	for i := 0; i < 500; i++ {
		closes = append(closes, p)
		p += 0.8
	}

	store := &seriesStore{bars: dailySeries("BTCIDX", closes)}
	b := newTestBuilder(t, store, "BTCIDX")
	ctx := context.Background()

	var first models.RegimeDriverReading
	var seq uint64
	found := false
	for store.cut = 400; store.cut <= len(store.bars); store.cut++ {
		seq++
		snap := b.Build(ctx, seq)
		r, ok := snap.Readings[models.DriverBTC][models.RegimeMacro]
		if !ok {
			t.Fatalf("cut %d: macro reading missing", store.cut)
		}
		if r.TransitionOccurred {
			first = r
			found = true
			break
		}
	}
	if !found {
		t.Fatal("series never produced a state transition")
	}
	if first.TransitionFrom == first.State {
		t.Fatalf("transition from %s to itself", first.State)
	}

	// Two more rebuilds on the unchanged window.
	for i := 0; i < 2; i++ {
		seq++
		snap := b.Build(ctx, seq)
		r, ok := snap.Readings[models.DriverBTC][models.RegimeMacro]
		if !ok {
			t.Fatalf("rebuild %d: macro reading missing", i+1)
		}
		if r != first {
			t.Fatalf("rebuild %d: reading changed on unchanged bar:\ngot  %+v\nwant %+v", i+1, r, first)
		}
	}

	// The next bar retires the transition marker.
	store.cut++
	seq++
	snap := b.Build(ctx, seq)
	r := snap.Readings[models.DriverBTC][models.RegimeMacro]
	if r.TransitionOccurred && r.State == first.State {
		t.Fatalf("transition marker survived into the next bar: %+v", r)
	}
}
