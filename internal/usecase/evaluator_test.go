package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"TrendPull/internal/domain/models"
	drepo "TrendPull/internal/domain/repository"
	"TrendPull/internal/engine/lever"
	"TrendPull/internal/engine/signal"
	"TrendPull/internal/regime"
	"TrendPull/pkg/logger"
)

type stubBarStore struct {
	windows map[string][]models.Bar
}

func (s *stubBarStore) Store(context.Context, models.Bar) error        { return nil }
func (s *stubBarStore) StoreBatch(context.Context, []models.Bar) error { return nil }

func (s *stubBarStore) GetBars(context.Context, string, time.Time, time.Time, drepo.Timeframe) ([]models.Bar, error) {
	return nil, nil
}

func (s *stubBarStore) GetLatestNBars(_ context.Context, instrument string, _ int, _ drepo.Timeframe) ([]models.Bar, error) {
	return s.windows[instrument], nil
}

func (s *stubBarStore) Init(context.Context) error   { return nil }
func (s *stubBarStore) Health(context.Context) error { return nil }
func (s *stubBarStore) Close() error                 { return nil }

type capturePublisher struct {
	mu     sync.Mutex
	evals  []*models.Evaluation
	levers []*models.LeverOutput
}

func (p *capturePublisher) PublishEvaluation(_ context.Context, ev *models.Evaluation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evals = append(p.evals, ev)
	return nil
}

func (p *capturePublisher) PublishLever(_ context.Context, lv *models.LeverOutput) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.levers = append(p.levers, lv)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

type stubBuckets struct {
	bucket string
	err    error
}

func (s *stubBuckets) Bucket(context.Context, string) (string, error) { return s.bucket, s.err }

type stubIntents struct {
	delta models.IntentDelta
	err   error
}

func (s *stubIntents) Intent(context.Context, string) (models.IntentDelta, error) {
	return s.delta, s.err
}

type noopMetrics struct{}

func (noopMetrics) RecordBarIngested(string, string)        {}
func (noopMetrics) RecordEvaluation(string, string, string) {}
func (noopMetrics) RecordError(string)                      {}
func (noopMetrics) RecordLastPrice(string, float64)         {}
func (noopMetrics) RecordLever(string, float64, float64)    {}
func (noopMetrics) RecordLatency(string, float64)           {}

func evalWindow(n int) []models.Bar {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	for i := range bars {
		c := 100 + 0.5*float64(i)
		bars[i] = models.Bar{
			Instrument: "SOLUSDT",
			Timeframe:  "1h",
			Timestamp:  start.Add(time.Duration(i) * time.Hour),
			Seq:        uint64(i + 1),
			Open:       c,
			High:       c + 1,
			Low:        c - 1,
			Close:      c,
			Volume:     10,
		}
	}
	return bars
}

func newTestEvaluator(t *testing.T, store drepo.BarStore, pub *capturePublisher, buckets drepo.BucketResolver, intents drepo.IntentSource) *Evaluator {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "disabled", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatal(err)
	}
	return NewEvaluator(
		store, regime.NewStore(), pub, buckets, intents, noopMetrics{}, log,
		signal.DefaultConfig(), lever.DefaultConfig(), 400,
		map[string]string{"SOLUSDT": "1h"},
	)
}

func TestOnBarCloseStoresStateAndPublishes(t *testing.T) {
	window := evalWindow(400)
	store := &stubBarStore{windows: map[string][]models.Bar{"SOLUSDT": window}}
	pub := &capturePublisher{}
	e := newTestEvaluator(t, store, pub, &stubBuckets{bucket: "L1"}, &stubIntents{})

	last := window[len(window)-1]
	if err := e.OnBarClose(context.Background(), last); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	st, ok := e.State("SOLUSDT", "1h")
	if !ok {
		t.Fatal("no state stored")
	}
	if st.LastSeq != last.Seq {
		t.Errorf("state seq = %d, want %d", st.LastSeq, last.Seq)
	}
	if len(pub.evals) != 1 {
		t.Fatalf("published %d evaluations, want 1", len(pub.evals))
	}
	// The bar timeframe matches the execution timeframe, so a lever
	// output goes out too.
	if len(pub.levers) != 1 {
		t.Fatalf("published %d levers, want 1", len(pub.levers))
	}
	if lv := pub.levers[0]; lv.AFinal < 0 || lv.AFinal > 1 || lv.EFinal < 0 || lv.EFinal > 1 {
		t.Errorf("lever out of bounds: %+v", lv)
	}
}

func TestOnBarCloseIgnoresStaleReplay(t *testing.T) {
	window := evalWindow(400)
	store := &stubBarStore{windows: map[string][]models.Bar{"SOLUSDT": window}}
	pub := &capturePublisher{}
	e := newTestEvaluator(t, store, pub, &stubBuckets{}, &stubIntents{})

	ctx := context.Background()
	last := window[len(window)-1]
	if err := e.OnBarClose(ctx, last); err != nil {
		t.Fatalf("first evaluate: %v", err)
	}

	// Replaying the same window must not publish again or move state.
	if err := e.OnBarClose(ctx, last); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(pub.evals) != 1 {
		t.Fatalf("published %d evaluations after replay, want 1", len(pub.evals))
	}
}

func TestLeverToleratesBucketAndIntentFailures(t *testing.T) {
	store := &stubBarStore{windows: map[string][]models.Bar{}}
	pub := &capturePublisher{}
	e := newTestEvaluator(t, store, pub,
		&stubBuckets{err: errors.New("redis down")},
		&stubIntents{err: errors.New("redis down")})

	lv, err := e.Lever(context.Background(), "SOLUSDT")
	if err != nil {
		t.Fatalf("lever: %v", err)
	}
	if lv.Bucket != "" {
		t.Errorf("bucket = %q, want empty fallback", lv.Bucket)
	}
	if lv.Intent != (models.IntentDelta{}) {
		t.Errorf("intent = %+v, want zero fallback", lv.Intent)
	}
}

func TestLeverRejectsUntrackedInstrument(t *testing.T) {
	store := &stubBarStore{windows: map[string][]models.Bar{}}
	e := newTestEvaluator(t, store, &capturePublisher{}, &stubBuckets{}, &stubIntents{})

	if _, err := e.Lever(context.Background(), "DOGEUSDT"); err == nil {
		t.Fatal("expected error for untracked instrument")
	}
}
