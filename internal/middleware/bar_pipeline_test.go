package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"TrendPull/internal/domain/models"
)

type fakeProc struct {
	mu   sync.Mutex
	bars []models.Bar
	err  error
}

func (f *fakeProc) Process(_ context.Context, b models.Bar) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.bars = append(f.bars, b)
	return nil
}

func (f *fakeProc) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bars)
}

type fakeMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newFakeMetrics() *fakeMetrics { return &fakeMetrics{errors: make(map[string]int)} }

func (m *fakeMetrics) RecordBarIngested(string, string)       {}
func (m *fakeMetrics) RecordEvaluation(string, string, string) {}
func (m *fakeMetrics) RecordLastPrice(string, float64)         {}
func (m *fakeMetrics) RecordLever(string, float64, float64)    {}
func (m *fakeMetrics) RecordLatency(string, float64)           {}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *fakeMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func pipelineBar(seq uint64) models.Bar {
	return models.Bar{
		Instrument: "SOLUSDT",
		Timeframe:  "1h",
		Timestamp:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Hour),
		Seq:        seq,
		Open:       100,
		High:       101,
		Low:        99,
		Close:      100.5,
		Volume:     10,
	}
}

func TestPipelineForwardsValidBars(t *testing.T) {
	proc := &fakeProc{}
	p := NewBarPipeline(proc, newFakeMetrics())

	if err := p.Process(context.Background(), pipelineBar(1)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if proc.count() != 1 {
		t.Fatalf("forwarded %d bars, want 1", proc.count())
	}
}

func TestPipelineRejectsMalformedBar(t *testing.T) {
	proc := &fakeProc{}
	m := newFakeMetrics()
	p := NewBarPipeline(proc, m)

	b := pipelineBar(1)
	b.Close = -5
	if err := p.Process(context.Background(), b); err == nil {
		t.Fatal("expected validation error")
	}
	if proc.count() != 0 {
		t.Error("malformed bar reached downstream")
	}
	if m.errorCount("pipeline_validate") != 1 {
		t.Error("validation error not recorded")
	}
}

func TestPipelineDropsStaleSeq(t *testing.T) {
	proc := &fakeProc{}
	m := newFakeMetrics()
	p := NewBarPipeline(proc, m)

	ctx := context.Background()
	for _, seq := range []uint64{5, 6} {
		if err := p.Process(ctx, pipelineBar(seq)); err != nil {
			t.Fatalf("seq %d: %v", seq, err)
		}
	}
	// Replays at or below the last seen seq are dropped without error.
	if err := p.Process(ctx, pipelineBar(6)); err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if err := p.Process(ctx, pipelineBar(4)); err != nil {
		t.Fatalf("regression: %v", err)
	}
	if proc.count() != 2 {
		t.Fatalf("forwarded %d bars, want 2", proc.count())
	}
	if m.errorCount("pipeline_stale_bar") != 2 {
		t.Errorf("stale drops recorded = %d, want 2", m.errorCount("pipeline_stale_bar"))
	}

	// A correction with a newer seq passes.
	if err := p.Process(ctx, pipelineBar(7)); err != nil {
		t.Fatalf("correction: %v", err)
	}
	if proc.count() != 3 {
		t.Fatalf("forwarded %d bars, want 3", proc.count())
	}
}

func TestPipelineTracksSeriesIndependently(t *testing.T) {
	proc := &fakeProc{}
	p := NewBarPipeline(proc, newFakeMetrics())

	ctx := context.Background()
	a := pipelineBar(10)
	b := pipelineBar(3)
	b.Instrument = "ETHUSDT"

	if err := p.Process(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := p.Process(ctx, b); err != nil {
		t.Fatal(err)
	}
	if proc.count() != 2 {
		t.Fatalf("forwarded %d bars, want 2", proc.count())
	}
}

func TestPipelineBuffersOnDownstreamError(t *testing.T) {
	proc := &fakeProc{err: errors.New("backend down")}
	m := newFakeMetrics()
	p := NewBarPipeline(proc, m, WithBufferSize(4))

	if err := p.Process(context.Background(), pipelineBar(1)); err == nil {
		t.Fatal("expected downstream error")
	}
	if len(p.bufCh) != 1 {
		t.Fatalf("buffered %d bars, want 1", len(p.bufCh))
	}
	if m.errorCount("pipeline_process") != 1 {
		t.Error("downstream error not recorded")
	}
}

func TestPipelineTransformHook(t *testing.T) {
	proc := &fakeProc{}
	p := NewBarPipeline(proc, newFakeMetrics(), WithTransform(func(b models.Bar) models.Bar {
		b.Instrument = "SOL-USDT"
		return b
	}))

	if err := p.Process(context.Background(), pipelineBar(1)); err != nil {
		t.Fatal(err)
	}
	proc.mu.Lock()
	defer proc.mu.Unlock()
	if proc.bars[0].Instrument != "SOL-USDT" {
		t.Fatalf("transform not applied: %q", proc.bars[0].Instrument)
	}
}
