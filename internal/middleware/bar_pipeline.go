package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TrendPull/internal/domain/models"
	domrepo "TrendPull/internal/domain/repository"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, b models.Bar) error
}

// BarPipeline sits between the feed and the backend router. It validates
// bars, drops regressions and duplicate closes per series, and buffers
// when downstream is unavailable.
type BarPipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	bufSize int
	bufCh   chan models.Bar
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
	lastSeq map[models.InstrumentKey]uint64
	// simple format transform hook (optional)
	transform func(models.Bar) models.Bar
	// metrics
	bufDepthGauge func(int)
}

type PipelineOption func(*BarPipeline)

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *BarPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithTransform sets a transformation hook to normalize bar format.
func WithTransform(fn func(models.Bar) models.Bar) PipelineOption {
	return func(p *BarPipeline) { p.transform = fn }
}

// NewBarPipeline creates a new pipeline.
func NewBarPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *BarPipeline {
	p := &BarPipeline{
		proc:    proc,
		metrics: metrics,
		bufSize: 1000, // default buffer
		bufCh:   make(chan models.Bar, 1000),
		stopCh:  make(chan struct{}),
		lastSeq: make(map[models.InstrumentKey]uint64),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan models.Bar, p.bufSize)
	}
	p.bufDepthGauge = func(n int) { p.metrics.RecordLatency("pipeline_buffer_depth", float64(n)) }
	return p
}

// Start launches background flushing of buffered bars.
func (p *BarPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case b := <-p.bufCh:
				if err := p.proc.Process(ctx, b); err != nil {
					// exponential backoff with cap
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- b:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *BarPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates and forwards a bar downstream, buffering on errors.
// Late bars with a stale sequence are dropped here; corrections carrying
// a newer sequence pass through and supersede at evaluation time.
func (p *BarPipeline) Process(ctx context.Context, b models.Bar) error {
	start := time.Now()
	if err := b.Validate(); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		b = p.transform(b)
		if err := b.Validate(); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	if !p.accept(b) {
		// stale close; record and drop silently
		p.metrics.RecordError("pipeline_stale_bar")
		return nil
	}

	if err := p.proc.Process(ctx, b); err != nil {
		p.metrics.RecordError("pipeline_process")
		// buffer non-blocking
		select {
		case p.bufCh <- b:
			if p.bufDepthGauge != nil {
				p.bufDepthGauge(len(p.bufCh))
			}
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func (p *BarPipeline) accept(b models.Bar) bool {
	if b.Seq == 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	key := b.Key()
	if last, ok := p.lastSeq[key]; ok && b.Seq <= last {
		return false
	}
	p.lastSeq[key] = b.Seq
	return true
}
