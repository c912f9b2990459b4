package usecase

import (
	"context"
	"encoding/json"
	"time"

	"TrendPull/internal/domain/models"
	domrepo "TrendPull/internal/domain/repository"
	pkgkafka "TrendPull/pkg/kafka"
)

// KafkaBarsHandler consumes closed bars from Kafka, persists them and
// triggers the evaluation for that series. The consumer's worker pool
// provides the per-bar-close parallelism.
type KafkaBarsHandler struct {
	topic     string
	storage   domrepo.BarStore
	evaluator *Evaluator
	metrics   domrepo.Metrics
}

func NewKafkaBarsHandler(topic string, storage domrepo.BarStore, evaluator *Evaluator, metrics domrepo.Metrics) *KafkaBarsHandler {
	return &KafkaBarsHandler{topic: topic, storage: storage, evaluator: evaluator, metrics: metrics}
}

func (h *KafkaBarsHandler) Topic() string { return h.topic }

// incoming message schema: {instrument, tf, t, seq, o, h, l, c, v}
func (h *KafkaBarsHandler) Handle(ctx context.Context, raw []byte) error {
	var m struct {
		Instrument string  `json:"instrument"`
		TF         string  `json:"tf"`
		T          int64   `json:"t"`
		Seq        uint64  `json:"seq"`
		O          float64 `json:"o"`
		H          float64 `json:"h"`
		L          float64 `json:"l"`
		C          float64 `json:"c"`
		V          float64 `json:"v"`
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	bar := models.Bar{
		Instrument: m.Instrument,
		Timeframe:  m.TF,
		Timestamp:  time.Unix(m.T, 0).UTC(),
		Seq:        m.Seq,
		Open:       m.O,
		High:       m.H,
		Low:        m.L,
		Close:      m.C,
		Volume:     m.V,
	}
	if err := bar.Validate(); err != nil {
		h.metrics.RecordError("consumer_malformed_bar")
		return err
	}
	// E2E latency from bar close to now (approx)
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(bar.Timestamp).Seconds())

	start := time.Now()
	if err := h.storage.Store(ctx, bar); err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	h.metrics.RecordBarIngested("clickhouse", bar.Instrument)

	return h.evaluator.OnBarClose(ctx, bar)
}

var _ pkgkafka.MessageHandler = (*KafkaBarsHandler)(nil)
