package repository

import (
	"context"

	"TrendPull/internal/domain/models"
	"TrendPull/internal/domain/repository"
	pkgkafka "TrendPull/pkg/kafka"
)

// KafkaBarPublisher implements BarPublisher for Kafka.
type KafkaBarPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaBarPublisher creates the raw-bar publisher.
func NewKafkaBarPublisher(producer *pkgkafka.Producer, topic string) repository.BarPublisher {
	return &KafkaBarPublisher{producer: producer, topic: topic}
}

func (p *KafkaBarPublisher) Publish(ctx context.Context, b models.Bar) error {
	return p.producer.Publish(ctx, p.topic, []byte(b.Key().String()), barPayload(b))
}

func (p *KafkaBarPublisher) PublishBatch(ctx context.Context, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(bars))
	for i, b := range bars {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(b.Key().String()),
			Value: barPayload(b),
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaBarPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// barPayload matches the consumer-side schema in KafkaBarsHandler.
func barPayload(b models.Bar) map[string]interface{} {
	return map[string]interface{}{
		"instrument": b.Instrument,
		"tf":         b.Timeframe,
		"t":          b.Timestamp.Unix(),
		"seq":        b.Seq,
		"o":          b.Open,
		"h":          b.High,
		"l":          b.Low,
		"c":          b.Close,
		"v":          b.Volume,
	}
}

// KafkaEvaluationPublisher implements EvaluationPublisher for Kafka.
// Evaluations and levers go to separate topics, both keyed by instrument
// so a series stays in partition order.
type KafkaEvaluationPublisher struct {
	producer   *pkgkafka.Producer
	evalTopic  string
	leverTopic string
}

// NewKafkaEvaluationPublisher creates the engine output publisher.
func NewKafkaEvaluationPublisher(producer *pkgkafka.Producer, evalTopic, leverTopic string) repository.EvaluationPublisher {
	return &KafkaEvaluationPublisher{producer: producer, evalTopic: evalTopic, leverTopic: leverTopic}
}

func (p *KafkaEvaluationPublisher) PublishEvaluation(ctx context.Context, ev *models.Evaluation) error {
	payload := map[string]interface{}{
		"instrument":   ev.Key.Instrument,
		"tf":           ev.Key.Timeframe,
		"t":            ev.Bar.Timestamp.Unix(),
		"seq":          ev.Bar.Seq,
		"state":        ev.State.State,
		"prev_state":   ev.State.PrevState,
		"exit_reason":  ev.Flags.ExitReason,
		"insufficient": ev.Insufficient,
		"scores": map[string]float64{
			"ts":  ev.Scores.TS,
			"ox":  ev.Scores.OX,
			"dx":  ev.Scores.DX,
			"edx": ev.Scores.EDX,
		},
		"flags": map[string]bool{
			"buy":       ev.Flags.BuySignal,
			"retest":    ev.Flags.RetestBuySignal,
			"first_dip": ev.Flags.FirstDipBuySignal,
			"dx_buy":    ev.Flags.DXBuySignal,
			"rebuy":     ev.Flags.RebuySignal,
			"trim":      ev.Flags.TrimFlag,
			"exit":      ev.Flags.ExitPosition,
		},
	}
	return p.producer.Publish(ctx, p.evalTopic, []byte(ev.Key.String()), payload)
}

func (p *KafkaEvaluationPublisher) PublishLever(ctx context.Context, lv *models.LeverOutput) error {
	contribs := make([]map[string]interface{}, 0, len(lv.Contributions))
	for _, c := range lv.Contributions {
		contribs = append(contribs, map[string]interface{}{
			"driver":  c.Driver,
			"tf":      c.Timeframe,
			"state":   c.State,
			"da":      c.DeltaA,
			"de":      c.DeltaE,
			"missing": c.Missing,
		})
	}
	payload := map[string]interface{}{
		"instrument":    lv.Instrument,
		"exec_tf":       lv.ExecTF,
		"bucket":        lv.Bucket,
		"t":             lv.Timestamp.Unix(),
		"snapshot_seq":  lv.SnapshotSeq,
		"a_final":       lv.AFinal,
		"e_final":       lv.EFinal,
		"intent_a":      lv.IntentApplied.DeltaA,
		"intent_e":      lv.IntentApplied.DeltaE,
		"contributions": contribs,
	}
	return p.producer.Publish(ctx, p.leverTopic, []byte(lv.Instrument), payload)
}

func (p *KafkaEvaluationPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
