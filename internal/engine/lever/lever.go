package lever

import (
	"fmt"

	"TrendPull/internal/domain/models"
)

// Combine folds a full regime snapshot into the two bounded levers for
// one instrument. bucket selects the BUCKET composite; missing readings
// contribute zero. The only error path is an execution timeframe with no
// configured weight row.
func Combine(cfg Config, instrument, execTF, bucket string, snap *models.RegimeSnapshot, intent models.IntentDelta) (models.LeverOutput, error) {
	row, ok := cfg.TimeframeWeights[execTF]
	if !ok {
		return models.LeverOutput{}, fmt.Errorf("lever: no timeframe weight row for exec tf %q", execTF)
	}

	out := models.LeverOutput{
		Instrument:    instrument,
		ExecTF:        execTF,
		Bucket:        bucket,
		Intent:        intent,
		IntentApplied: intent.Capped(),
		Contributions: make([]models.Contribution, 0, len(models.AllDrivers)*len(models.AllRegimeTimeframes)),
	}
	if snap != nil {
		out.Timestamp = snap.Timestamp
		out.SnapshotSeq = snap.Seq
	}

	var sumA, sumE float64
	for _, d := range models.AllDrivers {
		dw := cfg.DriverWeights[d]
		for _, tf := range models.AllRegimeTimeframes {
			tw := row.Weight(tf)
			c := models.Contribution{Driver: d, Timeframe: tf, DriverWeight: dw, TimeframeWeight: tw}

			reading, ok := snap.Reading(d, tf, bucket)
			if !ok {
				c.Missing = true
				out.Contributions = append(out.Contributions, c)
				continue
			}

			base := cfg.Deltas.lookup(reading)
			c.State = reading.State
			c.BaseA, c.BaseE = base.A, base.E
			c.DeltaA = base.A * dw * tw
			c.DeltaE = base.E * dw * tw
			sumA += c.DeltaA
			sumE += c.DeltaE
			out.Contributions = append(out.Contributions, c)
		}
	}

	out.AFinal = clamp01(cfg.ABase + sumA + out.IntentApplied.DeltaA)
	out.EFinal = clamp01(cfg.EBase + sumE + out.IntentApplied.DeltaE)
	return out, nil
}

// lookup resolves baseline + flag modifiers + transition shock for one
// reading. Shocks stack with the new-state baseline.
func (t DeltaTable) lookup(r models.RegimeDriverReading) Delta {
	d := t.Baseline[r.State]

	switch r.State {
	case models.StateEarlyUptrend:
		if r.Flags.BuySignal {
			d = d.add(t.S1Buy)
		}
	case models.StateUnconfirmed:
		if r.Flags.TrimFlag {
			d = d.add(t.S2Trim)
		}
		if r.Flags.RebuySignal {
			d = d.add(t.S2Rebuy)
		}
	case models.StateConfirmed:
		if r.Flags.TrimFlag {
			d = d.add(t.S3Trim)
		}
		if r.Flags.RebuySignal {
			d = d.add(t.S3Rebuy)
		}
	}

	if r.TransitionOccurred && r.State == models.StateDowntrend {
		switch r.TransitionFrom {
		case models.StateEarlyUptrend:
			d = d.add(t.ShockS1ToS0)
		case models.StateUnconfirmed:
			d = d.add(t.ShockS2ToS0)
		case models.StateConfirmed:
			d = d.add(t.ShockS3ToS0)
		}
	}
	return d
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
