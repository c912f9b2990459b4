package signal

import (
	"math"

	"TrendPull/internal/domain/models"
	"TrendPull/internal/engine/score"
)

// Config holds the signal gate tuning. Values come from configuration;
// DefaultConfig documents the shipped numbers.
type Config struct {
	PrimerThreshold   float64 `yaml:"primer_threshold"`    // S1 entry gate
	RetestThreshold   float64 `yaml:"retest_threshold"`    // S2 entry gate
	FirstDipThreshold float64 `yaml:"first_dip_threshold"` // S3 first-dip gate
	DXGateThreshold   float64 `yaml:"dx_gate_threshold"`   // S3 discount entry TS gate
	DXBase            float64 `yaml:"dx_base"`             // base DX requirement
	DXDecaySuppress   float64 `yaml:"dx_decay_suppress"`   // EDX contribution to the DX requirement
	DXBandBoost       float64 `yaml:"dx_band_boost"`       // band-depth relief of the DX requirement
	TrimOXThreshold   float64 `yaml:"trim_ox_threshold"`   // overextension trim gate
	RawStateBuys      bool    `yaml:"raw_state_buys"`      // experimental S2/S3 raw buy flags
}

// DefaultConfig returns the standard gate tuning.
func DefaultConfig() Config {
	return Config{
		PrimerThreshold:   0.60,
		RetestThreshold:   0.60,
		FirstDipThreshold: 0.50,
		DXGateThreshold:   0.60,
		DXBase:            0.55,
		DXDecaySuppress:   0.25,
		DXBandBoost:       0.15,
		TrimOXThreshold:   0.65,
		RawStateBuys:      false,
	}
}

// Episode windows for the one-shot first-dip entry.
const (
	firstDipFastBars = 6  // near EMA20/30
	firstDipSlowBars = 12 // near EMA60
)

// Generate produces the per-bar flags and updates the state latches
// (first-dip one-shot, trim adjacency). st must be the post-transition
// state for this bar.
func Generate(ind models.IndicatorSet, st *models.EngineState, res score.Result, cfg Config) models.SignalFlags {
	var f models.SignalFlags
	if st.ExitReason != models.ExitNone {
		f.ExitPosition = true
		f.ExitReason = st.ExitReason
	}
	if !st.State.Tradable() {
		st.TrimmedLastBar = false
		return f
	}

	ts := res.Scores.TS

	switch st.State {
	case models.StateEarlyUptrend:
		f.BuySignal = withinATR(ind.Close, ind.EMA[60], ind.ATR, 1.0) &&
			(ind.EMASlope[60] > 0 || ind.EMASlope[144] >= 0) &&
			gate(ts, ind.EMA[60], ind.ATR, res.SR, cfg.PrimerThreshold)

	case models.StateUnconfirmed:
		f.RetestBuySignal = withinATR(ind.Close, ind.EMA[333], ind.ATR, 0.5) &&
			(ind.EMASlope[250] > 0 || ind.EMASlope[333] >= 0) &&
			gate(ts, ind.EMA[333], ind.ATR, res.SR, cfg.RetestThreshold)
		if cfg.RawStateBuys {
			f.BuySignal = gate(ts, ind.Close, ind.ATR, res.SR, cfg.RetestThreshold)
		}

	case models.StateConfirmed:
		if !st.EmergencyExit && !st.FirstDipBuyTaken {
			f.FirstDipBuySignal = firstDip(ind, st, res, cfg)
			if f.FirstDipBuySignal {
				st.FirstDipBuyTaken = true
			}
		}
		if !st.EmergencyExit {
			f.DXBuySignal = dxBuy(ind, res, cfg)
		}
		if cfg.RawStateBuys {
			f.BuySignal = gate(ts, ind.Close, ind.ATR, res.SR, cfg.DXGateThreshold)
		}
	}

	// Trim: stretched price parked at a known level.
	if st.State == models.StateUnconfirmed || st.State == models.StateConfirmed {
		f.TrimFlag = res.Scores.OX >= cfg.TrimOXThreshold &&
			score.NearestSRDistance(ind.Close, res.SR) <= ind.ATR
	}

	// A rebuy decorates an entry landing on the bar right after a trim.
	if st.TrimmedLastBar && f.AnyBuy() {
		f.RebuySignal = true
	}
	st.TrimmedLastBar = f.TrimFlag

	return f
}

func firstDip(ind models.IndicatorSet, st *models.EngineState, res score.Result, cfg Config) bool {
	var anchored bool
	var anchor float64
	switch {
	case st.S3BarCount <= firstDipFastBars:
		// EMA60 stays a valid anchor on the earliest bars too; a deep
		// first dip can skip the fast band entirely.
		if withinATR(ind.Close, ind.EMA[20], ind.ATR, 0.5) {
			anchored, anchor = true, ind.EMA[20]
		} else if withinATR(ind.Close, ind.EMA[30], ind.ATR, 0.5) {
			anchored, anchor = true, ind.EMA[30]
		} else if withinATR(ind.Close, ind.EMA[60], ind.ATR, 0.5) {
			anchored, anchor = true, ind.EMA[60]
		}
	case st.S3BarCount <= firstDipSlowBars:
		if withinATR(ind.Close, ind.EMA[60], ind.ATR, 0.5) {
			anchored, anchor = true, ind.EMA[60]
		}
	}
	if !anchored {
		return false
	}
	if !(ind.EMASlope[144] > 0 || ind.EMASlope[250] >= 0) {
		return false
	}
	return gate(res.Scores.TS, anchor, ind.ATR, res.SR, cfg.FirstDipThreshold)
}

func dxBuy(ind models.IndicatorSet, res score.Result, cfg Config) bool {
	if ind.Close > ind.EMA[144] {
		return false
	}
	if !(ind.EMASlope[250] > 0 || ind.EMASlope[333] >= 0) {
		return false
	}
	if !gate(res.Scores.TS, ind.EMA[144], ind.ATR, res.SR, cfg.DXGateThreshold) {
		return false
	}
	required := cfg.DXBase + cfg.DXDecaySuppress*res.Scores.EDX - cfg.DXBandBoost*res.BandPos
	return res.Scores.DX >= required
}

// gate is the shared entry condition: trend strength plus the support
// bonus near the anchor must clear the threshold.
func gate(ts, anchor, atr float64, levels []float64, threshold float64) bool {
	return ts+score.SRBoost(anchor, atr, levels) >= threshold
}

func withinATR(price, anchor, atr, mult float64) bool {
	if atr <= 0 {
		return false
	}
	return math.Abs(price-anchor) <= mult*atr
}
