package signal

import (
	"testing"
	"time"

	"TrendPull/internal/domain/models"
	"TrendPull/internal/engine/score"
)

func tradableInd(close float64, emas map[int]float64, slopes map[int]float64) models.IndicatorSet {
	if slopes == nil {
		slopes = map[int]float64{20: 0, 30: 0, 60: 0, 144: 0, 250: 0, 333: 0}
	}
	return models.IndicatorSet{Close: close, EMA: emas, ATR: 2.0, EMASlope: slopes}
}

func resultWithTS(ts float64) score.Result {
	return score.Result{Scores: models.ScoreSet{TS: ts}}
}

func TestPrimerBuyInEarlyUptrend(t *testing.T) {
	ind := tradableInd(101, map[int]float64{20: 102, 30: 101, 60: 100, 144: 98, 250: 96, 333: 95},
		map[int]float64{20: 0.5, 30: 0.5, 60: 0.5, 144: 0.1, 250: 0, 333: 0})
	st := models.EngineState{State: models.StateEarlyUptrend, Bootstrapped: true}

	f := Generate(ind, &st, resultWithTS(0.70), DefaultConfig())
	if !f.BuySignal {
		t.Fatal("expected primer buy")
	}
	if f.RetestBuySignal || f.FirstDipBuySignal || f.DXBuySignal {
		t.Error("unexpected extra buy flags")
	}
}

func TestPrimerBlockedFarFromEMA60(t *testing.T) {
	// Close more than one ATR above EMA60.
	ind := tradableInd(103, map[int]float64{20: 102, 30: 101, 60: 100, 144: 98, 250: 96, 333: 95},
		map[int]float64{20: 0.5, 30: 0.5, 60: 0.5, 144: 0.1, 250: 0, 333: 0})
	ind.ATR = 1.0
	ind.Close = 102

	st := models.EngineState{State: models.StateEarlyUptrend, Bootstrapped: true}
	if f := Generate(ind, &st, resultWithTS(0.70), DefaultConfig()); f.BuySignal {
		t.Fatal("expected no buy beyond one ATR")
	}
}

func TestPrimerBlockedByFallingSlopes(t *testing.T) {
	ind := tradableInd(101, map[int]float64{20: 102, 30: 101, 60: 100, 144: 98, 250: 96, 333: 95},
		map[int]float64{20: 0, 30: 0, 60: -0.2, 144: -0.1, 250: 0, 333: 0})
	st := models.EngineState{State: models.StateEarlyUptrend, Bootstrapped: true}

	if f := Generate(ind, &st, resultWithTS(0.90), DefaultConfig()); f.BuySignal {
		t.Fatal("expected no buy with both slopes down")
	}
}

func TestPrimerBlockedBelowThreshold(t *testing.T) {
	ind := tradableInd(101, map[int]float64{20: 102, 30: 101, 60: 100, 144: 98, 250: 96, 333: 95},
		map[int]float64{20: 0.5, 30: 0.5, 60: 0.5, 144: 0.1, 250: 0, 333: 0})
	st := models.EngineState{State: models.StateEarlyUptrend, Bootstrapped: true}

	if f := Generate(ind, &st, resultWithTS(0.59), DefaultConfig()); f.BuySignal {
		t.Fatal("expected no buy under the gate")
	}
}

func TestRetestBuyNearEMA333(t *testing.T) {
	ind := tradableInd(100.5, map[int]float64{20: 103, 30: 102, 60: 101, 144: 100.8, 250: 100.2, 333: 100},
		map[int]float64{20: 0, 30: 0, 60: 0, 144: 0, 250: 0.1, 333: 0})
	ind.ATR = 2.0 // close within half an ATR of EMA333

	st := models.EngineState{State: models.StateUnconfirmed, Bootstrapped: true}
	f := Generate(ind, &st, resultWithTS(0.65), DefaultConfig())
	if !f.RetestBuySignal {
		t.Fatal("expected retest buy")
	}
	if f.BuySignal {
		t.Error("raw state buy leaked with RawStateBuys off")
	}
}

func TestFirstDipIsOneShot(t *testing.T) {
	ind := tradableInd(107.5, map[int]float64{20: 108, 30: 107, 60: 105, 144: 103, 250: 101, 333: 100},
		map[int]float64{20: 0, 30: 0, 60: 0, 144: 0.2, 250: 0.1, 333: 0})
	ind.ATR = 2.0

	st := models.EngineState{
		State:        models.StateConfirmed,
		S3StartTS:    time.Now(),
		S3BarCount:   3,
		Bootstrapped: true,
	}

	f := Generate(ind, &st, resultWithTS(0.55), DefaultConfig())
	if !f.FirstDipBuySignal {
		t.Fatal("expected first dip buy")
	}
	if !st.FirstDipBuyTaken {
		t.Fatal("one-shot latch not set")
	}

	st.S3BarCount++
	if f := Generate(ind, &st, resultWithTS(0.55), DefaultConfig()); f.FirstDipBuySignal {
		t.Fatal("first dip fired twice in one episode")
	}
}

func TestFirstDipAnchorsEMA60OnEarlyBars(t *testing.T) {
	// A deep dip in the first bars skips the fast band and lands on
	// EMA60 directly; the anchor must still hold.
	ind := tradableInd(105.5, map[int]float64{20: 112, 30: 110, 60: 105, 144: 103, 250: 101, 333: 100},
		map[int]float64{20: 0, 30: 0, 60: 0, 144: 0.2, 250: 0.1, 333: 0})
	ind.ATR = 2.0

	st := models.EngineState{
		State:        models.StateConfirmed,
		S3StartTS:    time.Now(),
		S3BarCount:   3,
		Bootstrapped: true,
	}

	f := Generate(ind, &st, resultWithTS(0.55), DefaultConfig())
	if !f.FirstDipBuySignal {
		t.Fatal("expected first dip buy at EMA60 on an early bar")
	}
}

func TestFirstDipWindowExpires(t *testing.T) {
	// Near EMA20 but outside both episode windows.
	ind := tradableInd(107.5, map[int]float64{20: 108, 30: 107, 60: 105, 144: 103, 250: 101, 333: 100},
		map[int]float64{20: 0, 30: 0, 60: 0, 144: 0.2, 250: 0.1, 333: 0})
	st := models.EngineState{
		State:        models.StateConfirmed,
		S3StartTS:    time.Now(),
		S3BarCount:   13,
		Bootstrapped: true,
	}
	if f := Generate(ind, &st, resultWithTS(0.90), DefaultConfig()); f.FirstDipBuySignal {
		t.Fatal("first dip fired outside its windows")
	}
}

func TestEmergencyExitGatesS3Entries(t *testing.T) {
	ind := tradableInd(102, map[int]float64{20: 108, 30: 107, 60: 105, 144: 103, 250: 101, 333: 100},
		map[int]float64{20: 0, 30: 0, 60: 0, 144: 0.2, 250: 0.1, 333: 0})
	st := models.EngineState{
		State:         models.StateConfirmed,
		S3StartTS:     time.Now(),
		S3BarCount:    2,
		EmergencyExit: true,
		Bootstrapped:  true,
	}
	f := Generate(ind, &st, resultWithTS(0.95), DefaultConfig())
	if f.FirstDipBuySignal || f.DXBuySignal {
		t.Fatal("entries fired under emergency exit")
	}
}

func TestDXBuyRequirementMoves(t *testing.T) {
	ind := tradableInd(102.5, map[int]float64{20: 108, 30: 107, 60: 105, 144: 103, 250: 101, 333: 100},
		map[int]float64{20: 0, 30: 0, 60: 0, 144: 0, 250: 0.1, 333: 0})
	st := models.EngineState{
		State:        models.StateConfirmed,
		S3StartTS:    time.Now(),
		S3BarCount:   20,
		Bootstrapped: true,
	}
	cfg := DefaultConfig()

	// Deep band, no decay: requirement drops to 0.55 - 0.15 = 0.40.
	res := resultWithTS(0.70)
	res.Scores.DX = 0.45
	res.BandPos = 1.0
	if f := Generate(ind, &st, res, cfg); !f.DXBuySignal {
		t.Fatal("expected dx buy with relaxed requirement")
	}

	// Heavy decay raises the requirement to 0.55 + 0.25 = 0.80.
	res.Scores.EDX = 1.0
	res.BandPos = 0
	if f := Generate(ind, &st, res, cfg); f.DXBuySignal {
		t.Fatal("dx buy fired despite decay-raised requirement")
	}
}

func TestDXBuyOnlyAtOrBelowEMA144(t *testing.T) {
	ind := tradableInd(104, map[int]float64{20: 108, 30: 107, 60: 105, 144: 103, 250: 101, 333: 100},
		map[int]float64{20: 0, 30: 0, 60: 0, 144: 0, 250: 0.1, 333: 0})
	st := models.EngineState{
		State:        models.StateConfirmed,
		S3StartTS:    time.Now(),
		S3BarCount:   20,
		Bootstrapped: true,
	}
	res := resultWithTS(0.90)
	res.Scores.DX = 1.0
	if f := Generate(ind, &st, res, DefaultConfig()); f.DXBuySignal {
		t.Fatal("dx buy fired above EMA144")
	}
}

func TestTrimThenRebuy(t *testing.T) {
	ind := tradableInd(110, map[int]float64{20: 108, 30: 107, 60: 105, 144: 103, 250: 101, 333: 100},
		map[int]float64{20: 0, 30: 0, 60: 0, 144: 0.2, 250: 0.1, 333: 0})
	st := models.EngineState{
		State:        models.StateConfirmed,
		S3StartTS:    time.Now(),
		S3BarCount:   2,
		Bootstrapped: true,
	}

	// Bar 1: overextended at a known level -> trim.
	trimRes := resultWithTS(0.40)
	trimRes.Scores.OX = 0.80
	trimRes.SR = []float64{110.5}
	f := Generate(ind, &st, trimRes, DefaultConfig())
	if !f.TrimFlag {
		t.Fatal("expected trim")
	}
	if f.RebuySignal {
		t.Fatal("rebuy without a prior trim bar")
	}
	if !st.TrimmedLastBar {
		t.Fatal("trim latch not set")
	}

	// Bar 2: dip entry right after the trim -> rebuy.
	st.S3BarCount++
	dipInd := ind
	dipInd.Close = 107.5
	dipRes := resultWithTS(0.60)
	f = Generate(dipInd, &st, dipRes, DefaultConfig())
	if !f.FirstDipBuySignal {
		t.Fatal("expected dip entry after trim")
	}
	if !f.RebuySignal {
		t.Fatal("expected rebuy on the bar after a trim")
	}
	if st.TrimmedLastBar {
		t.Fatal("trim latch should clear on a non-trim bar")
	}
}

func TestExitReasonSetsExitPosition(t *testing.T) {
	ind := tradableInd(90, map[int]float64{20: 88, 30: 89, 60: 95, 144: 97, 250: 99, 333: 100}, nil)
	st := models.EngineState{
		State:        models.StateDowntrend,
		ExitReason:   models.ExitFastBandBottom,
		Bootstrapped: true,
	}
	f := Generate(ind, &st, resultWithTS(0.10), DefaultConfig())
	if !f.ExitPosition {
		t.Fatal("expected exit position")
	}
	if f.ExitReason != models.ExitFastBandBottom {
		t.Errorf("exit reason = %q, want %q", f.ExitReason, models.ExitFastBandBottom)
	}
	if f.AnyBuy() || f.TrimFlag {
		t.Error("flags emitted in a non-tradable state")
	}
}

func TestRawStateBuysOptIn(t *testing.T) {
	ind := tradableInd(103, map[int]float64{20: 105, 30: 104, 60: 103.5, 144: 102, 250: 101, 333: 100},
		map[int]float64{20: 0, 30: 0, 60: 0, 144: 0, 250: 0.1, 333: 0})
	st := models.EngineState{State: models.StateUnconfirmed, Bootstrapped: true}

	cfg := DefaultConfig()
	cfg.RawStateBuys = true
	if f := Generate(ind, &st, resultWithTS(0.70), cfg); !f.BuySignal {
		t.Fatal("expected raw state buy when enabled")
	}
}
