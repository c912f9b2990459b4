package state

import (
	"testing"
	"time"

	"TrendPull/internal/domain/models"
)

var testKey = models.InstrumentKey{Instrument: "SOLUSDT", Timeframe: "1h"}

func testBar(seq uint64, ts time.Time) models.Bar {
	return models.Bar{
		Instrument: testKey.Instrument,
		Timeframe:  testKey.Timeframe,
		Timestamp:  ts,
		Seq:        seq,
		Open:       100, High: 102, Low: 99, Close: 101, Volume: 10,
	}
}

func indWith(close float64, emas map[int]float64) models.IndicatorSet {
	return models.IndicatorSet{
		Close:    close,
		EMA:      emas,
		ATR:      1.0,
		EMASlope: map[int]float64{20: 0, 30: 0, 60: 0, 144: 0, 250: 0, 333: 0},
	}
}

func bullishInd() models.IndicatorSet {
	return indWith(110, map[int]float64{20: 108, 30: 107, 60: 105, 144: 103, 250: 101, 333: 100})
}

func bearishInd() models.IndicatorSet {
	return indWith(90, map[int]float64{20: 92, 30: 93, 60: 95, 144: 97, 250: 99, 333: 100})
}

func TestBootstrapFullBullishEntersConfirmed(t *testing.T) {
	ts := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	bar := testBar(7, ts)

	st := Bootstrap(bar, bullishInd(), testKey)
	if st.State != models.StateConfirmed {
		t.Fatalf("state = %s, want %s", st.State, models.StateConfirmed)
	}
	if !st.S3StartTS.Equal(ts) {
		t.Errorf("s3 start = %v, want %v", st.S3StartTS, ts)
	}
	if st.S3BarCount != 1 {
		t.Errorf("s3 bar count = %d, want 1", st.S3BarCount)
	}
	if !st.Bootstrapped {
		t.Error("expected bootstrapped state")
	}
}

func TestBootstrapFullBearishEntersDowntrend(t *testing.T) {
	st := Bootstrap(testBar(1, time.Now()), bearishInd(), testKey)
	if st.State != models.StateDowntrend {
		t.Fatalf("state = %s, want %s", st.State, models.StateDowntrend)
	}
}

func TestBootstrapMixedIsIndeterminate(t *testing.T) {
	ind := indWith(100, map[int]float64{20: 101, 30: 99, 60: 100, 144: 98, 250: 102, 333: 100})
	st := Bootstrap(testBar(1, time.Now()), ind, testKey)
	if st.State != models.StateIndeterminate {
		t.Fatalf("state = %s, want %s", st.State, models.StateIndeterminate)
	}
}

func TestFastBandOverrideForcesDowntrend(t *testing.T) {
	// EMA20 and EMA30 both under every slow average.
	ind := indWith(95, map[int]float64{20: 88, 30: 89, 60: 95, 144: 97, 250: 99, 333: 100})

	ts := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	prev := models.EngineState{
		Key:              testKey,
		State:            models.StateConfirmed,
		S3StartTS:        ts.Add(-24 * time.Hour),
		S3BarCount:       24,
		FirstDipBuyTaken: true,
		Bootstrapped:     true,
	}

	st := Apply(prev, testBar(30, ts), ind)
	if st.State != models.StateDowntrend {
		t.Fatalf("state = %s, want %s", st.State, models.StateDowntrend)
	}
	if st.ExitReason != models.ExitFastBandBottom {
		t.Errorf("exit reason = %q, want %q", st.ExitReason, models.ExitFastBandBottom)
	}
	if !st.S3StartTS.IsZero() {
		t.Error("episode start not cleared")
	}
	if st.FirstDipBuyTaken {
		t.Error("first dip latch not cleared")
	}
}

func TestFastBandOverrideBeatsBootstrap(t *testing.T) {
	ind := indWith(95, map[int]float64{20: 88, 30: 89, 60: 95, 144: 97, 250: 99, 333: 100})
	st := Bootstrap(testBar(1, time.Now()), ind, testKey)
	if st.State != models.StateDowntrend {
		t.Fatalf("state = %s, want %s", st.State, models.StateDowntrend)
	}
	if st.ExitReason != models.ExitFastBandBottom {
		t.Errorf("exit reason = %q, want %q", st.ExitReason, models.ExitFastBandBottom)
	}
}

func TestDowntrendToEarlyUptrend(t *testing.T) {
	ind := indWith(106, map[int]float64{20: 107, 30: 106, 60: 105, 144: 110, 250: 112, 333: 115})

	prev := models.EngineState{Key: testKey, State: models.StateDowntrend, Bootstrapped: true}
	st := Apply(prev, testBar(2, time.Now()), ind)
	if st.State != models.StateEarlyUptrend {
		t.Fatalf("state = %s, want %s", st.State, models.StateEarlyUptrend)
	}
	if st.PrevState != models.StateDowntrend {
		t.Errorf("prev state = %s, want %s", st.PrevState, models.StateDowntrend)
	}
}

func TestEarlyUptrendToUnconfirmedAboveEMA333(t *testing.T) {
	ind := indWith(116, map[int]float64{20: 114, 30: 113, 60: 112, 144: 113, 250: 114, 333: 115})

	prev := models.EngineState{Key: testKey, State: models.StateEarlyUptrend, Bootstrapped: true}
	st := Apply(prev, testBar(3, time.Now()), ind)
	if st.State != models.StateUnconfirmed {
		t.Fatalf("state = %s, want %s", st.State, models.StateUnconfirmed)
	}
}

func TestUnconfirmedToConfirmedOnFullOrder(t *testing.T) {
	ts := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)
	prev := models.EngineState{Key: testKey, State: models.StateUnconfirmed, Bootstrapped: true}

	st := Apply(prev, testBar(4, ts), bullishInd())
	if st.State != models.StateConfirmed {
		t.Fatalf("state = %s, want %s", st.State, models.StateConfirmed)
	}
	if !st.S3StartTS.Equal(ts) {
		t.Errorf("s3 start = %v, want %v", st.S3StartTS, ts)
	}
}

func TestUnconfirmedFallsBackBelowEMA333(t *testing.T) {
	ind := indWith(114, map[int]float64{20: 116, 30: 115, 60: 113, 144: 114, 250: 114.5, 333: 115})

	prev := models.EngineState{Key: testKey, State: models.StateUnconfirmed, Bootstrapped: true}
	st := Apply(prev, testBar(5, time.Now()), ind)
	if st.State != models.StateEarlyUptrend {
		t.Fatalf("state = %s, want %s", st.State, models.StateEarlyUptrend)
	}
}

func TestConfirmedExitsWhenAllEMAsBelow333(t *testing.T) {
	// All other averages under EMA333, fast band still above EMA60.
	ind := indWith(96, map[int]float64{20: 95, 30: 96, 60: 90, 144: 92, 250: 94, 333: 100})

	prev := models.EngineState{
		Key:          testKey,
		State:        models.StateConfirmed,
		S3StartTS:    time.Now().Add(-time.Hour),
		S3BarCount:   10,
		Bootstrapped: true,
	}
	st := Apply(prev, testBar(6, time.Now()), ind)
	if st.State != models.StateDowntrend {
		t.Fatalf("state = %s, want %s", st.State, models.StateDowntrend)
	}
	if st.ExitReason != models.ExitAllEMAsBelow333 {
		t.Errorf("exit reason = %q, want %q", st.ExitReason, models.ExitAllEMAsBelow333)
	}
	if st.S3BarCount != 0 || !st.S3StartTS.IsZero() {
		t.Error("episode not cleared on exit")
	}
}

func TestConfirmedLatchesEmergencyExitBelowEMA333(t *testing.T) {
	// Below EMA333 but ordering not fully broken: state holds.
	ind := indWith(99, map[int]float64{20: 108, 30: 107, 60: 105, 144: 103, 250: 101, 333: 100})

	prev := models.EngineState{
		Key:          testKey,
		State:        models.StateConfirmed,
		S3StartTS:    time.Now().Add(-time.Hour),
		S3BarCount:   3,
		Bootstrapped: true,
	}
	st := Apply(prev, testBar(7, time.Now()), ind)
	if st.State != models.StateConfirmed {
		t.Fatalf("state = %s, want %s", st.State, models.StateConfirmed)
	}
	if !st.EmergencyExit {
		t.Error("expected emergency exit latched")
	}
	if st.S3BarCount != 4 {
		t.Errorf("s3 bar count = %d, want 4", st.S3BarCount)
	}

	// Reclaim clears the latch on the next bar.
	st2 := Apply(st, testBar(8, time.Now()), bullishInd())
	if st2.EmergencyExit {
		t.Error("emergency exit not cleared after reclaim")
	}
}

func TestIndeterminateResolvesOnFirstFullOrdering(t *testing.T) {
	prev := models.EngineState{Key: testKey, State: models.StateIndeterminate, Bootstrapped: true}

	st := Apply(prev, testBar(9, time.Now()), bullishInd())
	if st.State != models.StateConfirmed {
		t.Fatalf("bullish: state = %s, want %s", st.State, models.StateConfirmed)
	}

	st = Apply(prev, testBar(9, time.Now()), bearishInd())
	if st.State != models.StateDowntrend {
		t.Fatalf("bearish: state = %s, want %s", st.State, models.StateDowntrend)
	}
}

func TestNeedsRebootstrap(t *testing.T) {
	cases := []struct {
		name string
		st   models.EngineState
		want bool
	}{
		{"fresh", models.EngineState{}, false},
		{"healthy s3", models.EngineState{State: models.StateConfirmed, S3StartTS: time.Now(), Bootstrapped: true}, false},
		{"s3 without start", models.EngineState{State: models.StateConfirmed, Bootstrapped: true}, true},
		{"s1 with stale episode", models.EngineState{State: models.StateEarlyUptrend, S3StartTS: time.Now(), Bootstrapped: true}, true},
		{"s0 with emergency latch", models.EngineState{State: models.StateDowntrend, EmergencyExit: true, Bootstrapped: true}, true},
	}
	for _, tc := range cases {
		if got := NeedsRebootstrap(tc.st); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}
