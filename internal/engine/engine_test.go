package engine

import (
	"errors"
	"testing"
	"time"

	"TrendPull/internal/domain/models"
	"TrendPull/internal/engine/signal"
)

func windowBars(n int) []models.Bar {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	for i := range bars {
		c := 100 + 0.5*float64(i)
		bars[i] = models.Bar{
			Instrument: "SOLUSDT",
			Timeframe:  "1h",
			Timestamp:  start.Add(time.Duration(i) * time.Hour),
			Seq:        uint64(i + 1),
			Open:       c - 0.2,
			High:       c + 1,
			Low:        c - 1,
			Close:      c,
			Volume:     10,
		}
	}
	return bars
}

func TestEvaluateWindowEmpty(t *testing.T) {
	if _, err := EvaluateWindow(nil, nil, signal.DefaultConfig()); err == nil {
		t.Fatal("expected error for empty window")
	}
}

func TestEvaluateWindowRejectsMalformedBar(t *testing.T) {
	bars := windowBars(400)
	bars[len(bars)-1].Close = -1

	prev := models.EngineState{State: models.StateConfirmed, S3StartTS: time.Now(), Bootstrapped: true}
	_, err := EvaluateWindow(bars, &prev, signal.DefaultConfig())
	if err == nil {
		t.Fatal("expected validation error")
	}
	// The caller keeps prev untouched; nothing to assert beyond the error.
}

func TestEvaluateWindowRejectsStaleSeq(t *testing.T) {
	bars := windowBars(400)
	prev := models.EngineState{
		State:        models.StateConfirmed,
		S3StartTS:    time.Now(),
		LastSeq:      bars[len(bars)-1].Seq + 5,
		Bootstrapped: true,
	}
	_, err := EvaluateWindow(bars, &prev, signal.DefaultConfig())
	if !errors.Is(err, ErrStaleBar) {
		t.Fatalf("err = %v, want ErrStaleBar", err)
	}
}

func TestEvaluateWindowRejectsTimeRegression(t *testing.T) {
	bars := windowBars(400)
	prev := models.EngineState{
		State:         models.StateConfirmed,
		S3StartTS:     time.Now(),
		LastSeq:       1,
		LastTimestamp: bars[len(bars)-1].Timestamp.Add(time.Hour),
		Bootstrapped:  true,
	}
	_, err := EvaluateWindow(bars, &prev, signal.DefaultConfig())
	if err == nil || errors.Is(err, ErrStaleBar) {
		t.Fatalf("err = %v, want timestamp error", err)
	}
}

func TestEvaluateWindowInsufficientHistoryKeepsState(t *testing.T) {
	bars := windowBars(100)
	prev := models.EngineState{
		Key:          bars[0].Key(),
		State:        models.StateEarlyUptrend,
		LastSeq:      10,
		Bootstrapped: true,
	}
	ev, err := EvaluateWindow(bars, &prev, signal.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if !ev.Insufficient {
		t.Fatal("expected insufficient evaluation")
	}
	if ev.State.State != models.StateEarlyUptrend {
		t.Errorf("state = %s, want retained %s", ev.State.State, models.StateEarlyUptrend)
	}
	if ev.State.LastSeq != bars[len(bars)-1].Seq {
		t.Errorf("last seq = %d, want %d", ev.State.LastSeq, bars[len(bars)-1].Seq)
	}
	if ev.Flags.AnyBuy() || ev.Flags.TrimFlag || ev.Flags.ExitPosition {
		t.Error("signals emitted on insufficient history")
	}
}

func TestEvaluateWindowInsufficientHistoryFreshSeries(t *testing.T) {
	ev, err := EvaluateWindow(windowBars(50), nil, signal.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if !ev.Insufficient {
		t.Fatal("expected insufficient evaluation")
	}
	if ev.State.State != models.StateIndeterminate {
		t.Errorf("state = %s, want %s", ev.State.State, models.StateIndeterminate)
	}
}

func TestEvaluateWindowBootstrapsRisingSeries(t *testing.T) {
	bars := windowBars(400)
	ev, err := EvaluateWindow(bars, nil, signal.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if ev.Insufficient {
		t.Fatal("unexpected insufficient evaluation")
	}
	// A long monotonic rise carries the full bullish ordering.
	if ev.State.State != models.StateConfirmed {
		t.Fatalf("state = %s, want %s", ev.State.State, models.StateConfirmed)
	}
	if ev.State.S3StartTS.IsZero() {
		t.Error("confirmed state without episode start")
	}
	if !ev.State.Bootstrapped {
		t.Error("state not marked bootstrapped")
	}
	for name, v := range map[string]float64{"TS": ev.Scores.TS, "OX": ev.Scores.OX, "DX": ev.Scores.DX, "EDX": ev.Scores.EDX} {
		if v < 0 || v > 1 {
			t.Errorf("%s = %v, out of [0,1]", name, v)
		}
	}
}

func trendBars(closes []float64) []models.Bar {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		bars[i] = models.Bar{
			Instrument: "SOLUSDT",
			Timeframe:  "1h",
			Timestamp:  start.Add(time.Duration(i) * time.Hour),
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

func stateRank(s models.TrendState) int {
	switch s {
	case models.StateDowntrend:
		return 0
	case models.StateEarlyUptrend:
		return 1
	case models.StateUnconfirmed:
		return 2
	case models.StateConfirmed:
		return 3
	}
	return -1
}

// A series that sells off and then grinds back up must walk the whole
// S0 -> S1 -> S2 -> S3 ladder one state per bar, with the episode start
// pinned to the bar that confirmed.
func TestEvaluateWindowFullUptrendProgression(t *testing.T) {
	closes := make([]float64, 0, 1400)
	p := 400.0
	for i := 0; i < 450; i++ {
		closes = append(closes, p)
		p -= 0.5
	}
	for i := 0; i < 950; i++ {
		closes = append(closes, p)
		p += 0.8
	}
	bars := trendBars(closes)
	cfg := signal.DefaultConfig()
	window := 400

	first, err := EvaluateWindow(bars[:window], nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if first.State.State != models.StateDowntrend {
		t.Fatalf("bootstrap state = %s, want %s", first.State.State, models.StateDowntrend)
	}

	prev := first.State
	firstSeen := map[models.TrendState]int{models.StateDowntrend: window - 1}
	for end := window + 1; end <= len(bars); end++ {
		ev, err := EvaluateWindow(bars[end-window:end], &prev, cfg)
		if err != nil {
			t.Fatalf("bar %d: %v", end-1, err)
		}
		cur := ev.State.State
		if cur == models.StateIndeterminate {
			t.Fatalf("bar %d: dropped to %s mid-series", end-1, cur)
		}
		if cur != prev.State {
			if stateRank(cur) > stateRank(prev.State)+1 {
				t.Fatalf("bar %d: skipped from %s to %s", end-1, prev.State, cur)
			}
			if _, seen := firstSeen[cur]; !seen {
				firstSeen[cur] = end - 1
			}
		}
		prev = ev.State
	}

	s1, ok1 := firstSeen[models.StateEarlyUptrend]
	s2, ok2 := firstSeen[models.StateUnconfirmed]
	s3, ok3 := firstSeen[models.StateConfirmed]
	if !ok1 || !ok2 || !ok3 {
		t.Fatalf("progression incomplete: reached %v", firstSeen)
	}
	if !(s1 < s2 && s2 < s3) {
		t.Fatalf("transitions out of order: S1 at %d, S2 at %d, S3 at %d", s1, s2, s3)
	}
	if prev.State != models.StateConfirmed {
		t.Fatalf("final state = %s, want %s", prev.State, models.StateConfirmed)
	}
	if !prev.S3StartTS.Equal(bars[s3].Timestamp) {
		t.Errorf("episode start = %v, want bar %d at %v", prev.S3StartTS, s3, bars[s3].Timestamp)
	}
	if want := len(bars) - s3; prev.S3BarCount != want {
		t.Errorf("s3 bar count = %d, want %d", prev.S3BarCount, want)
	}
}

func TestEvaluateWindowAdvancesPriorState(t *testing.T) {
	bars := windowBars(400)
	first, err := EvaluateWindow(bars[:399], nil, signal.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	prev := first.State

	second, err := EvaluateWindow(bars, &prev, signal.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if second.State.State != models.StateConfirmed {
		t.Fatalf("state = %s, want %s", second.State.State, models.StateConfirmed)
	}
	if second.State.S3BarCount != prev.S3BarCount+1 {
		t.Errorf("s3 bar count = %d, want %d", second.State.S3BarCount, prev.S3BarCount+1)
	}
	if !second.State.S3StartTS.Equal(prev.S3StartTS) {
		t.Error("episode start moved on a continuing episode")
	}
}
