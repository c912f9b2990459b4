package indicator

import (
	"math"
	"testing"
	"time"

	"TrendPull/internal/domain/models"
)

func risingBars(n int) []models.Bar {
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

func TestComputeRejectsShortWindow(t *testing.T) {
	_, _, err := Compute(risingBars(models.MinHistoryBars - 1))
	if err != ErrInsufficientHistory {
		t.Fatalf("err = %v, want %v", err, ErrInsufficientHistory)
	}
}

func TestComputeRisingSeries(t *testing.T) {
	set, series, err := Compute(risingBars(400))
	if err != nil {
		t.Fatal(err)
	}
	if series.Len() != 400 {
		t.Fatalf("series length = %d", series.Len())
	}

	// A steadily rising close orders the averages fast over slow.
	if !(set.EMA[20] > set.EMA[60] && set.EMA[60] > set.EMA[144] &&
		set.EMA[144] > set.EMA[250] && set.EMA[250] > set.EMA[333]) {
		t.Errorf("averages not ordered: %v", set.EMA)
	}
	for _, p := range models.EMAPeriods {
		if set.EMASlope[p] <= 0 {
			t.Errorf("EMA%d slope = %v, want > 0", p, set.EMASlope[p])
		}
	}
	if set.ATR <= 0 {
		t.Errorf("ATR = %v, want > 0", set.ATR)
	}
	if set.Close != series.Close[399] {
		t.Errorf("close mismatch: %v vs %v", set.Close, series.Close[399])
	}
	for name, v := range map[string]float64{"ATR": set.ATR, "RSI": set.RSI, "ADX": set.ADX} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s is not finite: %v", name, v)
		}
	}
}

func TestSlope(t *testing.T) {
	series := make([]float64, 20)
	for i := range series {
		series[i] = float64(i) * 3
	}
	if got := Slope(series, 19); got != 3 {
		t.Errorf("slope = %v, want 3", got)
	}
	if got := SlopeAt(series); got != 3 {
		t.Errorf("slope at end = %v, want 3", got)
	}
	if got := Slope(series, 5); got != 0 {
		t.Errorf("slope before lookback = %v, want 0", got)
	}
}

func TestVWAPRunsWithVolume(t *testing.T) {
	bars := risingBars(350)
	s := Series(bars)
	last := s.VWAP[len(s.VWAP)-1]
	if last <= 0 || math.IsNaN(last) {
		t.Fatalf("vwap = %v", last)
	}
	// Running VWAP of a rising series trails the latest close.
	if last >= bars[len(bars)-1].Close {
		t.Errorf("vwap %v not below final close %v", last, bars[len(bars)-1].Close)
	}
}

func TestClamp01(t *testing.T) {
	cases := map[float64]float64{
		-0.5:       0,
		0:          0,
		0.4:        0.4,
		1:          1,
		2.3:        1,
		math.NaN(): 0,
	}
	for in, want := range cases {
		if got := Clamp01(in); got != want {
			t.Errorf("Clamp01(%v) = %v, want %v", in, got, want)
		}
	}
}
