package models

// MinHistoryBars is the minimum number of closed bars required before the
// slowest EMA (333) is considered meaningful.
const MinHistoryBars = 333

// SlopeLookback is the bar offset used for all slope readings.
const SlopeLookback = 10

// EMAPeriods lists every moving average the engine maintains, fast to slow.
var EMAPeriods = []int{20, 30, 60, 144, 250, 333}

// IndicatorSeries holds full indicator history aligned to the bar window.
// Slices share one length; leading entries of warm-up length are zero
// (talib convention) and must not be read.
type IndicatorSeries struct {
	Close  []float64
	High   []float64
	Low    []float64
	Volume []float64
	EMA    map[int][]float64
	ATR    []float64
	RSI    []float64
	ADX    []float64
	VWAP   []float64
}

// Len returns the number of bars covered by the series.
func (s *IndicatorSeries) Len() int { return len(s.Close) }

// IndicatorSet is the snapshot of every indicator at the bar under
// evaluation, plus the 10-bar slopes the state and score layers consume.
type IndicatorSet struct {
	Close float64
	High  float64
	Low   float64

	EMA map[int]float64
	ATR float64
	RSI float64
	ADX float64

	// Slopes over SlopeLookback bars.
	EMASlope map[int]float64
	RSISlope float64
	ADXSlope float64
}

// MinSlowEMA returns the lowest of the four slower averages, the floor the
// fast band is compared against.
func (s IndicatorSet) MinSlowEMA() float64 {
	m := s.EMA[60]
	for _, p := range []int{144, 250, 333} {
		if v := s.EMA[p]; v < m {
			m = v
		}
	}
	return m
}

// FullBullishOrder reports EMA20>EMA60, EMA30>EMA60 and EMA60>EMA144>EMA250>EMA333.
func (s IndicatorSet) FullBullishOrder() bool {
	return s.EMA[20] > s.EMA[60] && s.EMA[30] > s.EMA[60] &&
		s.EMA[60] > s.EMA[144] && s.EMA[144] > s.EMA[250] && s.EMA[250] > s.EMA[333]
}

// FullBearishOrder is the mirror of FullBullishOrder.
func (s IndicatorSet) FullBearishOrder() bool {
	return s.EMA[20] < s.EMA[60] && s.EMA[30] < s.EMA[60] &&
		s.EMA[60] < s.EMA[144] && s.EMA[144] < s.EMA[250] && s.EMA[250] < s.EMA[333]
}
