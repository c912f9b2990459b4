package indicator

import (
	"errors"
	"math"

	"github.com/markcheno/go-talib"

	"TrendPull/internal/domain/models"
)

// ErrInsufficientHistory is returned when the window is shorter than the
// slowest EMA period.
var ErrInsufficientHistory = errors.New("insufficient_history")

const oscPeriod = 14 // ATR/RSI/ADX

// Series computes full indicator history over an ordered bar window.
// Leading entries shorter than each warm-up are zero (talib convention);
// callers must not read indices below models.MinHistoryBars.
func Series(bars []models.Bar) *models.IndicatorSeries {
	n := len(bars)
	s := &models.IndicatorSeries{
		Close:  make([]float64, n),
		High:   make([]float64, n),
		Low:    make([]float64, n),
		Volume: make([]float64, n),
		EMA:    make(map[int][]float64, len(models.EMAPeriods)),
	}
	for i, b := range bars {
		s.Close[i] = b.Close
		s.High[i] = b.High
		s.Low[i] = b.Low
		s.Volume[i] = b.Volume
	}
	if n == 0 {
		return s
	}
	for _, p := range models.EMAPeriods {
		if n >= p {
			s.EMA[p] = talib.Ema(s.Close, p)
		} else {
			s.EMA[p] = make([]float64, n)
		}
	}
	if n > oscPeriod {
		s.ATR = talib.Atr(s.High, s.Low, s.Close, oscPeriod)
		s.RSI = talib.Rsi(s.Close, oscPeriod)
		s.ADX = talib.Adx(s.High, s.Low, s.Close, oscPeriod)
	} else {
		s.ATR = make([]float64, n)
		s.RSI = make([]float64, n)
		s.ADX = make([]float64, n)
	}
	s.VWAP = vwap(bars)
	return s
}

// Latest extracts the IndicatorSet for the final bar of the series,
// including every 10-bar slope. It fails when fewer than
// models.MinHistoryBars bars are present.
func Latest(s *models.IndicatorSeries) (models.IndicatorSet, error) {
	n := s.Len()
	if n < models.MinHistoryBars {
		return models.IndicatorSet{}, ErrInsufficientHistory
	}
	i := n - 1
	set := models.IndicatorSet{
		Close:    s.Close[i],
		High:     s.High[i],
		Low:      s.Low[i],
		EMA:      make(map[int]float64, len(models.EMAPeriods)),
		EMASlope: make(map[int]float64, len(models.EMAPeriods)),
		ATR:      s.ATR[i],
		RSI:      s.RSI[i],
		ADX:      s.ADX[i],
		RSISlope: Slope(s.RSI, i),
		ADXSlope: Slope(s.ADX, i),
	}
	for _, p := range models.EMAPeriods {
		set.EMA[p] = s.EMA[p][i]
		set.EMASlope[p] = Slope(s.EMA[p], i)
	}
	return set, nil
}

// Compute is the convenience path: bars in, latest IndicatorSet out.
func Compute(bars []models.Bar) (models.IndicatorSet, *models.IndicatorSeries, error) {
	s := Series(bars)
	set, err := Latest(s)
	if err != nil {
		return models.IndicatorSet{}, nil, err
	}
	return set, s, nil
}

// Slope is the per-bar rate of change over the fixed lookback, ending at
// index i. Returns 0 when the lookback reaches before the series start.
func Slope(series []float64, i int) float64 {
	j := i - models.SlopeLookback
	if j < 0 || i >= len(series) {
		return 0
	}
	return (series[i] - series[j]) / float64(models.SlopeLookback)
}

// SlopeAt is Slope evaluated at the series end.
func SlopeAt(series []float64) float64 {
	return Slope(series, len(series)-1)
}

// vwap is the running volume-weighted average of typical price from the
// window start. Zero-volume prefixes fall back to typical price itself.
func vwap(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	var pvSum, vSum float64
	for i, b := range bars {
		tp := (b.High + b.Low + b.Close) / 3
		pvSum += tp * b.Volume
		vSum += b.Volume
		if vSum > 0 {
			out[i] = pvSum / vSum
		} else {
			out[i] = tp
		}
	}
	return out
}

// Clamp01 bounds v into [0,1] and flattens NaN to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
