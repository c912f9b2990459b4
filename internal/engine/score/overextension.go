package score

import (
	"TrendPull/internal/engine/indicator"

	"TrendPull/internal/domain/models"
)

// Overextension grades how stretched the current advance is. Computed in
// S2 and S3 only; callers zero it elsewhere. Components:
//
//	stretch   price distance above EMA20/60/144/250, in ATR units
//	expansion fast/slow EMA separation growing over the slope lookback
//	surge     ATR elevated against its recent average
//	fragility EMA20 deceleration while price is extended
func Overextension(s *models.IndicatorSeries, ind models.IndicatorSet) float64 {
	if ind.ATR <= 0 {
		return 0
	}

	var stretch float64
	for _, p := range []int{20, 60, 144, 250} {
		d := (ind.Close - ind.EMA[p]) / ind.ATR
		if d < 0 {
			d = 0
		}
		stretch += indicator.Clamp01(d / stretchSaturationATR)
	}
	stretch /= 4

	expansion := emaExpansion(s, ind)
	surge := atrSurge(s, ind)
	fragility := ema20Fragility(s, ind)

	return indicator.Clamp01(0.35*stretch + 0.25*expansion + 0.25*surge + 0.15*fragility)
}

const (
	stretchSaturationATR = 4.0 // 4 ATR above an EMA saturates that term
	surgeWindow          = 20
)

// emaExpansion measures growth of the EMA20..EMA250 spread over the slope
// lookback, normalized by ATR.
func emaExpansion(s *models.IndicatorSeries, ind models.IndicatorSet) float64 {
	i := s.Len() - 1
	j := i - models.SlopeLookback
	if j < 0 {
		return 0
	}
	now := s.EMA[20][i] - s.EMA[250][i]
	then := s.EMA[20][j] - s.EMA[250][j]
	return indicator.Clamp01((now - then) / ind.ATR)
}

// atrSurge compares current ATR against its average over surgeWindow bars.
func atrSurge(s *models.IndicatorSeries, ind models.IndicatorSet) float64 {
	i := s.Len() - 1
	j := i - surgeWindow
	if j < 0 {
		return 0
	}
	var sum float64
	for k := j; k < i; k++ {
		sum += s.ATR[k]
	}
	avg := sum / surgeWindow
	if avg <= 0 {
		return 0
	}
	return indicator.Clamp01(ind.ATR/avg - 1)
}

// ema20Fragility scores deceleration of EMA20: the advance losing its own
// engine while still extended. Second difference over half lookbacks.
func ema20Fragility(s *models.IndicatorSeries, ind models.IndicatorSet) float64 {
	i := s.Len() - 1
	half := models.SlopeLookback / 2
	if i-2*half < 0 {
		return 0
	}
	ema := s.EMA[20]
	recent := ema[i] - ema[i-half]
	prior := ema[i-half] - ema[i-2*half]
	decel := prior - recent
	if decel <= 0 || prior <= 0 {
		return 0
	}
	return indicator.Clamp01(decel / ind.ATR)
}
