package score

import (
	"TrendPull/internal/engine/indicator"

	"TrendPull/internal/domain/models"
)

// Slope scales: a 10-bar move of rsiSlopeScale×10 RSI points (or the ADX
// equivalent) saturates its component.
const (
	rsiSlopeScale = 2.0
	adxSlopeScale = 1.5
)

// TrendStrength maps the 10-bar RSI and ADX slopes into [0,1]. 0.5 is
// flat momentum; rising RSI and ADX push toward 1.
func TrendStrength(ind models.IndicatorSet) float64 {
	rsi := clampSym(ind.RSISlope / rsiSlopeScale)
	adx := clampSym(ind.ADXSlope / adxSlopeScale)
	return indicator.Clamp01(0.5 + 0.5*(0.5*rsi+0.5*adx))
}

// clampSym bounds v into [-1,1].
func clampSym(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
