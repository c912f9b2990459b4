package score

import (
	"TrendPull/internal/engine/indicator"

	"TrendPull/internal/domain/models"
)

// Discount grades how buyable the current pullback is within a confirmed
// uptrend. Only meaningful in S3. Returns the composite plus the raw band
// position, which the DX-buy gate reuses as its threshold boost.
//
//	bandPos    depth of price inside the EMA144..EMA333 band
//	exhaustion RSI washed out below midline
//	relief     selling pressure fading (ATR cooling, RSI turning, ADX easing)
//	curl       fast band beginning to turn back up
func Discount(s *models.IndicatorSeries, ind models.IndicatorSet) (dx, bandPos float64) {
	bandPos = BandPosition(ind)
	exhaustion := indicator.Clamp01((rsiMidline - ind.RSI) / rsiExhaustRange)
	relief := reliefScore(ind)
	curl := curlScore(s, ind)

	dx = indicator.Clamp01(0.40*bandPos + 0.20*exhaustion + 0.20*relief + 0.20*curl)
	return dx, bandPos
}

const (
	rsiMidline      = 50.0
	rsiExhaustRange = 30.0
)

// BandPosition is 0 at EMA144 and 1 at EMA333; above the band it is 0,
// below it saturates at 1.
func BandPosition(ind models.IndicatorSet) float64 {
	upper, lower := ind.EMA[144], ind.EMA[333]
	width := upper - lower
	if width <= 0 {
		return 0
	}
	return indicator.Clamp01((upper - ind.Close) / width)
}

// reliefScore rises as the down-leg loses force: ATR flattening or
// falling, RSI slope recovering, ADX slope rolling over.
func reliefScore(ind models.IndicatorSet) float64 {
	rsiUp := indicator.Clamp01(0.5 + ind.RSISlope/rsiSlopeScale)
	adxDown := indicator.Clamp01(0.5 - ind.ADXSlope/adxSlopeScale)
	return indicator.Clamp01(0.5*rsiUp + 0.5*adxDown)
}

// curlScore rewards EMA20 re-acceleration after the dip.
func curlScore(s *models.IndicatorSeries, ind models.IndicatorSet) float64 {
	i := s.Len() - 1
	half := models.SlopeLookback / 2
	if i-2*half < 0 || ind.ATR <= 0 {
		return 0
	}
	ema := s.EMA[20]
	recent := ema[i] - ema[i-half]
	prior := ema[i-half] - ema[i-2*half]
	accel := recent - prior
	if accel <= 0 {
		return 0
	}
	return indicator.Clamp01(accel / ind.ATR)
}
