package score

import (
	"math"

	"TrendPull/internal/domain/models"
)

// SwingPoint is a confirmed local extreme in the bar window.
type SwingPoint struct {
	Price float64
	Index int
	High  bool
}

const (
	swingLookback = 5
	srTolerance   = 0.01 // cluster levels within 1%
)

// FindSwingHighs identifies local highs confirmed on both sides by
// swingLookback bars.
func FindSwingHighs(highs []float64) []SwingPoint {
	var out []SwingPoint
	for i := swingLookback; i < len(highs)-swingLookback; i++ {
		isSwing := true
		for j := i - swingLookback; j <= i+swingLookback; j++ {
			if j != i && highs[j] >= highs[i] {
				isSwing = false
				break
			}
		}
		if isSwing {
			out = append(out, SwingPoint{Price: highs[i], Index: i, High: true})
		}
	}
	return out
}

// FindSwingLows identifies local lows confirmed on both sides.
func FindSwingLows(lows []float64) []SwingPoint {
	var out []SwingPoint
	for i := swingLookback; i < len(lows)-swingLookback; i++ {
		isSwing := true
		for j := i - swingLookback; j <= i+swingLookback; j++ {
			if j != i && lows[j] <= lows[i] {
				isSwing = false
				break
			}
		}
		if isSwing {
			out = append(out, SwingPoint{Price: lows[i], Index: i, High: false})
		}
	}
	return out
}

// SRLevels clusters swing extremes into support/resistance levels. Swings
// within srTolerance of an existing level merge into it.
func SRLevels(s *models.IndicatorSeries) []float64 {
	swings := append(FindSwingLows(s.Low), FindSwingHighs(s.High)...)
	var levels []float64
	for _, sw := range swings {
		merged := false
		for i, lv := range levels {
			if math.Abs(sw.Price-lv)/lv < srTolerance {
				levels[i] = (lv + sw.Price) / 2
				merged = true
				break
			}
		}
		if !merged {
			levels = append(levels, sw.Price)
		}
	}
	return levels
}

// NearestSRDistance returns the distance from price to the closest level,
// or +Inf when no level is known.
func NearestSRDistance(price float64, levels []float64) float64 {
	d := math.Inf(1)
	for _, lv := range levels {
		if dd := math.Abs(price - lv); dd < d {
			d = dd
		}
	}
	return d
}

// SRBoost rewards proximity of the anchor price to a known level: full
// boost at the level, fading linearly to zero at one ATR away.
func SRBoost(anchor, atr float64, levels []float64) float64 {
	if atr <= 0 || len(levels) == 0 {
		return 0
	}
	d := NearestSRDistance(anchor, levels)
	if math.IsInf(d, 1) || d >= atr {
		return 0
	}
	return srBoostMax * (1 - d/atr)
}

const srBoostMax = 0.15
