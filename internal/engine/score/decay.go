package score

import (
	"TrendPull/internal/engine/indicator"

	"TrendPull/internal/domain/models"
)

// Decay grades how exhausted the current confirmed episode is. Three
// overlapping windows are scored (whole episode, last two thirds, last
// third) and blended with the later windows weighted heavier, so fresh
// deterioration dominates. Each window combines:
//
//	slow-field decay    EMA250/333 momentum fading, RSI/ADX trending down
//	structure failure   higher-high/higher-low giving way to lower-high/lower-low
//	participation decay VWAP rolling over
//	compression         EMA144-333 and EMA250-333 spreads narrowing
//
// episodeBars counts bars since the episode started, inclusive.
func Decay(s *models.IndicatorSeries, episodeBars int) float64 {
	n := s.Len()
	if episodeBars > n {
		episodeBars = n
	}
	if episodeBars < minDecayWindow {
		return 0
	}
	start := n - episodeBars

	full := windowDecay(s, start, n-1)
	mid := windowDecay(s, n-1-(episodeBars*2/3), n-1)
	late := windowDecay(s, n-1-(episodeBars/3), n-1)

	return indicator.Clamp01(0.2*full + 0.3*mid + 0.5*late)
}

const minDecayWindow = 12

func windowDecay(s *models.IndicatorSeries, from, to int) float64 {
	if from < 0 {
		from = 0
	}
	if to-from < 2 {
		return 0
	}
	slow := slowFieldDecay(s, from, to)
	structure := structureFailure(s, from, to)
	participation := participationDecay(s, from, to)
	compression := spreadCompression(s, from, to)
	return 0.30*slow + 0.30*structure + 0.20*participation + 0.20*compression
}

// slowFieldDecay compares the slow EMA slopes at the window edges and
// folds in the RSI/ADX drift across the window.
func slowFieldDecay(s *models.IndicatorSeries, from, to int) float64 {
	var fade float64
	for _, p := range []int{250, 333} {
		startSlope := indicator.Slope(s.EMA[p], from+models.SlopeLookback)
		endSlope := indicator.Slope(s.EMA[p], to)
		atr := s.ATR[to]
		if atr <= 0 {
			continue
		}
		fade += indicator.Clamp01((startSlope - endSlope) * float64(models.SlopeLookback) / atr)
	}
	fade /= 2

	rsiDrop := indicator.Clamp01((s.RSI[from] - s.RSI[to]) / 20)
	adxDrop := indicator.Clamp01((s.ADX[from] - s.ADX[to]) / 15)

	return indicator.Clamp01(0.5*fade + 0.25*rsiDrop + 0.25*adxDrop)
}

// structureFailure counts consecutive swing relationships in the window;
// the score is the bearish share of them.
func structureFailure(s *models.IndicatorSeries, from, to int) float64 {
	highs := windowSwings(FindSwingHighs(s.High), from, to)
	lows := windowSwings(FindSwingLows(s.Low), from, to)

	var bullish, bearish int
	for i := 1; i < len(highs); i++ {
		if highs[i].Price > highs[i-1].Price {
			bullish++ // higher high
		} else {
			bearish++ // lower high
		}
	}
	for i := 1; i < len(lows); i++ {
		if lows[i].Price > lows[i-1].Price {
			bullish++ // higher low
		} else {
			bearish++ // lower low
		}
	}
	total := bullish + bearish
	if total == 0 {
		return 0
	}
	return float64(bearish) / float64(total)
}

func windowSwings(swings []SwingPoint, from, to int) []SwingPoint {
	var out []SwingPoint
	for _, sw := range swings {
		if sw.Index >= from && sw.Index <= to {
			out = append(out, sw)
		}
	}
	return out
}

// participationDecay scores a falling VWAP across the window against ATR.
func participationDecay(s *models.IndicatorSeries, from, to int) float64 {
	atr := s.ATR[to]
	if atr <= 0 {
		return 0
	}
	drop := s.VWAP[from] - s.VWAP[to]
	if drop <= 0 {
		return 0
	}
	return indicator.Clamp01(drop / atr)
}

// spreadCompression scores the slow-band spreads narrowing from window
// start to window end.
func spreadCompression(s *models.IndicatorSeries, from, to int) float64 {
	var total float64
	pairs := [][2]int{{144, 333}, {250, 333}}
	for _, pr := range pairs {
		start := s.EMA[pr[0]][from] - s.EMA[pr[1]][from]
		end := s.EMA[pr[0]][to] - s.EMA[pr[1]][to]
		if start <= 0 {
			continue
		}
		total += indicator.Clamp01(1 - end/start)
	}
	return total / float64(len(pairs))
}
