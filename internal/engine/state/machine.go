package state

import (
	"TrendPull/internal/domain/models"
)

// Apply advances an engine state by one closed bar. The input is taken by
// value and the result returned by value so a failed evaluation can be
// discarded without touching the arena.
func Apply(st models.EngineState, bar models.Bar, ind models.IndicatorSet) models.EngineState {
	st.PrevState = st.State
	st.ExitReason = models.ExitNone
	st.LastSeq = bar.Seq
	st.LastTimestamp = bar.Timestamp

	// Fast-band override beats everything, including bootstrap.
	if fastBandAtBottom(ind) {
		st.State = models.StateDowntrend
		st.ExitReason = models.ExitFastBandBottom
		st.ClearEpisode()
		st.TrimmedLastBar = false
		st.Bootstrapped = true
		return st
	}

	if !st.Bootstrapped {
		return bootstrap(st, bar, ind)
	}

	switch st.State {
	case models.StateDowntrend:
		if ind.EMA[20] > ind.EMA[60] && ind.EMA[30] > ind.EMA[60] && ind.Close > ind.EMA[60] {
			st.State = models.StateEarlyUptrend
		}

	case models.StateEarlyUptrend:
		if ind.Close > ind.EMA[333] {
			st.State = models.StateUnconfirmed
		}

	case models.StateUnconfirmed:
		if ind.FullBullishOrder() {
			enterConfirmed(&st, bar)
		} else if ind.Close < ind.EMA[333] {
			st.State = models.StateEarlyUptrend
		}

	case models.StateConfirmed:
		if allEMAsBelow333(ind) {
			st.State = models.StateDowntrend
			st.ExitReason = models.ExitAllEMAsBelow333
			st.ClearEpisode()
			st.TrimmedLastBar = false
		} else {
			st.S3BarCount++
			st.EmergencyExit = ind.Close < ind.EMA[333]
		}

	case models.StateIndeterminate:
		if ind.FullBullishOrder() {
			enterConfirmed(&st, bar)
		} else if ind.FullBearishOrder() {
			st.State = models.StateDowntrend
		}
	}

	return st
}

// Bootstrap classifies a series with no usable prior state.
func Bootstrap(bar models.Bar, ind models.IndicatorSet, key models.InstrumentKey) models.EngineState {
	st := models.EngineState{Key: key, LastSeq: bar.Seq, LastTimestamp: bar.Timestamp}
	if fastBandAtBottom(ind) {
		st.State = models.StateDowntrend
		st.ExitReason = models.ExitFastBandBottom
		st.Bootstrapped = true
		return st
	}
	return bootstrap(st, bar, ind)
}

// NeedsRebootstrap detects episode bookkeeping that no longer matches the
// current state; the evaluator responds with a full Bootstrap.
func NeedsRebootstrap(st models.EngineState) bool {
	if !st.Bootstrapped {
		return false
	}
	inS3 := st.State == models.StateConfirmed
	if inS3 && st.S3StartTS.IsZero() {
		return true
	}
	if !inS3 && (!st.S3StartTS.IsZero() || st.EmergencyExit) {
		return true
	}
	return false
}

func bootstrap(st models.EngineState, bar models.Bar, ind models.IndicatorSet) models.EngineState {
	st.Bootstrapped = true
	switch {
	case ind.FullBullishOrder():
		enterConfirmed(&st, bar)
	case ind.FullBearishOrder():
		st.State = models.StateDowntrend
	default:
		st.State = models.StateIndeterminate
	}
	return st
}

func enterConfirmed(st *models.EngineState, bar models.Bar) {
	st.State = models.StateConfirmed
	st.S3StartTS = bar.Timestamp
	st.S3BarCount = 1
	st.FirstDipBuyTaken = false
	st.EmergencyExit = false
}

func fastBandAtBottom(ind models.IndicatorSet) bool {
	m := ind.MinSlowEMA()
	return ind.EMA[20] < m && ind.EMA[30] < m
}

func allEMAsBelow333(ind models.IndicatorSet) bool {
	for _, p := range []int{20, 30, 60, 144, 250} {
		if ind.EMA[p] >= ind.EMA[333] {
			return false
		}
	}
	return true
}
