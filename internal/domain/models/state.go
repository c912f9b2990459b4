package models

import "time"

// TrendState is the discrete phase of the uptrend cycle.
type TrendState string

const (
	StateDowntrend     TrendState = "S0" // bearish or broken structure
	StateEarlyUptrend  TrendState = "S1" // fast band reclaimed EMA60
	StateUnconfirmed   TrendState = "S2" // above EMA333 without full ordering
	StateConfirmed     TrendState = "S3" // full bullish ordering
	StateIndeterminate TrendState = "S4" // mixed structure, no signals
)

// ExitReason explains a forced transition into S0.
type ExitReason string

const (
	ExitNone            ExitReason = ""
	ExitFastBandBottom  ExitReason = "fast_band_at_bottom"
	ExitAllEMAsBelow333 ExitReason = "all_emas_below_333"
)

// EngineState is the full per-(instrument,timeframe) evaluation state.
// It is a value type: the arena stores copies and swaps them whole, so an
// aborted evaluation never leaves a half-written state behind.
type EngineState struct {
	Key InstrumentKey

	State      TrendState
	PrevState  TrendState
	ExitReason ExitReason

	// EmergencyExit is latched while price closes below EMA333 in S3.
	// It gates dip buys only; it does not change State.
	EmergencyExit bool

	// S3StartTS marks the beginning of the current confirmed episode.
	S3StartTS time.Time
	// S3BarCount counts bars elapsed since S3StartTS, inclusive.
	S3BarCount int
	// FirstDipBuyTaken is the one-shot latch for the first-dip entry.
	FirstDipBuyTaken bool

	// TrimmedLastBar is set when the previous bar emitted a trim; a rebuy
	// flag is only valid on the bar immediately after.
	TrimmedLastBar bool

	// LastSeq is the bar sequence this state was computed from. Evaluations
	// carrying an older sequence lose.
	LastSeq       uint64
	LastTimestamp time.Time

	Bootstrapped bool
}

// Episode resets the confirmed-uptrend bookkeeping.
func (e *EngineState) ClearEpisode() {
	e.S3StartTS = time.Time{}
	e.S3BarCount = 0
	e.FirstDipBuyTaken = false
	e.EmergencyExit = false
}

// Tradable reports whether the state participates in signal generation.
func (s TrendState) Tradable() bool {
	return s == StateEarlyUptrend || s == StateUnconfirmed || s == StateConfirmed
}
