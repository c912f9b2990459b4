package models

// ScoreSet holds the per-bar composite scores, each in [0,1].
// Zero values mean "not applicable in the current state", not "neutral".
type ScoreSet struct {
	TS  float64 // trend strength, all states
	OX  float64 // overextension, S2/S3
	DX  float64 // discount depth, S3
	EDX float64 // episode decay, S3
}

// Evaluation is the full published output for one bar of one series:
// state, scores, flags and the indicators they were derived from.
type Evaluation struct {
	Key    InstrumentKey
	Bar    Bar
	State  EngineState
	Scores ScoreSet
	Flags  SignalFlags

	Insufficient bool
}
