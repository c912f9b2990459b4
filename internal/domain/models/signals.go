package models

// SignalFlags are the per-bar trade hints. All are ephemeral; nothing here
// is carried across bars except through EngineState latches.
type SignalFlags struct {
	BuySignal         bool // S1 primer entry near EMA60
	RetestBuySignal   bool // S2 retest entry near EMA333
	FirstDipBuySignal bool // one-shot S3 entry near the fast band
	DXBuySignal       bool // S3 discount entry at or below EMA144
	RebuySignal       bool // re-entry on the bar after a trim
	TrimFlag          bool // reduce exposure, S2/S3 only
	ExitPosition      bool
	ExitReason        ExitReason
}

// AnyBuy reports whether any entry flag fired this bar.
func (f SignalFlags) AnyBuy() bool {
	return f.BuySignal || f.RetestBuySignal || f.FirstDipBuySignal || f.DXBuySignal || f.RebuySignal
}
