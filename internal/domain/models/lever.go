package models

import "time"

// IntentDelta is the externally supplied per-token nudge, applied after
// regime weighting. Magnitudes beyond the cap are truncated, not rejected.
type IntentDelta struct {
	DeltaA float64
	DeltaE float64
}

// IntentCap bounds each IntentDelta component.
const IntentCap = 2.0

// Capped returns the delta with both components truncated to ±IntentCap.
func (d IntentDelta) Capped() IntentDelta {
	clampMag := func(v float64) float64 {
		if v > IntentCap {
			return IntentCap
		}
		if v < -IntentCap {
			return -IntentCap
		}
		return v
	}
	return IntentDelta{DeltaA: clampMag(d.DeltaA), DeltaE: clampMag(d.DeltaE)}
}

// Contribution is one weighted delta-table lookup in the lever breakdown.
type Contribution struct {
	Driver    DriverID
	Timeframe RegimeTimeframe
	State     TrendState

	BaseA float64 // unweighted baseline+flags+transition ΔA
	BaseE float64

	DriverWeight    float64
	TimeframeWeight float64

	DeltaA float64 // BaseA × DriverWeight × TimeframeWeight
	DeltaE float64

	Missing bool
}

// LeverOutput is the final bounded control pair plus full traceability.
type LeverOutput struct {
	Instrument  string
	ExecTF      string
	Bucket      string
	Timestamp   time.Time
	SnapshotSeq uint64

	AFinal float64
	EFinal float64

	Contributions []Contribution
	Intent        IntentDelta
	IntentApplied IntentDelta
}
