package lever

import (
	"fmt"
	"math"

	"TrendPull/internal/domain/models"
)

// Delta is one (ΔA, ΔE) pair from the lookup table.
type Delta struct {
	A float64 `yaml:"a"`
	E float64 `yaml:"e"`
}

func (d Delta) add(o Delta) Delta { return Delta{A: d.A + o.A, E: d.E + o.E} }

// DeltaTable maps state, active flags and fresh transitions to lever
// deltas. Every number here is provisional tuning and ships in config.
type DeltaTable struct {
	Baseline map[models.TrendState]Delta `yaml:"baseline"`

	S1Buy   Delta `yaml:"s1_buy"`
	S2Trim  Delta `yaml:"s2_trim"`
	S2Rebuy Delta `yaml:"s2_rebuy"`
	S3Trim  Delta `yaml:"s3_trim"`
	S3Rebuy Delta `yaml:"s3_rebuy"`

	ShockS1ToS0 Delta `yaml:"shock_s1_s0"`
	ShockS2ToS0 Delta `yaml:"shock_s2_s0"`
	ShockS3ToS0 Delta `yaml:"shock_s3_s0"`
}

// TFRow is one execution-timeframe weight row. Rows must sum to 1.
type TFRow struct {
	Macro float64 `yaml:"macro"`
	Meso  float64 `yaml:"meso"`
	Micro float64 `yaml:"micro"`
}

// Weight selects the row entry for a regime timeframe.
func (r TFRow) Weight(tf models.RegimeTimeframe) float64 {
	switch tf {
	case models.RegimeMacro:
		return r.Macro
	case models.RegimeMeso:
		return r.Meso
	case models.RegimeMicro:
		return r.Micro
	}
	return 0
}

// Config is the full lever tuning: driver weights, per-execution-timeframe
// weight rows, the delta table and the neutral bases.
type Config struct {
	DriverWeights    map[models.DriverID]float64 `yaml:"driver_weights"`
	TimeframeWeights map[string]TFRow            `yaml:"timeframe_weights"`
	Deltas           DeltaTable                  `yaml:"deltas"`
	ABase            float64                     `yaml:"a_base"`
	EBase            float64                     `yaml:"e_base"`
}

// DefaultConfig returns the shipped tuning.
func DefaultConfig() Config {
	return Config{
		DriverWeights: map[models.DriverID]float64{
			models.DriverBTC:    1.0,
			models.DriverALT:    1.5,
			models.DriverBucket: 3.0,
			models.DriverBTCD:   -1.0,
			models.DriverUSDTD:  -3.0,
		},
		TimeframeWeights: map[string]TFRow{
			"1m":  {Macro: 0.10, Meso: 0.30, Micro: 0.60},
			"5m":  {Macro: 0.15, Meso: 0.40, Micro: 0.45},
			"15m": {Macro: 0.20, Meso: 0.50, Micro: 0.30},
			"1h":  {Macro: 0.30, Meso: 0.55, Micro: 0.15},
			"4h":  {Macro: 0.55, Meso: 0.38, Micro: 0.07},
			"1d":  {Macro: 0.80, Meso: 0.18, Micro: 0.02},
		},
		Deltas: DeltaTable{
			Baseline: map[models.TrendState]Delta{
				models.StateDowntrend:     {A: -0.30, E: 0.30},
				models.StateEarlyUptrend:  {A: 0.25, E: -0.15},
				models.StateUnconfirmed:   {A: 0.10, E: 0.05},
				models.StateConfirmed:     {A: 0.20, E: -0.05},
				models.StateIndeterminate: {A: 0, E: 0},
			},
			S1Buy:       Delta{A: 0.20, E: -0.10},
			S2Trim:      Delta{A: -0.20, E: 0.25},
			S2Rebuy:     Delta{A: 0.15, E: -0.10},
			S3Trim:      Delta{A: -0.25, E: 0.30},
			S3Rebuy:     Delta{A: 0.20, E: -0.10},
			ShockS1ToS0: Delta{A: -0.40, E: 0.40},
			ShockS2ToS0: Delta{A: -0.35, E: 0.35},
			ShockS3ToS0: Delta{A: -0.50, E: 0.50},
		},
		ABase: 0.5,
		EBase: 0.5,
	}
}

const rowSumEpsilon = 1e-9

// Validate rejects incomplete or inconsistent tuning. Callers treat a
// failure here as fatal at startup.
func (c Config) Validate() error {
	for _, d := range models.AllDrivers {
		if _, ok := c.DriverWeights[d]; !ok {
			return fmt.Errorf("lever config: missing driver weight for %s", d)
		}
	}
	if len(c.TimeframeWeights) == 0 {
		return fmt.Errorf("lever config: no timeframe weight rows")
	}
	for tf, row := range c.TimeframeWeights {
		if row.Macro < 0 || row.Meso < 0 || row.Micro < 0 {
			return fmt.Errorf("lever config: negative weight in row %q", tf)
		}
		if sum := row.Macro + row.Meso + row.Micro; math.Abs(sum-1.0) > rowSumEpsilon {
			return fmt.Errorf("lever config: row %q sums to %v, want 1.0", tf, sum)
		}
	}
	for _, st := range []models.TrendState{
		models.StateDowntrend, models.StateEarlyUptrend,
		models.StateUnconfirmed, models.StateConfirmed,
	} {
		if _, ok := c.Deltas.Baseline[st]; !ok {
			return fmt.Errorf("lever config: missing baseline delta for %s", st)
		}
	}
	return nil
}
