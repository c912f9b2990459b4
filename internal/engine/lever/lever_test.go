package lever

import (
	"math"
	"testing"

	"TrendPull/internal/domain/models"
)

func fullSnapshot(state models.TrendState, flags models.SignalFlags) *models.RegimeSnapshot {
	snap := &models.RegimeSnapshot{
		Seq:            1,
		Readings:       make(map[models.DriverID]map[models.RegimeTimeframe]models.RegimeDriverReading),
		BucketReadings: make(map[string]map[models.RegimeTimeframe]models.RegimeDriverReading),
	}
	for _, d := range models.AllDrivers {
		if d == models.DriverBucket {
			continue
		}
		snap.Readings[d] = make(map[models.RegimeTimeframe]models.RegimeDriverReading)
		for _, tf := range models.AllRegimeTimeframes {
			snap.Readings[d][tf] = models.RegimeDriverReading{
				Driver: d, Timeframe: tf, State: state, Flags: flags, Available: true,
			}
		}
	}
	snap.BucketReadings["L1"] = make(map[models.RegimeTimeframe]models.RegimeDriverReading)
	for _, tf := range models.AllRegimeTimeframes {
		snap.BucketReadings["L1"][tf] = models.RegimeDriverReading{
			Driver: models.DriverBucket, Timeframe: tf, State: state, Flags: flags, Available: true,
		}
	}
	return snap
}

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateRejectsBadRowSum(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TimeframeWeights["1h"] = TFRow{Macro: 0.5, Meso: 0.5, Micro: 0.5}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected row sum error")
	}
}

func TestValidateRejectsNegativeWeight(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TimeframeWeights["1h"] = TFRow{Macro: -0.2, Meso: 0.7, Micro: 0.5}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected negative weight error")
	}
}

func TestValidateRejectsMissingDriver(t *testing.T) {
	cfg := DefaultConfig()
	delete(cfg.DriverWeights, models.DriverUSDTD)
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected missing driver error")
	}
}

func TestValidateRejectsMissingBaseline(t *testing.T) {
	cfg := DefaultConfig()
	delete(cfg.Deltas.Baseline, models.StateConfirmed)
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected missing baseline error")
	}
}

func TestCombineUnknownExecTF(t *testing.T) {
	_, err := Combine(DefaultConfig(), "SOLUSDT", "2h", "L1", fullSnapshot(models.StateConfirmed, models.SignalFlags{}), models.IntentDelta{})
	if err == nil {
		t.Fatal("expected error for unconfigured exec tf")
	}
}

func TestCombineOutputsStayBounded(t *testing.T) {
	cfg := DefaultConfig()
	cases := []struct {
		name   string
		state  models.TrendState
		flags  models.SignalFlags
		intent models.IntentDelta
	}{
		{"max bullish", models.StateConfirmed, models.SignalFlags{RebuySignal: true}, models.IntentDelta{DeltaA: 5, DeltaE: -5}},
		{"max bearish", models.StateDowntrend, models.SignalFlags{}, models.IntentDelta{DeltaA: -5, DeltaE: 5}},
	}
	for _, tc := range cases {
		out, err := Combine(cfg, "SOLUSDT", "1h", "L1", fullSnapshot(tc.state, tc.flags), tc.intent)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		for name, v := range map[string]float64{"A": out.AFinal, "E": out.EFinal} {
			if v < 0 || v > 1 {
				t.Errorf("%s: %s = %v, out of [0,1]", tc.name, name, v)
			}
		}
	}
}

func TestCombineIntentIsCapped(t *testing.T) {
	out, err := Combine(DefaultConfig(), "SOLUSDT", "1h", "", nil, models.IntentDelta{DeltaA: 7.5, DeltaE: -7.5})
	if err != nil {
		t.Fatal(err)
	}
	if out.IntentApplied.DeltaA != models.IntentCap {
		t.Errorf("applied ΔA = %v, want %v", out.IntentApplied.DeltaA, models.IntentCap)
	}
	if out.IntentApplied.DeltaE != -models.IntentCap {
		t.Errorf("applied ΔE = %v, want %v", out.IntentApplied.DeltaE, -models.IntentCap)
	}
	if out.Intent.DeltaA != 7.5 {
		t.Errorf("raw intent not preserved: %v", out.Intent.DeltaA)
	}
}

func TestCombineNilSnapshotIsAllMissing(t *testing.T) {
	cfg := DefaultConfig()
	out, err := Combine(cfg, "SOLUSDT", "1h", "L1", nil, models.IntentDelta{})
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range out.Contributions {
		if !c.Missing {
			t.Fatalf("contribution %s/%s not marked missing", c.Driver, c.Timeframe)
		}
		if c.DeltaA != 0 || c.DeltaE != 0 {
			t.Fatalf("missing contribution carries weight: %+v", c)
		}
	}
	if out.AFinal != cfg.ABase || out.EFinal != cfg.EBase {
		t.Errorf("missing-everything levers = (%v, %v), want bases", out.AFinal, out.EFinal)
	}
}

func TestCombineUnassignedBucketContributesZero(t *testing.T) {
	snap := fullSnapshot(models.StateUnconfirmed, models.SignalFlags{})

	with, err := Combine(DefaultConfig(), "SOLUSDT", "1h", "L1", snap, models.IntentDelta{})
	if err != nil {
		t.Fatal(err)
	}
	without, err := Combine(DefaultConfig(), "SOLUSDT", "1h", "", snap, models.IntentDelta{})
	if err != nil {
		t.Fatal(err)
	}

	var bucketMissing int
	for _, c := range without.Contributions {
		if c.Driver == models.DriverBucket {
			if !c.Missing {
				t.Fatal("bucket contribution present without an assignment")
			}
			bucketMissing++
		}
	}
	if bucketMissing != len(models.AllRegimeTimeframes) {
		t.Errorf("bucket missing cells = %d, want %d", bucketMissing, len(models.AllRegimeTimeframes))
	}
	if with.AFinal == without.AFinal {
		t.Error("bucket driver had no effect when assigned")
	}
}

func TestCombineDominanceWeightsOppose(t *testing.T) {
	snap := fullSnapshot(models.StateConfirmed, models.SignalFlags{})
	out, err := Combine(DefaultConfig(), "SOLUSDT", "1h", "L1", snap, models.IntentDelta{})
	if err != nil {
		t.Fatal(err)
	}

	byDriver := func(d models.DriverID, tf models.RegimeTimeframe) models.Contribution {
		for _, c := range out.Contributions {
			if c.Driver == d && c.Timeframe == tf {
				return c
			}
		}
		t.Fatalf("no contribution for %s/%s", d, tf)
		return models.Contribution{}
	}

	btc := byDriver(models.DriverBTC, models.RegimeMeso)
	btcd := byDriver(models.DriverBTCD, models.RegimeMeso)
	usdtd := byDriver(models.DriverUSDTD, models.RegimeMeso)

	// Same reading, inverse weights: dominance contributions flip sign.
	if btc.DeltaA <= 0 || btcd.DeltaA >= 0 || usdtd.DeltaA >= 0 {
		t.Fatalf("unexpected signs: btc=%v btcd=%v usdtd=%v", btc.DeltaA, btcd.DeltaA, usdtd.DeltaA)
	}
	if math.Abs(usdtd.DeltaA-3*btcd.DeltaA) > 1e-12 {
		t.Errorf("USDTD ΔA = %v, want 3x BTCD ΔA (%v)", usdtd.DeltaA, btcd.DeltaA)
	}
}

func TestCombineTransitionShockStacks(t *testing.T) {
	snap := fullSnapshot(models.StateDowntrend, models.SignalFlags{})
	for _, tf := range models.AllRegimeTimeframes {
		r := snap.Readings[models.DriverBTC][tf]
		r.TransitionOccurred = true
		r.TransitionFrom = models.StateConfirmed
		snap.Readings[models.DriverBTC][tf] = r
	}

	out, err := Combine(DefaultConfig(), "SOLUSDT", "1h", "L1", snap, models.IntentDelta{})
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range out.Contributions {
		if c.Driver != models.DriverBTC {
			continue
		}
		// S0 baseline -0.30 plus S3->S0 shock -0.50.
		if math.Abs(c.BaseA-(-0.80)) > 1e-12 {
			t.Errorf("%s base ΔA = %v, want -0.80", c.Timeframe, c.BaseA)
		}
		if math.Abs(c.BaseE-0.80) > 1e-12 {
			t.Errorf("%s base ΔE = %v, want 0.80", c.Timeframe, c.BaseE)
		}
	}
}

func TestCombineFlagModifiersApply(t *testing.T) {
	snap := fullSnapshot(models.StateConfirmed, models.SignalFlags{TrimFlag: true})
	out, err := Combine(DefaultConfig(), "SOLUSDT", "1h", "L1", snap, models.IntentDelta{})
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range out.Contributions {
		if c.Driver != models.DriverBTC {
			continue
		}
		// S3 baseline (0.20, -0.05) plus S3 trim (-0.25, 0.30).
		if math.Abs(c.BaseA-(-0.05)) > 1e-12 || math.Abs(c.BaseE-0.25) > 1e-12 {
			t.Errorf("%s base = (%v, %v), want (-0.05, 0.25)", c.Timeframe, c.BaseA, c.BaseE)
		}
	}
}

func TestTFRowWeightsCoverConfiguredTimeframes(t *testing.T) {
	cfg := DefaultConfig()
	for _, tf := range []string{"1m", "5m", "15m", "1h", "4h", "1d"} {
		row, ok := cfg.TimeframeWeights[tf]
		if !ok {
			t.Fatalf("no weight row for %s", tf)
		}
		sum := row.Macro + row.Meso + row.Micro
		if math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("row %s sums to %v", tf, sum)
		}
	}
}
