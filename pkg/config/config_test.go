package config

import (
	"os"
	"path/filepath"
	"testing"
)

const minimalYAML = `
environment: development
backend:
  type: clickhouse
engine:
  window_bars: 400
instruments:
  - symbol: SOLUSDT
    exec_tf: 1h
    bucket: L1
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMinimal(t *testing.T) {
	c, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Backend.Type != "clickhouse" {
		t.Errorf("backend = %q", c.Backend.Type)
	}
	if len(c.Instruments) != 1 || c.Instruments[0].Bucket != "L1" {
		t.Errorf("instruments = %+v", c.Instruments)
	}
	// Defaults fill in the tuning tables when the file omits them.
	if len(c.Lever.TimeframeWeights) == 0 {
		t.Error("lever defaults not applied")
	}
	if c.Engine.Signals.PrimerThreshold == 0 {
		t.Error("signal defaults not applied")
	}
	if c.Regime.WindowBars != c.Engine.WindowBars {
		t.Errorf("regime window = %d, want engine window %d", c.Regime.WindowBars, c.Engine.WindowBars)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing environment", `
backend:
  type: kafka
engine:
  window_bars: 400
instruments:
  - symbol: SOLUSDT
    exec_tf: 1h
`},
		{"bad backend", `
environment: development
backend:
  type: postgres
engine:
  window_bars: 400
instruments:
  - symbol: SOLUSDT
    exec_tf: 1h
`},
		{"no instruments", `
environment: development
backend:
  type: kafka
engine:
  window_bars: 400
`},
		{"exec_tf without weight row", `
environment: development
backend:
  type: kafka
engine:
  window_bars: 400
instruments:
  - symbol: SOLUSDT
    exec_tf: 2h
`},
		{"window too small", `
environment: development
backend:
  type: kafka
engine:
  window_bars: 100
instruments:
  - symbol: SOLUSDT
    exec_tf: 1h
`},
	}
	for _, tc := range cases {
		if _, err := Load(writeConfig(t, tc.body)); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("FEED_API_KEY", "env-key")
	t.Setenv("REDIS_ADDR", "redis:6380")

	c, err := LoadWithEnv(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Feed.APIKey != "env-key" {
		t.Errorf("api key = %q", c.Feed.APIKey)
	}
	if c.Redis.Addr != "redis:6380" {
		t.Errorf("redis addr = %q", c.Redis.Addr)
	}
}
