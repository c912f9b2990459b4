package models

import (
	"math"
	"testing"
	"time"
)

func validBar() Bar {
	return Bar{
		Instrument: "SOLUSDT",
		Timeframe:  "1h",
		Timestamp:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Seq:        42,
		Open:       100,
		High:       102,
		Low:        99,
		Close:      101,
		Volume:     1500,
	}
}

func TestBarValidate(t *testing.T) {
	if err := validBar().Validate(); err != nil {
		t.Fatalf("valid bar rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Bar)
	}{
		{"empty instrument", func(b *Bar) { b.Instrument = "" }},
		{"empty timeframe", func(b *Bar) { b.Timeframe = "" }},
		{"zero timestamp", func(b *Bar) { b.Timestamp = time.Time{} }},
		{"nan close", func(b *Bar) { b.Close = math.NaN() }},
		{"inf high", func(b *Bar) { b.High = math.Inf(1) }},
		{"zero open", func(b *Bar) { b.Open = 0 }},
		{"negative close", func(b *Bar) { b.Close = -1 }},
		{"negative volume", func(b *Bar) { b.Volume = -1 }},
		{"high below low", func(b *Bar) { b.High = 98 }},
	}
	for _, tc := range cases {
		b := validBar()
		tc.mutate(&b)
		if err := b.Validate(); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestBarKey(t *testing.T) {
	k := validBar().Key()
	if k.Instrument != "SOLUSDT" || k.Timeframe != "1h" {
		t.Fatalf("unexpected key %+v", k)
	}
	if k.String() != "SOLUSDT:1h" {
		t.Fatalf("unexpected key string %q", k.String())
	}
}

func TestIntentDeltaCapped(t *testing.T) {
	cases := []struct {
		in, want IntentDelta
	}{
		{IntentDelta{0.5, -0.5}, IntentDelta{0.5, -0.5}},
		{IntentDelta{7.5, -9}, IntentDelta{IntentCap, -IntentCap}},
		{IntentDelta{-2.0, 2.0}, IntentDelta{-2.0, 2.0}},
	}
	for _, tc := range cases {
		if got := tc.in.Capped(); got != tc.want {
			t.Errorf("Capped(%+v) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}
