package models

import (
	"fmt"
	"math"
	"time"
)

// Bar is a closed OHLCV candle for one instrument on one timeframe.
// Seq is the monotonic close sequence assigned by the feed; evaluations
// for stale sequences are discarded.
type Bar struct {
	Instrument string
	Timeframe  string
	Timestamp  time.Time
	Seq        uint64
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
}

// Validate rejects malformed bars before they reach storage or the engine.
func (b Bar) Validate() error {
	if b.Instrument == "" {
		return fmt.Errorf("bar: empty instrument")
	}
	if b.Timeframe == "" {
		return fmt.Errorf("bar: empty timeframe")
	}
	if b.Timestamp.IsZero() {
		return fmt.Errorf("bar %s/%s: zero timestamp", b.Instrument, b.Timeframe)
	}
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bar %s/%s@%d: non-finite field", b.Instrument, b.Timeframe, b.Timestamp.Unix())
		}
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return fmt.Errorf("bar %s/%s@%d: non-positive price", b.Instrument, b.Timeframe, b.Timestamp.Unix())
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar %s/%s@%d: negative volume", b.Instrument, b.Timeframe, b.Timestamp.Unix())
	}
	if b.High < b.Low {
		return fmt.Errorf("bar %s/%s@%d: high below low", b.Instrument, b.Timeframe, b.Timestamp.Unix())
	}
	return nil
}

// Key identifies the evaluation stream a bar belongs to.
func (b Bar) Key() InstrumentKey {
	return InstrumentKey{Instrument: b.Instrument, Timeframe: b.Timeframe}
}

// InstrumentKey addresses one engine state in the arena.
type InstrumentKey struct {
	Instrument string
	Timeframe  string
}

func (k InstrumentKey) String() string {
	return k.Instrument + ":" + k.Timeframe
}
