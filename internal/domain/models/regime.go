package models

import "time"

// DriverID names one of the five regime series feeding the lever.
type DriverID string

const (
	DriverBTC    DriverID = "BTC"
	DriverALT    DriverID = "ALT"
	DriverBucket DriverID = "BUCKET"
	DriverBTCD   DriverID = "BTCD"
	DriverUSDTD  DriverID = "USDTD"
)

// AllDrivers in canonical summation order.
var AllDrivers = []DriverID{DriverBTC, DriverALT, DriverBucket, DriverBTCD, DriverUSDTD}

// RegimeTimeframe is one of the three fixed driver timeframes, distinct
// from any instrument's execution timeframe.
type RegimeTimeframe string

const (
	RegimeMacro RegimeTimeframe = "macro" // 1d
	RegimeMeso  RegimeTimeframe = "meso"  // 1h
	RegimeMicro RegimeTimeframe = "micro" // 1m
)

// AllRegimeTimeframes in canonical summation order.
var AllRegimeTimeframes = []RegimeTimeframe{RegimeMacro, RegimeMeso, RegimeMicro}

// RegimeDriverReading is one driver's classification on one timeframe.
type RegimeDriverReading struct {
	Driver    DriverID
	Timeframe RegimeTimeframe
	State     TrendState
	Flags     SignalFlags

	// TransitionFrom is set when the state changed on this bar.
	TransitionOccurred bool
	TransitionFrom     TrendState

	Available bool
}

// RegimeSnapshot is the immutable set of up to 15 readings for one bar
// close. It is published only once every available reading is in place;
// readers never observe a partial snapshot.
type RegimeSnapshot struct {
	Seq       uint64
	Timestamp time.Time

	// Readings is keyed by driver then timeframe and covers the four
	// market-wide drivers. A missing entry means the driver series was
	// unavailable and contributes zero.
	Readings map[DriverID]map[RegimeTimeframe]RegimeDriverReading

	// BucketReadings holds the BUCKET driver per market-cap bucket; an
	// instrument only ever consumes the readings of its own bucket.
	BucketReadings map[string]map[RegimeTimeframe]RegimeDriverReading
}

// Reading looks up one cell, reporting whether it is present and usable.
// bucket is only consulted for the BUCKET driver.
func (s *RegimeSnapshot) Reading(d DriverID, tf RegimeTimeframe, bucket string) (RegimeDriverReading, bool) {
	if s == nil {
		return RegimeDriverReading{}, false
	}
	var byTF map[RegimeTimeframe]RegimeDriverReading
	if d == DriverBucket {
		if bucket == "" {
			return RegimeDriverReading{}, false
		}
		byTF = s.BucketReadings[bucket]
	} else {
		byTF = s.Readings[d]
	}
	r, ok := byTF[tf]
	if !ok || !r.Available {
		return RegimeDriverReading{}, false
	}
	return r, true
}
