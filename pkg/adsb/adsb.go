package adsb

import (
	"context"
	"math"
	"time"
)

// AltitudeUnknown is the sentinel altitude for aircraft that have not reported one.
const AltitudeUnknown = -1.0

// Aircraft is the latest known state of one aircraft, as pushed to map clients.
// All position data is in WGS84 coordinate system.
type Aircraft struct {
	// ICAO is the unique 24-bit ICAO aircraft address (e.g., "A12345")
	ICAO string

	// Callsign is the flight number or aircraft registration
	Callsign string

	// Latitude in decimal degrees (-90 to +90)
	Latitude float64

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64

	// Altitude in feet above mean sea level (MSL), AltitudeUnknown if not reported
	Altitude float64

	// Speed is the ground speed in knots
	Speed float64

	// Heading is the ground track in degrees (0-359)
	// 0 = North, 90 = East, 180 = South, 270 = West
	Heading float64

	// VerticalRate in feet per minute (positive = climbing, negative = descending)
	VerticalRate float64

	// Validity of the optional kinematic fields
	HasSpeed        bool
	HasHeading      bool
	HasVerticalRate bool

	// Messages is the number of messages received from this aircraft
	Messages int

	// LastSeen is the timestamp of the last position update
	LastSeen time.Time
}

// AltitudeKnown reports whether the aircraft carries a real altitude.
func (a Aircraft) AltitudeKnown() bool {
	return a.Altitude != AltitudeUnknown && !math.IsNaN(a.Altitude) && !math.IsInf(a.Altitude, 0)
}

// Report is a partial observation of an aircraft as produced by a decoder.
// Individual ADS-B messages carry only some fields, the Has* flags mark which.
type Report struct {
	ICAO      string
	Timestamp time.Time

	Callsign     string
	Latitude     float64
	Longitude    float64
	Altitude     float64
	Speed        float64
	Track        float64
	VerticalRate float64

	HasCallsign     bool
	HasPosition     bool
	HasAltitude     bool
	HasSpeed        bool
	HasTrack        bool
	HasVerticalRate bool
}

// Source is the interface that all ADS-B data providers must implement.
// This abstraction allows switching between online services (airplanes.live)
// and local SDR receivers (dump1090 BaseStation output).
type Source interface {
	// Run delivers reports on out until ctx is cancelled or the source fails permanently.
	Run(ctx context.Context, out chan<- Report) error

	// Close cleanly shuts down the data source connection.
	Close() error
}
