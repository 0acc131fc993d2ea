package adsb

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidPlane is returned when a pushed plane record cannot be drawn.
var ErrInvalidPlane = errors.New("invalid plane record")

// Plane is the wire record carried by updatePlane and removePlane events.
// Field names follow the decoder's plane dictionary; every kinematic field is optional
// because the decoder publishes NaN (or nothing) until it has decoded the value.
type Plane struct {
	ICAO         string   `json:"icao" msgpack:"icao"`
	Callsign     *string  `json:"callsign,omitempty" msgpack:"callsign,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty" msgpack:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty" msgpack:"longitude,omitempty"`
	Altitude     *float64 `json:"altitude,omitempty" msgpack:"altitude,omitempty"`
	Speed        *float64 `json:"speed,omitempty" msgpack:"speed,omitempty"`
	Heading      *float64 `json:"heading,omitempty" msgpack:"heading,omitempty"`
	VerticalRate *float64 `json:"vertical_rate,omitempty" msgpack:"vertical_rate,omitempty"`
	NumMsgs      int      `json:"num_msgs,omitempty" msgpack:"num_msgs,omitempty"`
	Timestamp    int64    `json:"timestamp,omitempty" msgpack:"timestamp,omitempty"`
	MsgType      string   `json:"msg_type,omitempty" msgpack:"msg_type,omitempty"`
}

// Key returns the normalized ICAO address of the record.
func (p Plane) Key() string {
	return strings.ToUpper(strings.TrimSpace(p.ICAO))
}

// Sanitize validates the record and converts it into an Aircraft.
// A position is required; altitude falls back to AltitudeUnknown and the remaining
// kinematic fields are flagged as absent instead of carrying NaN into the map.
func (p Plane) Sanitize() (Aircraft, error) {
	icao := p.Key()
	if icao == "" {
		return Aircraft{}, fmt.Errorf("%w: missing icao", ErrInvalidPlane)
	}

	lat, latOK := finite(p.Latitude)
	lon, lonOK := finite(p.Longitude)
	if !latOK || !lonOK {
		return Aircraft{}, fmt.Errorf("%w: %s has no position", ErrInvalidPlane, icao)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Aircraft{}, fmt.Errorf("%w: %s position %.4f,%.4f out of range", ErrInvalidPlane, icao, lat, lon)
	}

	ac := Aircraft{
		ICAO:      icao,
		Latitude:  lat,
		Longitude: lon,
		Altitude:  AltitudeUnknown,
		Messages:  p.NumMsgs,
	}
	if p.Callsign != nil {
		ac.Callsign = strings.TrimSpace(*p.Callsign)
	}
	if alt, ok := finite(p.Altitude); ok {
		ac.Altitude = alt
	}
	ac.Speed, ac.HasSpeed = finite(p.Speed)
	ac.Heading, ac.HasHeading = finite(p.Heading)
	ac.VerticalRate, ac.HasVerticalRate = finite(p.VerticalRate)

	if p.Timestamp > 0 {
		ac.LastSeen = time.Unix(p.Timestamp, 0).UTC()
	} else {
		ac.LastSeen = time.Now().UTC()
	}

	return ac, nil
}

// PlaneFromAircraft builds the wire record for an aircraft.
func PlaneFromAircraft(ac Aircraft) Plane {
	p := Plane{
		ICAO:      ac.ICAO,
		Latitude:  ptr(ac.Latitude),
		Longitude: ptr(ac.Longitude),
		NumMsgs:   ac.Messages,
	}
	if ac.Callsign != "" {
		p.Callsign = ptr(ac.Callsign)
	}
	if ac.AltitudeKnown() {
		p.Altitude = ptr(ac.Altitude)
	} else {
		p.Altitude = ptr(AltitudeUnknown)
	}
	if ac.HasSpeed {
		p.Speed = ptr(ac.Speed)
	}
	if ac.HasHeading {
		p.Heading = ptr(ac.Heading)
	}
	if ac.HasVerticalRate {
		p.VerticalRate = ptr(ac.VerticalRate)
	}
	if !ac.LastSeen.IsZero() {
		p.Timestamp = ac.LastSeen.Unix()
	}
	return p
}

func finite(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}

func ptr[T any](v T) *T {
	return &v
}
