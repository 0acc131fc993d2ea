package adsb

import (
	"errors"
	"math"
	"testing"
	"time"
)

// TestPlaneSanitize tests validation at the channel boundary.
func TestPlaneSanitize(t *testing.T) {
	tests := []struct {
		name    string
		plane   Plane
		wantErr bool
	}{
		{name: "Valid", plane: Plane{ICAO: "abc123", Latitude: ptr(38.9), Longitude: ptr(-77.0)}},
		{name: "Missing ICAO", plane: Plane{ICAO: "  ", Latitude: ptr(1.0), Longitude: ptr(1.0)}, wantErr: true},
		{name: "Missing latitude", plane: Plane{ICAO: "abc123", Longitude: ptr(1.0)}, wantErr: true},
		{name: "NaN longitude", plane: Plane{ICAO: "abc123", Latitude: ptr(1.0), Longitude: ptr(math.NaN())}, wantErr: true},
		{name: "Latitude out of range", plane: Plane{ICAO: "abc123", Latitude: ptr(91.0), Longitude: ptr(1.0)}, wantErr: true},
		{name: "Longitude out of range", plane: Plane{ICAO: "abc123", Latitude: ptr(1.0), Longitude: ptr(-180.5)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.plane.Sanitize()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got: %v", tt.wantErr, err)
			}
			if err != nil && !errors.Is(err, ErrInvalidPlane) {
				t.Errorf("Expected ErrInvalidPlane, got: %v", err)
			}
		})
	}
}

// TestPlaneSanitizeDefaults tests how absent and non-finite fields are carried.
func TestPlaneSanitizeDefaults(t *testing.T) {
	p := Plane{
		ICAO:      " abc123 ",
		Callsign:  ptr("UAL1  "),
		Latitude:  ptr(38.9),
		Longitude: ptr(-77.0),
		Altitude:  ptr(math.NaN()),
		Speed:     ptr(412.7),
		Heading:   ptr(math.Inf(1)),
		Timestamp: 1700000000,
	}

	ac, err := p.Sanitize()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if ac.ICAO != "ABC123" {
		t.Errorf("Expected ICAO ABC123, got %s", ac.ICAO)
	}
	if ac.Callsign != "UAL1" {
		t.Errorf("Expected callsign UAL1, got %q", ac.Callsign)
	}
	if ac.Altitude != AltitudeUnknown || ac.AltitudeKnown() {
		t.Errorf("Expected unknown altitude sentinel, got %f", ac.Altitude)
	}
	if !ac.HasSpeed || ac.Speed != 412.7 {
		t.Errorf("Expected speed 412.7, got %f", ac.Speed)
	}
	if ac.HasHeading || ac.Heading != 0 {
		t.Errorf("Expected heading absent, got %f", ac.Heading)
	}
	if ac.HasVerticalRate {
		t.Error("Expected vertical rate absent")
	}
	if !ac.LastSeen.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("Expected LastSeen from timestamp, got %v", ac.LastSeen)
	}
}

// TestPlaneFromAircraft tests the reverse conversion used by the relay.
func TestPlaneFromAircraft(t *testing.T) {
	ac := Aircraft{
		ICAO:       "ABC123",
		Latitude:   10,
		Longitude:  20,
		Altitude:   AltitudeUnknown,
		Heading:    90,
		HasHeading: true,
		Messages:   12,
	}

	p := PlaneFromAircraft(ac)
	if p.Callsign != nil {
		t.Error("Expected no callsign")
	}
	if p.Altitude == nil || *p.Altitude != AltitudeUnknown {
		t.Error("Expected sentinel altitude on the wire")
	}
	if p.Heading == nil || *p.Heading != 90 {
		t.Error("Expected heading 90")
	}
	if p.Speed != nil {
		t.Error("Expected speed omitted")
	}

	back, err := p.Sanitize()
	if err != nil {
		t.Fatalf("Expected round trip to sanitize, got: %v", err)
	}
	if back.AltitudeKnown() || back.Heading != 90 || back.Messages != 12 {
		t.Errorf("Unexpected round trip result %+v", back)
	}
}
