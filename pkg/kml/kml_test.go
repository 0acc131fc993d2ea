package kml

import (
	"bytes"
	"encoding/xml"
	"math"
	"strings"
	"testing"
	"time"
)

var nan = math.NaN()

func TestBuilderCarriesValuesForward(t *testing.T) {
	b := NewBuilder()
	at := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

	b.Add("ABC123", "", Sample{Time: at, Latitude: 38, Longitude: -77, AltitudeFt: 1000, Speed: 200, Heading: 90})
	b.Add("ABC123", "UAL123", Sample{Time: at.Add(time.Second), Latitude: nan, Longitude: nan, AltitudeFt: 1500, Speed: nan, Heading: nan})
	b.Add("ABC123", "OTHER", Sample{Time: at.Add(2 * time.Second), Latitude: 38.01, Longitude: -77.01, AltitudeFt: nan, Speed: 210, Heading: 95})

	tracks := b.Tracks()
	if len(tracks) != 1 {
		t.Fatalf("Expected 1 track, got %d", len(tracks))
	}
	tr := tracks[0]
	if tr.Callsign != "UAL123" {
		t.Errorf("Expected first non-empty callsign UAL123, got %q", tr.Callsign)
	}

	s := tr.Samples[1]
	if s.Latitude != 38 || s.Longitude != -77 || s.Speed != 200 || s.Heading != 90 {
		t.Errorf("Expected previous values carried forward, got %+v", s)
	}
	if s.AltitudeFt != 1500 {
		t.Errorf("Expected altitude 1500, got %f", s.AltitudeFt)
	}
	if tr.Samples[2].AltitudeFt != 1500 {
		t.Errorf("Expected altitude 1500 carried forward, got %f", tr.Samples[2].AltitudeFt)
	}
}

func TestMaxAltitude(t *testing.T) {
	tr := Track{Samples: []Sample{{AltitudeFt: nan}, {AltitudeFt: 3000}, {AltitudeFt: 12000}, {AltitudeFt: 500}}}
	if got := tr.MaxAltitude(); got != 12000 {
		t.Errorf("Expected 12000, got %f", got)
	}
	if got := (Track{Samples: []Sample{{AltitudeFt: nan}}}).MaxAltitude(); !math.IsNaN(got) {
		t.Errorf("Expected NaN, got %f", got)
	}
}

func TestReadCSV(t *testing.T) {
	in := strings.Join([]string{
		"Date/Time,Timestamp,ICAO,Callsign,Altitude,Speed,Heading,Latitude,Longitude",
		"2026-10-14 12:00:00 UTC,1791979200,abc123,,nan,nan,nan,38.0,-77.0",
		"2026-10-14 12:00:01 UTC,1791979201,ABC123,UAL123,1500,250.5,90,nan,nan",
		"partial,row",
		"2026-10-14 12:00:02 UTC,1791979202,DEF456,,35000,450,270,39.0,-76.0",
	}, "\n")

	b := NewBuilder()
	n, err := ReadCSV(strings.NewReader(in), b)
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 rows, got %d", n)
	}

	tracks := b.Tracks()
	if len(tracks) != 2 || tracks[0].ICAO != "ABC123" || tracks[1].ICAO != "DEF456" {
		t.Fatalf("Unexpected tracks %+v", tracks)
	}
	second := tracks[0].Samples[1]
	if second.Latitude != 38.0 || second.AltitudeFt != 1500 {
		t.Errorf("Unexpected second sample %+v", second)
	}
	if !second.Time.Equal(time.Unix(1791979201, 0)) {
		t.Errorf("Unexpected time %v", second.Time)
	}
}

func TestColor(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"#FF0004", "ff0400ff"},
		{"#004BEF", "ffef4b00"},
		{"black", "ff000000"},
		{"white", "ffffffff"},
	}
	for _, tt := range tests {
		if got := Color(tt.in); got != tt.want {
			t.Errorf("Color(%q): expected %s, got %s", tt.in, tt.want, got)
		}
	}
}

func TestEncode(t *testing.T) {
	at := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	tracks := []Track{
		{
			ICAO:     "ABC123",
			Callsign: "UAL123",
			Samples: []Sample{
				{Time: at, Latitude: 38, Longitude: -77, AltitudeFt: 1000},
				{Time: at.Add(time.Second), Latitude: 38.01, Longitude: -77.01, AltitudeFt: 1500},
			},
		},
		{
			// A single sample cannot be drawn
			ICAO:    "DEF456",
			Samples: []Sample{{Time: at, Latitude: 39, Longitude: -76, AltitudeFt: 35000}},
		},
	}

	var buf bytes.Buffer
	if err := Encode(&buf, "adsb", tracks); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var doc document
	if err := xml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("Output is not valid XML: %v", err)
	}
	if len(doc.Doc.Placemarks) != 1 {
		t.Fatalf("Expected 1 placemark, got %d", len(doc.Doc.Placemarks))
	}
	pm := doc.Doc.Placemarks[0]
	if pm.Name != "UAL123 (ABC123)" {
		t.Errorf("Unexpected name %q", pm.Name)
	}
	if pm.StyleURL != "#band-1" {
		t.Errorf("Expected band-1 style for 1500 ft, got %s", pm.StyleURL)
	}
	if want := "-77.000000,38.000000,304.8 -77.010000,38.010000,457.2"; pm.LineString.Coordinates != want {
		t.Errorf("Expected coordinates %q, got %q", want, pm.LineString.Coordinates)
	}
	if len(doc.Doc.Styles) != 1 || doc.Doc.Styles[0].LineStyle.Color != "ff0013fe" {
		t.Errorf("Unexpected styles %+v", doc.Doc.Styles)
	}
}
