// Package kml turns logged aircraft positions into a Google Earth KML document.
package kml

import (
	"cmp"
	"math"
	"slices"
	"time"
)

// Sample is one logged observation. Unknown values are NaN.
type Sample struct {
	Time       time.Time
	Latitude   float64
	Longitude  float64
	AltitudeFt float64
	Speed      float64
	Heading    float64
}

// Track is the logged path of one aircraft, oldest sample first.
type Track struct {
	ICAO     string
	Callsign string
	Samples  []Sample
}

// MaxAltitude returns the highest known altitude of the track, NaN if none is known.
func (t Track) MaxAltitude() float64 {
	alt := math.NaN()
	for _, s := range t.Samples {
		if !math.IsNaN(s.AltitudeFt) && (math.IsNaN(alt) || s.AltitudeFt > alt) {
			alt = s.AltitudeFt
		}
	}
	return alt
}

// Builder groups samples into tracks. A value missing from a sample is carried
// forward from the previous sample of the same aircraft, and the first non-empty
// callsign sticks.
type Builder struct {
	tracks map[string]*Track
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{tracks: make(map[string]*Track)}
}

// Add appends s to the track of icao.
func (b *Builder) Add(icao, callsign string, s Sample) {
	t, ok := b.tracks[icao]
	if !ok {
		t = &Track{ICAO: icao}
		b.tracks[icao] = t
	}
	if t.Callsign == "" {
		t.Callsign = callsign
	}

	if n := len(t.Samples); n > 0 {
		prev := t.Samples[n-1]
		s.Latitude = carry(s.Latitude, prev.Latitude)
		s.Longitude = carry(s.Longitude, prev.Longitude)
		s.AltitudeFt = carry(s.AltitudeFt, prev.AltitudeFt)
		s.Speed = carry(s.Speed, prev.Speed)
		s.Heading = carry(s.Heading, prev.Heading)
	}
	t.Samples = append(t.Samples, s)
}

func carry(v, prev float64) float64 {
	if math.IsNaN(v) {
		return prev
	}
	return v
}

// Tracks returns the built tracks ordered by ICAO.
func (b *Builder) Tracks() []Track {
	out := make([]Track, 0, len(b.tracks))
	for _, t := range b.tracks {
		out = append(out, *t)
	}
	slices.SortFunc(out, func(a, b Track) int { return cmp.Compare(a.ICAO, b.ICAO) })
	return out
}
