// Package mapview defines the map widget the presenter draws on and the shared
// scene state the terminal and browser renderers are built from.
package mapview

import (
	"fmt"
	"strings"
)

// LatLng is a WGS84 position in decimal degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// MarkerID and LineID are opaque handles issued by a Widget. Zero is never issued.
type (
	MarkerID uint64
	LineID   uint64
)

// Style is the base map rendering style.
type Style int

const (
	StyleRoadmap Style = iota
	StyleSatellite
	StyleTerrain
	StyleHybrid
	StyleStyled
)

var styleNames = [...]string{"roadmap", "satellite", "terrain", "hybrid", "styled"}

func (s Style) String() string {
	if s < 0 || int(s) >= len(styleNames) {
		return fmt.Sprintf("Style(%d)", int(s))
	}
	return styleNames[s]
}

// ParseStyle maps a configuration name to a Style.
func ParseStyle(name string) (Style, error) {
	for i, n := range styleNames {
		if strings.EqualFold(name, n) {
			return Style(i), nil
		}
	}
	return StyleRoadmap, fmt.Errorf("unknown map style %q", name)
}

// View is the visible region of the map.
type View struct {
	Center LatLng
	Zoom   int
	Style  Style
}

// Shape names a marker symbol.
type Shape string

// ShapeForwardClosedArrow is a filled arrowhead pointing along the marker rotation.
const ShapeForwardClosedArrow Shape = "forward_closed_arrow"

// Icon is the vector symbol drawn for a marker.
// Rotation is in degrees, counter-clockwise from east.
type Icon struct {
	Shape         Shape   `json:"shape"`
	FillColor     string  `json:"fillColor"`
	FillOpacity   float64 `json:"fillOpacity"`
	StrokeColor   string  `json:"strokeColor"`
	StrokeOpacity float64 `json:"strokeOpacity"`
	StrokeWeight  float64 `json:"strokeWeight"`
	Rotation      float64 `json:"rotation"`
	Scale         float64 `json:"scale"`
}

// MarkerOptions describes a marker to create.
type MarkerOptions struct {
	Position LatLng
	Icon     Icon
	Title    string
}

// Marker is a marker attached to the map.
type Marker struct {
	ID MarkerID
	MarkerOptions
}

// LineOptions describes a polyline to draw.
type LineOptions struct {
	Path          []LatLng
	Geodesic      bool
	StrokeColor   string
	StrokeOpacity float64
	StrokeWeight  float64
}

// Line is a polyline attached to the map.
type Line struct {
	ID LineID
	LineOptions
}

// Overlay is the info window. It is anchored on Marker when that is non-zero,
// otherwise at Position. HTML and Text carry the same content for rich and plain renderers.
type Overlay struct {
	HTML     string
	Text     string
	Marker   MarkerID
	Position LatLng
}

// Widget is the map surface.
// Implementations must tolerate stale handles: removing or updating an unknown ID is a no-op.
type Widget interface {
	SetView(View)
	Center() LatLng
	SetCenter(LatLng)

	AddMarker(MarkerOptions) MarkerID
	UpdateMarker(id MarkerID, pos LatLng, icon Icon)
	RemoveMarker(MarkerID)

	AddLine(LineOptions) LineID
	RemoveLine(LineID)

	OpenOverlay(Overlay)
	CloseOverlay()

	// OnMarkerClick registers a listener called when the user selects a marker.
	OnMarkerClick(func(MarkerID))
}
