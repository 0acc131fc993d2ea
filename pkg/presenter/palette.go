package presenter

import (
	"math"

	"github.com/unklstewy/ads-bmap/pkg/adsb"
)

// UnknownAltitudeColor is used for aircraft that have not reported an altitude.
const UnknownAltitudeColor = "black"

// palette is a red (index 0) to blue gradient, one color per 1000 ft band.
var palette = [...]string{
	"#FF0004", "#FE1300", "#FE2B00", "#FD4300", "#FD5B00",
	"#FD7300", "#FC8A00", "#FCA200", "#FBBA00", "#FBD200",
	"#FBE900", "#F4FA00", "#DCFA00", "#C4F900", "#ACF900",
	"#94F900", "#7CF800", "#64F800", "#4DF800", "#35F700",
	"#1DF700", "#06F600", "#00F611", "#00F628", "#00F53F",
	"#00F556", "#00F56E", "#00F485", "#00F49C", "#00F3B2",
	"#00F3C9", "#00F3E0", "#00EEF2", "#00D6F2", "#00BFF1",
	"#00A8F1", "#0091F1", "#0079F0", "#0062F0", "#004BEF",
}

// PaletteSize is the number of altitude bands.
const PaletteSize = len(palette)

// Palette returns a copy of the altitude gradient.
func Palette() []string {
	return append([]string(nil), palette[:]...)
}

// AltitudeBand returns the palette index for alt, or -1 when the altitude is unknown.
func AltitudeBand(alt float64) int {
	if alt == adsb.AltitudeUnknown || math.IsNaN(alt) {
		return -1
	}
	idx := math.Floor(alt / 1000)
	switch {
	case idx < 0:
		return 0
	case idx >= float64(PaletteSize):
		return PaletteSize - 1
	}
	return int(idx)
}

// AltitudeColor maps an altitude in feet to its gradient color.
func AltitudeColor(alt float64) string {
	band := AltitudeBand(alt)
	if band < 0 {
		return UnknownAltitudeColor
	}
	return palette[band]
}
