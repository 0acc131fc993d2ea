package presenter

import "github.com/unklstewy/ads-bmap/pkg/coordinates"

// Rotation converts a compass heading (0 = north, clockwise) into the marker
// rotation the map expects (0 = east, counter-clockwise), in [0, 360).
func Rotation(heading float64) float64 {
	return coordinates.NormalizeAzimuth(-heading + 90)
}
