package kml

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/unklstewy/ads-bmap/pkg/coordinates"
	"github.com/unklstewy/ads-bmap/pkg/presenter"
)

const namespace = "http://www.opengis.net/kml/2.2"

type document struct {
	XMLName xml.Name `xml:"kml"`
	XMLNS   string   `xml:"xmlns,attr"`
	Doc     struct {
		Name       string      `xml:"name"`
		Styles     []style     `xml:"Style"`
		Placemarks []placemark `xml:"Placemark"`
	} `xml:"Document"`
}

type style struct {
	ID        string `xml:"id,attr"`
	LineStyle struct {
		Color string  `xml:"color"`
		Width float64 `xml:"width"`
	} `xml:"LineStyle"`
}

type placemark struct {
	Name        string `xml:"name"`
	Description string `xml:"description,omitempty"`
	StyleURL    string `xml:"styleUrl"`
	LineString  struct {
		Extrude      int    `xml:"extrude"`
		Tessellate   int    `xml:"tessellate"`
		AltitudeMode string `xml:"altitudeMode"`
		Coordinates  string `xml:"coordinates"`
	} `xml:"LineString"`
}

// Color converts a map color ("#RRGGBB" or a named color) to KML's aabbggrr.
func Color(c string) string {
	if strings.HasPrefix(c, "#") && len(c) == 7 {
		return strings.ToLower("ff" + c[5:7] + c[3:5] + c[1:3])
	}
	switch strings.ToLower(c) {
	case "white":
		return "ffffffff"
	default:
		return "ff000000"
	}
}

// Encode writes tracks as KML. Each aircraft becomes a Placemark holding a
// LineString at absolute altitude, colored by the altitude band of its highest
// sample. Samples without a position are left out, as are tracks with fewer than
// two drawable samples.
func Encode(w io.Writer, name string, tracks []Track) error {
	var doc document
	doc.XMLNS = namespace
	doc.Doc.Name = name

	used := make(map[string]bool)
	for _, t := range tracks {
		coords := make([]string, 0, len(t.Samples))
		for _, s := range t.Samples {
			if math.IsNaN(s.Latitude) || math.IsNaN(s.Longitude) {
				continue
			}
			alt := 0.0
			if !math.IsNaN(s.AltitudeFt) {
				alt = s.AltitudeFt * coordinates.FeetToMeters
			}
			coords = append(coords, fmt.Sprintf("%.6f,%.6f,%.1f", s.Longitude, s.Latitude, alt))
		}
		if len(coords) < 2 {
			continue
		}

		styleID := "band-unknown"
		if band := presenter.AltitudeBand(t.MaxAltitude()); band >= 0 {
			styleID = fmt.Sprintf("band-%d", band)
		}
		if !used[styleID] {
			used[styleID] = true
			st := style{ID: styleID}
			st.LineStyle.Color = Color(presenter.AltitudeColor(t.MaxAltitude()))
			st.LineStyle.Width = 3
			doc.Doc.Styles = append(doc.Doc.Styles, st)
		}

		pm := placemark{Name: t.ICAO, StyleURL: "#" + styleID}
		if t.Callsign != "" {
			pm.Name = t.Callsign + " (" + t.ICAO + ")"
		}
		first, last := t.Samples[0].Time, t.Samples[len(t.Samples)-1].Time
		if !first.IsZero() {
			pm.Description = fmt.Sprintf("%s to %s", first.Format("2006-01-02 15:04:05 UTC"), last.Format("2006-01-02 15:04:05 UTC"))
		}
		pm.LineString.Extrude = 1
		pm.LineString.Tessellate = 1
		pm.LineString.AltitudeMode = "absolute"
		pm.LineString.Coordinates = strings.Join(coords, " ")
		doc.Doc.Placemarks = append(doc.Doc.Placemarks, pm)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode kml: %w", err)
	}
	return enc.Close()
}
