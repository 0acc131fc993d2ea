package presenter

import (
	"fmt"
	"html"
	"math"
	"math/big"
	"net/url"
	"strconv"
	"strings"

	"github.com/unklstewy/ads-bmap/pkg/adsb"
)

// FlightLookupURL is prefixed to the callsign for the overlay link.
const FlightLookupURL = "http://flightaware.com/live/flight/"

const unknownValue = "unknown"

// Row is one line of the info overlay.
type Row struct {
	Label string
	Value string
	// Link, when set, is the target of a hyperlink on Value
	Link string
}

// Info is the formatted detail block for one aircraft.
type Info struct {
	ICAO         string
	Callsign     string
	CallsignLink string
	Altitude     string
	VerticalRate string
	Speed        string
	Heading      string
	Latitude     string
	Longitude    string
}

// FormatInfo renders the latest known fields of an aircraft.
// Speed and heading are rounded to whole numbers, the position to 4 decimals.
func FormatInfo(a adsb.Aircraft) Info {
	info := Info{
		ICAO:         a.ICAO,
		Callsign:     unknownValue,
		Altitude:     unknownValue,
		VerticalRate: unknownValue,
		Speed:        unknownValue,
		Heading:      unknownValue,
		Latitude:     toFixed(a.Latitude, 4),
		Longitude:    toFixed(a.Longitude, 4),
	}
	if cs := strings.TrimSpace(a.Callsign); cs != "" {
		info.Callsign = cs
		info.CallsignLink = FlightLookupURL + url.PathEscape(cs)
	}
	if a.AltitudeKnown() {
		info.Altitude = plain(a.Altitude) + " ft"
	}
	if a.HasVerticalRate {
		info.VerticalRate = plain(a.VerticalRate) + " ft/min"
	}
	if a.HasSpeed {
		info.Speed = toFixed(a.Speed, 0) + " kt"
	}
	if a.HasHeading {
		info.Heading = toFixed(a.Heading, 0) + " deg"
	}
	return info
}

// Rows lists the overlay lines in display order.
func (i Info) Rows() []Row {
	return []Row{
		{Label: "ICAO", Value: i.ICAO},
		{Label: "Callsign", Value: i.Callsign, Link: i.CallsignLink},
		{Label: "Altitude", Value: i.Altitude},
		{Label: "Vertical Rate", Value: i.VerticalRate},
		{Label: "Speed", Value: i.Speed},
		{Label: "Heading", Value: i.Heading},
		{Label: "Latitude", Value: i.Latitude},
		{Label: "Longitude", Value: i.Longitude},
	}
}

// HTML renders the info as a two column table for the browser map.
func (i Info) HTML() string {
	var b strings.Builder
	b.WriteString("<table>")
	for _, r := range i.Rows() {
		value := html.EscapeString(r.Value)
		if r.Link != "" {
			value = fmt.Sprintf(`<a href="%s" target="_blank">%s</a>`, html.EscapeString(r.Link), value)
		}
		fmt.Fprintf(&b, "<tr><td><b>%s</b></td><td>%s</td></tr>", r.Label, value)
	}
	b.WriteString("</table>")
	return b.String()
}

// Text renders the info as aligned plain text lines for the terminal map.
func (i Info) Text() string {
	rows := i.Rows()
	width := 0
	for _, r := range rows {
		width = max(width, len(r.Label))
	}

	lines := make([]string, len(rows))
	for n, r := range rows {
		lines[n] = fmt.Sprintf("%-*s  %s", width, r.Label, r.Value)
	}
	return strings.Join(lines, "\n")
}

// plain prints a number in its shortest form, without exponent.
func plain(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// toFixed rounds v to the given number of decimals, halves away from zero.
// Rounding works on the shortest decimal form of v, so 38.12345 gives 38.1235
// even though its binary value is slightly below the half.
func toFixed(v float64, places int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return unknownValue
	}
	r, ok := new(big.Rat).SetString(plain(v))
	if !ok {
		return strconv.FormatFloat(v, 'f', places, 64)
	}
	s := r.FloatString(places)
	if strings.TrimLeft(s, "-0.") == "" {
		// no negative zero
		s = strings.TrimPrefix(s, "-")
	}
	return s
}
