package kml

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// csvColumns is the minimum width of a logged row:
// Date/Time, Timestamp, ICAO, Callsign, Altitude, Speed, Heading, Latitude, Longitude
const csvColumns = 9

// ReadCSV adds every row of a position log to b. The header row and partial rows
// are skipped; fields that do not parse are treated as unknown.
func ReadCSV(r io.Reader, b *Builder) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	n := 0
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("failed to read csv: %w", err)
		}
		if len(row) == 0 || strings.TrimSpace(row[0]) == "Date/Time" {
			continue
		}
		if len(row) < csvColumns {
			continue
		}

		ts, err := strconv.ParseInt(strings.TrimSpace(row[1]), 10, 64)
		if err != nil {
			continue
		}
		icao := strings.ToUpper(strings.TrimSpace(row[2]))
		if icao == "" {
			continue
		}

		b.Add(icao, strings.TrimSpace(row[3]), Sample{
			Time:       time.Unix(ts, 0).UTC(),
			AltitudeFt: number(row[4]),
			Speed:      number(row[5]),
			Heading:    number(row[6]),
			Latitude:   number(row[7]),
			Longitude:  number(row[8]),
		})
		n++
	}
}

// number parses a field, NaN when empty or invalid.
func number(field string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
