package db

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/unklstewy/ads-bmap/pkg/adsb"
	"github.com/unklstewy/ads-bmap/pkg/kml"
)

// PositionRepository stores and reads aircraft position history.
type PositionRepository struct {
	db *DB
}

// NewPositionRepository creates a new position repository.
func NewPositionRepository(db *DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// RecordPosition inserts one sample. Optional fields the aircraft has not
// reported are stored as NULL.
func (r *PositionRepository) RecordPosition(ctx context.Context, ac adsb.Aircraft) error {
	at := ac.LastSeen
	if at.IsZero() {
		at = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO aircraft_positions (
			icao, callsign, latitude, longitude, altitude_ft,
			ground_speed_kts, track_deg, vertical_rate_fpm, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ac.ICAO,
		sql.NullString{String: ac.Callsign, Valid: ac.Callsign != ""},
		ac.Latitude, ac.Longitude,
		sql.NullFloat64{Float64: ac.Altitude, Valid: ac.AltitudeKnown()},
		sql.NullFloat64{Float64: ac.Speed, Valid: ac.HasSpeed},
		sql.NullFloat64{Float64: ac.Heading, Valid: ac.HasHeading},
		sql.NullFloat64{Float64: ac.VerticalRate, Valid: ac.HasVerticalRate},
		at,
	)
	if err != nil {
		return fmt.Errorf("failed to insert position: %w", err)
	}
	return nil
}

// Tracks returns the history recorded since the given time, one track per aircraft.
func (r *PositionRepository) Tracks(ctx context.Context, since time.Time) ([]kml.Track, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT icao, callsign, latitude, longitude, altitude_ft,
		        ground_speed_kts, track_deg, timestamp
		 FROM aircraft_positions
		 WHERE timestamp >= $1
		 ORDER BY icao, timestamp`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	b := kml.NewBuilder()
	for rows.Next() {
		var (
			p        positionRow
			callsign sql.NullString
		)
		if err := rows.Scan(&p.icao, &callsign, &p.lat, &p.lon, &p.alt, &p.speed, &p.track, &p.at); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		p.callsign = callsign.String
		p.addTo(b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}

	return b.Tracks(), nil
}

// positionRow is one scanned history row.
type positionRow struct {
	icao     string
	callsign string
	lat, lon float64
	alt      sql.NullFloat64
	speed    sql.NullFloat64
	track    sql.NullFloat64
	at       time.Time
}

func (p positionRow) addTo(b *kml.Builder) {
	b.Add(p.icao, p.callsign, kml.Sample{
		Time:       p.at.UTC(),
		Latitude:   p.lat,
		Longitude:  p.lon,
		AltitudeFt: orNaN(p.alt),
		Speed:      orNaN(p.speed),
		Heading:    orNaN(p.track),
	})
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
