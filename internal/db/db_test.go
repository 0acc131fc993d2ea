package db

import (
	"context"
	"database/sql"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/unklstewy/ads-bmap/pkg/config"
	"github.com/unklstewy/ads-bmap/pkg/kml"
)

// TestConnString tests connection string construction.
func TestConnString(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "db.local",
		Port:     5433,
		Username: "relay",
		Password: "secret",
		Database: "adsbmap",
		SSLMode:  "require",
	}

	got := connString(cfg)
	for _, want := range []string{"host=db.local", "port=5433", "user=relay", "password=secret", "dbname=adsbmap", "sslmode=require"} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected %q in %q", want, got)
		}
	}
}

// TestConnect tests database connection against a server that is not running.
func TestConnect(t *testing.T) {
	t.Run("Unreachable server", func(t *testing.T) {
		cfg := config.DatabaseConfig{
			Host:         "127.0.0.1",
			Port:         1,
			Username:     "testuser",
			Database:     "testdb",
			SSLMode:      "disable",
			MaxOpenConns: 1,
		}

		db, err := Connect(context.Background(), cfg)
		if err == nil {
			db.Close()
			t.Fatal("Expected connection to port 1 to fail")
		}
		if !strings.Contains(err.Error(), "failed to ping database") {
			t.Errorf("Expected ping error, got %v", err)
		}
	})
}

// TestReconnectWithRetryGivesUp tests that a bounded retry returns the last error.
func TestReconnectWithRetryGivesUp(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "127.0.0.1", Port: 1, SSLMode: "disable"}

	start := time.Now()
	_, err := ReconnectWithRetry(context.Background(), cfg, 2, 10*time.Millisecond, nil)
	if err == nil {
		t.Fatal("Expected error")
	}
	if time.Since(start) > 10*time.Second {
		t.Errorf("Expected quick failure, took %v", time.Since(start))
	}
}

func TestHealthCheckNil(t *testing.T) {
	if HealthCheck(context.Background(), nil) {
		t.Error("Expected nil database to be unhealthy")
	}
}

// TestPositionRowAddTo tests that NULL columns become unknown samples and are
// filled from the previous row.
func TestPositionRowAddTo(t *testing.T) {
	at := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	b := kml.NewBuilder()

	positionRow{
		icao: "ABC123", lat: 38, lon: -77,
		alt:   sql.NullFloat64{Float64: 1500, Valid: true},
		speed: sql.NullFloat64{Float64: 250, Valid: true},
		at:    at,
	}.addTo(b)
	positionRow{
		icao: "ABC123", callsign: "UAL123", lat: 38.01, lon: -77.01,
		at: at.Add(time.Second),
	}.addTo(b)

	tracks := b.Tracks()
	if len(tracks) != 1 || len(tracks[0].Samples) != 2 {
		t.Fatalf("Unexpected tracks %+v", tracks)
	}
	s := tracks[0].Samples[1]
	if s.AltitudeFt != 1500 || s.Speed != 250 {
		t.Errorf("Expected altitude and speed carried forward, got %+v", s)
	}
	if !math.IsNaN(s.Heading) {
		t.Errorf("Expected unknown heading, got %f", s.Heading)
	}
	if tracks[0].Callsign != "UAL123" {
		t.Errorf("Expected callsign UAL123, got %q", tracks[0].Callsign)
	}
}

func TestOrNaN(t *testing.T) {
	if v := orNaN(sql.NullFloat64{Float64: 3, Valid: true}); v != 3 {
		t.Errorf("Expected 3, got %f", v)
	}
	if v := orNaN(sql.NullFloat64{}); !math.IsNaN(v) {
		t.Errorf("Expected NaN, got %f", v)
	}
}
