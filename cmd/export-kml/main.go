// Command export-kml writes recorded aircraft tracks as a KML document for
// Google Earth. Tracks come from the relay position history or a CSV log.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/unklstewy/ads-bmap/internal/db"
	"github.com/unklstewy/ads-bmap/internal/logging"
	"github.com/unklstewy/ads-bmap/pkg/config"
	"github.com/unklstewy/ads-bmap/pkg/kml"
)

func main() {
	configPath := flag.StringP("config", "c", "configs/config.json", "Path to configuration file")
	since := flag.Duration("since", time.Hour, "Export positions recorded within this window")
	csvPath := flag.String("csv", "", "Read positions from a CSV log instead of the database")
	out := flag.StringP("out", "o", "adsb.kml", "Output KML file, - for stdout")
	name := flag.String("name", "ADS-B tracks", "KML document name")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "export-kml: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, closer, err := logging.New(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "export-kml: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var tracks []kml.Track
	if *csvPath != "" {
		tracks, err = readCSV(*csvPath)
	} else {
		tracks, err = readHistory(ctx, cfg.Database, time.Now().Add(-*since), logger)
	}
	if err != nil {
		logger.Error("failed to load tracks", "error", err)
		closer.Close()
		os.Exit(1)
	}

	if err := write(*out, *name, tracks); err != nil {
		logger.Error("failed to write KML", "out", *out, "error", err)
		closer.Close()
		os.Exit(1)
	}
	logger.Info("exported tracks", "tracks", len(tracks), "out", *out)
}

func readCSV(path string) ([]kml.Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b := kml.NewBuilder()
	if _, err := kml.ReadCSV(bufio.NewReader(f), b); err != nil {
		return nil, err
	}
	return b.Tracks(), nil
}

func readHistory(ctx context.Context, cfg config.DatabaseConfig, since time.Time, logger *slog.Logger) ([]kml.Track, error) {
	database, err := db.ReconnectWithRetry(ctx, cfg, 3, time.Second, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	return db.NewPositionRepository(database).Tracks(ctx, since)
}

func write(path, name string, tracks []kml.Track) error {
	if path == "-" {
		return kml.Encode(os.Stdout, name, tracks)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := kml.Encode(w, name, tracks); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
