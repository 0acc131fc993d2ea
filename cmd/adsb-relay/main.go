// Command adsb-relay decodes aircraft from dump1090 or airplanes.live and pushes
// updatePlane and removePlane events to map clients over websocket.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/unklstewy/ads-bmap/internal/auth"
	"github.com/unklstewy/ads-bmap/internal/db"
	"github.com/unklstewy/ads-bmap/internal/logging"
	"github.com/unklstewy/ads-bmap/internal/relay"
	"github.com/unklstewy/ads-bmap/pkg/adsb"
	"github.com/unklstewy/ads-bmap/pkg/config"
	"github.com/unklstewy/ads-bmap/pkg/coordinates"
)

// History retention and cleanup cadence when the database is enabled.
const (
	historyRetention = 7 * 24 * time.Hour
	cleanupInterval  = time.Hour
)

func main() {
	configPath := flag.StringP("config", "c", "configs/config.json", "Path to configuration file")
	issueToken := flag.String("issue-token", "", "Print a feed token for `subject` and exit")
	source := flag.String("source", "", "Aircraft source: basestation or airplanes.live (overrides relay.source)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "adsb-relay: failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *source != "" {
		cfg.Relay.Source = *source
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "adsb-relay: %v\n", err)
		os.Exit(1)
	}

	if *issueToken != "" {
		if err := printToken(cfg.Relay, *issueToken); err != nil {
			fmt.Fprintf(os.Stderr, "adsb-relay: %v\n", err)
			os.Exit(1)
		}
		return
	}

	logger, closer, err := logging.New(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "adsb-relay: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("relay stopped", "error", err)
		closer.Close()
		os.Exit(1)
	}
	logger.Info("relay stopped")
}

func printToken(cfg config.RelayConfig, subject string) error {
	if cfg.JWTSecret == "" {
		return errors.New("relay.jwt_secret is not set")
	}
	svc := auth.NewService(auth.Config{JWTSecret: cfg.JWTSecret, TokenDuration: cfg.TokenDuration()})
	token, err := svc.GenerateToken(subject)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	src, err := newSource(cfg.Relay, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	codec, err := adsb.CodecFor(cfg.Relay.Encoding)
	if err != nil {
		return err
	}

	var rec relay.Recorder
	if cfg.Database.Enabled {
		database, err := db.ReconnectWithRetry(ctx, cfg.Database, 5, 2*time.Second, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()
		if err := database.InitSchema(ctx); err != nil {
			return err
		}
		rec = db.NewPositionRepository(database)
		go cleanupHistory(ctx, database, logger)
	}

	var tracker *relay.Tracker
	hub := relay.NewHub(
		func() []adsb.Aircraft { return tracker.Snapshot() },
		rate.Limit(cfg.Relay.MaxEventsPerSecond),
		cfg.Relay.Burst,
		codec,
		logger,
	)
	tracker = relay.NewTracker(relay.TrackerConfig{
		Timeout: cfg.Relay.PlaneTimeout(),
		Observer: coordinates.Geographic{
			Latitude:  cfg.Relay.ObserverLatitude,
			Longitude: cfg.Relay.ObserverLongitude,
		},
		RadiusNM: cfg.Relay.RadiusNM,
	}, hub, rec, logger)

	var authSvc *auth.Service
	if cfg.Relay.JWTSecret != "" {
		authSvc = auth.NewService(auth.Config{JWTSecret: cfg.Relay.JWTSecret, TokenDuration: cfg.Relay.TokenDuration()})
	}
	server := relay.NewServer(tracker, hub, authSvc, cfg.Server.AllowedOrigins, logger)

	logger.Info("relay starting",
		"source", cfg.Relay.Source,
		"addr", cfg.Server.Addr(),
		"encoding", codec.Name(),
		"auth", authSvc != nil,
		"history", rec != nil,
	)

	reports := make(chan adsb.Report, 1024)
	errc := make(chan error, 4)
	go func() { errc <- src.Run(ctx, reports) }()
	go func() { errc <- tracker.Run(ctx, reports) }()
	go func() { errc <- hub.Run(ctx) }()
	go func() { errc <- server.Run(ctx, cfg.Server.Addr()) }()

	err = <-errc
	cancel()
	for range 3 {
		<-errc
	}
	return err
}

func newSource(cfg config.RelayConfig, logger *slog.Logger) (adsb.Source, error) {
	switch cfg.Source {
	case "basestation":
		return adsb.NewBaseStationSource(cfg.BaseStationAddress, logger), nil
	case "airplanes.live":
		return adsb.NewAirplanesLiveSource(
			cfg.AirplanesLiveURL,
			cfg.ObserverLatitude,
			cfg.ObserverLongitude,
			cfg.RadiusNM,
			cfg.PollInterval(),
		), nil
	default:
		return nil, fmt.Errorf("unknown relay source %q", cfg.Source)
	}
}

// cleanupHistory trims old positions so the table does not grow without bound.
func cleanupHistory(ctx context.Context, database *db.DB, logger *slog.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !db.HealthCheck(ctx, database) {
				logger.Warn("database health check failed, skipping cleanup")
				continue
			}
			n, err := database.CleanupOldData(ctx, historyRetention)
			if err != nil {
				logger.Warn("history cleanup failed", "error", err)
				continue
			}
			stats, err := database.GetStats(ctx)
			if err != nil {
				logger.Warn("failed to read history stats", "error", err)
				continue
			}
			logger.Info("history cleanup",
				"deleted", n,
				"positions", stats.PositionRecords,
				"aircraft", stats.Aircraft,
			)
		}
	}
}
