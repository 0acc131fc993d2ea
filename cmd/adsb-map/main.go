// Command adsb-map subscribes to an ADS-B relay and draws the aircraft it
// pushes on a terminal or browser map.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/unklstewy/ads-bmap/internal/logging"
	"github.com/unklstewy/ads-bmap/pkg/adsb"
	"github.com/unklstewy/ads-bmap/pkg/config"
	"github.com/unklstewy/ads-bmap/pkg/feed"
	"github.com/unklstewy/ads-bmap/pkg/locate"
	"github.com/unklstewy/ads-bmap/pkg/mapview"
	"github.com/unklstewy/ads-bmap/pkg/mapview/termview"
	"github.com/unklstewy/ads-bmap/pkg/mapview/webview"
	"github.com/unklstewy/ads-bmap/pkg/presenter"
)

// defaultTermLog keeps log lines off the terminal map.
const defaultTermLog = "logs/adsb-map.log"

func main() {
	configPath := flag.StringP("config", "c", "configs/config.json", "Path to configuration file")
	ui := flag.String("ui", "", "Map widget: term or web (overrides map.ui)")
	feedURL := flag.String("feed", "", "Relay websocket URL (overrides feed.url)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	logFile := flag.String("log-file", "", "Rotating log file (default: stderr, or "+defaultTermLog+" for the terminal map)")
	flag.Parse()

	if err := run(*configPath, *ui, *feedURL, *logLevel, *logFile); err != nil {
		fmt.Fprintf(os.Stderr, "adsb-map: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, ui, feedURL, logLevel, logFile string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if ui != "" {
		cfg.Map.UI = ui
	}
	if feedURL != "" {
		cfg.Feed.URL = feedURL
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFile != "" {
		cfg.Logging.File = logFile
	}
	if cfg.Map.UI == "term" && cfg.Logging.File == "" {
		cfg.Logging.File = defaultTermLog
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	style, err := mapview.ParseStyle(cfg.Map.Style)
	if err != nil {
		return err
	}
	opts := presenter.Options{
		Center:  mapview.LatLng{Lat: cfg.Map.CenterLatitude, Lng: cfg.Map.CenterLongitude},
		Zoom:    cfg.Map.Zoom,
		Style:   style,
		Locator: newLocator(cfg.Location),
		Logger:  logger,
	}

	client, err := feed.New(cfg.Feed.URL, cfg.Feed.Token, cfg.Feed.Encoding, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	scene := mapview.NewScene(mapview.View{Center: opts.Center, Zoom: opts.Zoom, Style: opts.Style})

	var (
		widget mapview.Widget
		show   func(context.Context) error
	)
	switch cfg.Map.UI {
	case "web":
		w := webview.New(scene, cfg.Server.AllowedOrigins, logger)
		widget = w
		show = func(ctx context.Context) error { return w.Run(ctx, cfg.Server.Addr()) }
	default:
		w := termview.New(scene, logger)
		widget = w
		show = w.Run
	}

	p := presenter.New(widget, opts)
	p.Start(ctx)

	logger.Info("adsb-map starting", "ui", cfg.Map.UI, "feed", cfg.Feed.URL, "style", style)

	events := make(chan adsb.Event, 256)
	errc := make(chan error, 3)
	go func() {
		err := client.Run(ctx, events)
		if errors.Is(err, feed.ErrUnauthorized) {
			logger.Error("feed rejected the configured token")
		}
		errc <- err
	}()
	go func() { errc <- p.Run(ctx, events) }()
	go func() { errc <- show(ctx) }()

	// The first component to stop takes the others down with it
	err = <-errc
	cancel()
	for range 2 {
		<-errc
	}

	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("adsb-map stopped", "aircraft", p.Tracked())
	return err
}

func newLocator(cfg config.LocationConfig) locate.Locator {
	switch cfg.Provider {
	case "static":
		return locate.Static(mapview.LatLng{Lat: cfg.Latitude, Lng: cfg.Longitude})
	case "gpsd":
		return locate.GPSD{Addr: cfg.GPSDAddress, Timeout: cfg.Timeout()}
	default:
		return nil
	}
}
