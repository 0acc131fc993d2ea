// Package locate resolves the viewer position the map opens on.
package locate

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/unklstewy/ads-bmap/pkg/mapview"
)

// ErrUnavailable is returned when no location service is configured.
var ErrUnavailable = errors.New("no location service available")

// Locator resolves the current position once.
type Locator interface {
	Locate(ctx context.Context) (mapview.LatLng, error)
}

// Static is a Locator that always returns the same position.
type Static mapview.LatLng

func (s Static) Locate(context.Context) (mapview.LatLng, error) {
	return mapview.LatLng(s), nil
}

// DefaultGPSDAddress is where gpsd listens by default.
const DefaultGPSDAddress = "localhost:2947"

// GPSD asks a gpsd daemon for a single 2D or 3D fix.
type GPSD struct {
	Addr string

	// Timeout bounds the wait for a fix when ctx has no deadline (default: 10s)
	Timeout time.Duration
}

type tpvMessage struct {
	Class string   `json:"class"`
	Mode  int      `json:"mode"`
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
}

// Locate connects, enables watch mode and returns the first TPV report with a fix.
func (g GPSD) Locate(ctx context.Context) (mapview.LatLng, error) {
	addr := g.Addr
	if addr == "" {
		addr = DefaultGPSDAddress
	}
	if _, ok := ctx.Deadline(); !ok {
		timeout := g.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return mapview.LatLng{}, fmt.Errorf("failed to connect to gpsd at %s: %w", addr, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if _, err := conn.Write([]byte("?WATCH={\"enable\":true,\"json\":true}\n")); err != nil {
		return mapview.LatLng{}, fmt.Errorf("failed to enable gpsd watch: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var msg tpvMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		if msg.Class == "TPV" && msg.Mode >= 2 && msg.Lat != nil && msg.Lon != nil {
			return mapview.LatLng{Lat: *msg.Lat, Lng: *msg.Lon}, nil
		}
	}

	if ctx.Err() != nil {
		return mapview.LatLng{}, fmt.Errorf("no gpsd fix: %w", ctx.Err())
	}
	if err := scanner.Err(); err != nil {
		return mapview.LatLng{}, fmt.Errorf("gpsd read error: %w", err)
	}
	return mapview.LatLng{}, errors.New("gpsd closed the connection before a fix")
}
