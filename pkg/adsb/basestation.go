package adsb

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// BaseStationSource reads the SBS-1 BaseStation text stream dump1090 serves on port 30003.
type BaseStationSource struct {
	addr   string
	logger *slog.Logger
	retry  RetryConfig

	mu   sync.Mutex
	conn net.Conn
}

// NewBaseStationSource creates a source for the given host:port.
func NewBaseStationSource(addr string, logger *slog.Logger) *BaseStationSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &BaseStationSource{
		addr:   addr,
		logger: logger.With("source", "basestation", "addr", addr),
		retry:  ReconnectConfig(),
	}
}

// Run connects, reads reports until the stream breaks, and reconnects with backoff.
func (s *BaseStationSource) Run(ctx context.Context, out chan<- Report) error {
	cfg := s.retry
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		s.logger.Warn("basestation stream lost", "attempt", attempt, "error", err, "retry_in", delay)
	}

	return RetryWithBackoff(ctx, cfg, func() error {
		return s.session(ctx, out)
	})
}

// session returns nil only when ctx is done, every other exit is a retryable error.
func (s *BaseStationSource) session(ctx context.Context, out chan<- Report) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		if ctx.Err() != nil {
			return Permanent(ctx.Err())
		}
		return fmt.Errorf("failed to connect to dump1090: %w", err)
	}
	s.setConn(conn)
	defer s.setConn(nil)
	defer conn.Close()

	s.logger.Info("connected to dump1090")

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		r, ok := ParseBaseStation(scanner.Text(), time.Now().UTC())
		if !ok {
			continue
		}
		select {
		case out <- r:
		case <-ctx.Done():
			return Permanent(ctx.Err())
		}
	}

	if ctx.Err() != nil {
		return Permanent(ctx.Err())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("dump1090 read error: %w", err)
	}
	return fmt.Errorf("dump1090 closed the connection")
}

func (s *BaseStationSource) setConn(c net.Conn) {
	s.mu.Lock()
	s.conn = c
	s.mu.Unlock()
}

// Close drops the current connection, Run reconnects unless its context is done.
func (s *BaseStationSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// BaseStation field indexes (0-based).
const (
	sbsMessage   = 0
	sbsType      = 1
	sbsICAO      = 4
	sbsCallsign  = 10
	sbsAltitude  = 11
	sbsSpeed     = 12
	sbsTrack     = 13
	sbsLatitude  = 14
	sbsLongitude = 15
	sbsVertRate  = 16
)

// ParseBaseStation parses one MSG line. Transmission types 1 through 8 are accepted;
// which fields are filled in depends on the type, empty fields are left unset.
func ParseBaseStation(line string, now time.Time) (Report, bool) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) < 11 || fields[sbsMessage] != "MSG" {
		return Report{}, false
	}

	msgType, err := strconv.Atoi(fields[sbsType])
	if err != nil || msgType < 1 || msgType > 8 {
		return Report{}, false
	}

	icao := strings.ToUpper(strings.TrimSpace(fields[sbsICAO]))
	if icao == "" {
		return Report{}, false
	}

	r := Report{ICAO: icao, Timestamp: now}
	field := func(i int) string {
		if i < len(fields) {
			return strings.TrimSpace(fields[i])
		}
		return ""
	}
	number := func(i int) (float64, bool) {
		v := field(i)
		if v == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}

	if cs := field(sbsCallsign); cs != "" {
		r.Callsign, r.HasCallsign = strings.ToUpper(cs), true
	}
	r.Altitude, r.HasAltitude = number(sbsAltitude)
	r.Speed, r.HasSpeed = number(sbsSpeed)
	r.Track, r.HasTrack = number(sbsTrack)
	r.VerticalRate, r.HasVerticalRate = number(sbsVertRate)

	lat, latOK := number(sbsLatitude)
	lon, lonOK := number(sbsLongitude)
	if latOK && lonOK {
		r.Latitude, r.Longitude, r.HasPosition = lat, lon, true
	}

	return r, true
}
