// Package relay is the push-notification server map clients subscribe to. It
// merges decoded ADS-B reports into per-aircraft state and republishes that
// state as updatePlane and removePlane events over websocket.
package relay

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/unklstewy/ads-bmap/pkg/adsb"
	"github.com/unklstewy/ads-bmap/pkg/coordinates"
)

// DefaultPlaneTimeout is how long an aircraft may stay silent before it is removed.
const DefaultPlaneTimeout = 60 * time.Second

// Publisher receives the events the tracker produces.
type Publisher interface {
	Publish(adsb.Event)
}

// Recorder stores published positions.
type Recorder interface {
	RecordPosition(ctx context.Context, ac adsb.Aircraft) error
}

// TrackerConfig configures a Tracker.
type TrackerConfig struct {
	// Timeout is the silence after which an aircraft is removed (default: 60s)
	Timeout time.Duration

	// Observer and RadiusNM limit published aircraft to a range, RadiusNM 0 disables the filter
	Observer coordinates.Geographic
	RadiusNM float64
}

type state struct {
	ac          adsb.Aircraft
	hasPosition bool
	published   bool
}

// Tracker owns the merged aircraft table. Only the goroutine running Run
// modifies it; Snapshot and Get may be called from anywhere.
type Tracker struct {
	cfg    TrackerConfig
	pub    Publisher
	rec    Recorder
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	aircraft map[string]*state

	records chan adsb.Aircraft
}

// NewTracker creates a tracker publishing to pub. rec may be nil.
func NewTracker(cfg TrackerConfig, pub Publisher, rec Recorder, logger *slog.Logger) *Tracker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPlaneTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		cfg:      cfg,
		pub:      pub,
		rec:      rec,
		logger:   logger.With("component", "tracker"),
		now:      time.Now,
		aircraft: make(map[string]*state),
		records:  make(chan adsb.Aircraft, 1024),
	}
}

// Run applies reports until ctx is cancelled or reports is closed, and removes
// aircraft that have gone silent.
func (t *Tracker) Run(ctx context.Context, reports <-chan adsb.Report) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	if t.rec != nil {
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			t.record(ctx)
		}()
		defer wg.Wait()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-reports:
			if !ok {
				return nil
			}
			t.Apply(r)
		case <-ticker.C:
			t.Expire()
		}
	}
}

// record writes positions to the recorder off the tracker loop.
func (t *Tracker) record(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ac := <-t.records:
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := t.rec.RecordPosition(wctx, ac); err != nil {
				t.logger.Warn("failed to record position", "icao", ac.ICAO, "error", err)
			}
			cancel()
		}
	}
}

// Apply merges one report. An updatePlane is published when a displayed field
// changed and the aircraft has a position inside the configured range.
func (t *Tracker) Apply(r adsb.Report) {
	if r.ICAO == "" {
		return
	}
	seen := r.Timestamp
	if seen.IsZero() {
		seen = t.now().UTC()
	}

	t.mu.Lock()
	s, ok := t.aircraft[r.ICAO]
	if !ok {
		s = &state{ac: adsb.Aircraft{ICAO: r.ICAO, Altitude: adsb.AltitudeUnknown}}
		t.aircraft[r.ICAO] = s
	}
	before := s.ac
	merge(s, r)
	s.ac.Messages++
	s.ac.LastSeen = seen
	ac := s.ac
	changed := displayChanged(before, ac) || !s.published

	var ev *adsb.Event
	switch {
	case !s.hasPosition:
	case !t.inRange(ac):
		if s.published {
			s.published = false
			e := adsb.Removed(ac.ICAO)
			ev = &e
		}
	case changed:
		s.published = true
		e := adsb.Updated(ac)
		ev = &e
	}
	t.mu.Unlock()

	if ev == nil {
		return
	}
	t.pub.Publish(*ev)
	if ev.Kind == adsb.EventUpdated && r.HasPosition && t.rec != nil {
		select {
		case t.records <- ac:
		default:
			t.logger.Warn("position recorder is behind, dropping sample", "icao", ac.ICAO)
		}
	}
}

func merge(s *state, r adsb.Report) {
	if r.HasCallsign {
		s.ac.Callsign = r.Callsign
	}
	if r.HasPosition {
		s.ac.Latitude, s.ac.Longitude = r.Latitude, r.Longitude
		s.hasPosition = true
	}
	if r.HasAltitude {
		s.ac.Altitude = r.Altitude
	}
	if r.HasSpeed {
		s.ac.Speed, s.ac.HasSpeed = r.Speed, true
	}
	if r.HasTrack {
		s.ac.Heading, s.ac.HasHeading = r.Track, true
	}
	if r.HasVerticalRate {
		s.ac.VerticalRate, s.ac.HasVerticalRate = r.VerticalRate, true
	}
}

func displayChanged(a, b adsb.Aircraft) bool {
	return a.Latitude != b.Latitude || a.Longitude != b.Longitude ||
		a.Altitude != b.Altitude || a.Heading != b.Heading ||
		a.Speed != b.Speed || a.VerticalRate != b.VerticalRate ||
		a.Callsign != b.Callsign
}

func (t *Tracker) inRange(ac adsb.Aircraft) bool {
	if t.cfg.RadiusNM <= 0 {
		return true
	}
	pos := coordinates.Geographic{Latitude: ac.Latitude, Longitude: ac.Longitude}
	return coordinates.DistanceNauticalMiles(t.cfg.Observer, pos) <= t.cfg.RadiusNM
}

// Expire drops aircraft silent for longer than the timeout and publishes their removal.
func (t *Tracker) Expire() {
	cutoff := t.now().UTC().Add(-t.cfg.Timeout)

	var removed []string
	t.mu.Lock()
	for icao, s := range t.aircraft {
		if s.ac.LastSeen.Before(cutoff) {
			if s.published {
				removed = append(removed, icao)
			}
			delete(t.aircraft, icao)
		}
	}
	t.mu.Unlock()

	slices.Sort(removed)
	for _, icao := range removed {
		t.logger.Debug("aircraft timed out", "icao", icao)
		t.pub.Publish(adsb.Removed(icao))
	}
}

// Snapshot returns the published aircraft ordered by ICAO.
func (t *Tracker) Snapshot() []adsb.Aircraft {
	t.mu.RLock()
	defer t.mu.RUnlock()

	list := make([]adsb.Aircraft, 0, len(t.aircraft))
	for _, s := range t.aircraft {
		if s.published {
			list = append(list, s.ac)
		}
	}
	slices.SortFunc(list, func(a, b adsb.Aircraft) int { return cmp.Compare(a.ICAO, b.ICAO) })
	return list
}

// Get returns one published aircraft.
func (t *Tracker) Get(icao string) (adsb.Aircraft, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.aircraft[icao]
	if !ok || !s.published {
		return adsb.Aircraft{}, false
	}
	return s.ac, true
}

// Count returns the number of aircraft heard, published or not.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.aircraft)
}
