package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/unklstewy/ads-bmap/pkg/adsb"
	"github.com/unklstewy/ads-bmap/pkg/coordinates"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []adsb.Event
}

func (p *recordingPublisher) Publish(ev adsb.Event) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func (p *recordingPublisher) all() []adsb.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]adsb.Event(nil), p.events...)
}

type recordingRecorder struct {
	mu  sync.Mutex
	got []adsb.Aircraft
}

func (r *recordingRecorder) RecordPosition(_ context.Context, ac adsb.Aircraft) error {
	r.mu.Lock()
	r.got = append(r.got, ac)
	r.mu.Unlock()
	return nil
}

func (r *recordingRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

var t0 = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func position(icao string, lat, lon float64, at time.Time) adsb.Report {
	return adsb.Report{ICAO: icao, Timestamp: at, Latitude: lat, Longitude: lon, HasPosition: true}
}

func TestTrackerPublishesOncePositionKnown(t *testing.T) {
	pub := &recordingPublisher{}
	tr := NewTracker(TrackerConfig{}, pub, nil, nil)

	tr.Apply(adsb.Report{ICAO: "ABC123", Timestamp: t0, Altitude: 35000, HasAltitude: true})
	if got := pub.all(); len(got) != 0 {
		t.Fatalf("Expected no event before a position, got %+v", got)
	}
	if tr.Count() != 1 {
		t.Errorf("Expected 1 heard aircraft, got %d", tr.Count())
	}
	if _, ok := tr.Get("ABC123"); ok {
		t.Error("Expected aircraft without position to be unpublished")
	}

	tr.Apply(position("ABC123", 38.0, -77.0, t0.Add(time.Second)))
	got := pub.all()
	if len(got) != 1 || got[0].Kind != adsb.EventUpdated {
		t.Fatalf("Expected one update, got %+v", got)
	}
	ac := got[0].Aircraft
	if ac.Altitude != 35000 {
		t.Errorf("Expected merged altitude 35000, got %f", ac.Altitude)
	}
	if ac.Messages != 2 {
		t.Errorf("Expected 2 messages, got %d", ac.Messages)
	}
}

func TestTrackerUnknownAltitude(t *testing.T) {
	pub := &recordingPublisher{}
	tr := NewTracker(TrackerConfig{}, pub, nil, nil)

	tr.Apply(position("ABC123", 38.0, -77.0, t0))
	ac, ok := tr.Get("ABC123")
	if !ok {
		t.Fatal("Expected aircraft to be published")
	}
	if ac.AltitudeKnown() {
		t.Errorf("Expected unknown altitude, got %f", ac.Altitude)
	}
}

func TestTrackerSkipsUnchanged(t *testing.T) {
	pub := &recordingPublisher{}
	tr := NewTracker(TrackerConfig{}, pub, nil, nil)

	tr.Apply(position("ABC123", 38.0, -77.0, t0))
	tr.Apply(position("ABC123", 38.0, -77.0, t0.Add(time.Second)))
	tr.Apply(adsb.Report{ICAO: "ABC123", Timestamp: t0.Add(2 * time.Second), Track: 90, HasTrack: true})

	got := pub.all()
	if len(got) != 2 {
		t.Fatalf("Expected 2 updates (first sighting and heading change), got %d", len(got))
	}
	if !got[1].Aircraft.HasHeading || got[1].Aircraft.Heading != 90 {
		t.Errorf("Expected heading 90, got %+v", got[1].Aircraft)
	}
}

func TestTrackerExpire(t *testing.T) {
	pub := &recordingPublisher{}
	tr := NewTracker(TrackerConfig{Timeout: 60 * time.Second}, pub, nil, nil)
	now := t0
	tr.now = func() time.Time { return now }

	tr.Apply(position("ABC123", 38.0, -77.0, t0))
	tr.Apply(adsb.Report{ICAO: "DEF456", Timestamp: t0, Altitude: 1000, HasAltitude: true})

	now = t0.Add(30 * time.Second)
	tr.Expire()
	if tr.Count() != 2 {
		t.Fatalf("Expected both aircraft kept at 30s, got %d", tr.Count())
	}

	now = t0.Add(61 * time.Second)
	tr.Expire()
	if tr.Count() != 0 {
		t.Errorf("Expected all aircraft expired, got %d", tr.Count())
	}

	got := pub.all()
	if len(got) != 2 {
		t.Fatalf("Expected update and remove, got %+v", got)
	}
	// DEF456 was never published, so only ABC123 is removed
	if got[1].Kind != adsb.EventRemoved || got[1].ICAO != "ABC123" {
		t.Errorf("Expected removal of ABC123, got %+v", got[1])
	}
}

func TestTrackerRangeFilter(t *testing.T) {
	pub := &recordingPublisher{}
	tr := NewTracker(TrackerConfig{
		Observer: coordinates.Geographic{Latitude: 38.0, Longitude: -77.0},
		RadiusNM: 50,
	}, pub, nil, nil)

	tr.Apply(position("ABC123", 38.1, -77.0, t0))
	tr.Apply(position("ABC123", 40.0, -77.0, t0.Add(time.Second)))
	tr.Apply(position("FAR001", 45.0, -70.0, t0))

	got := pub.all()
	if len(got) != 2 {
		t.Fatalf("Expected update then remove, got %+v", got)
	}
	if got[0].Kind != adsb.EventUpdated || got[1].Kind != adsb.EventRemoved {
		t.Errorf("Unexpected events %+v", got)
	}
	if len(tr.Snapshot()) != 0 {
		t.Errorf("Expected empty snapshot, got %+v", tr.Snapshot())
	}
}

func TestTrackerSnapshotOrder(t *testing.T) {
	tr := NewTracker(TrackerConfig{}, &recordingPublisher{}, nil, nil)
	tr.Apply(position("C00003", 38, -77, t0))
	tr.Apply(position("A00001", 38, -77, t0))
	tr.Apply(position("B00002", 38, -77, t0))

	snap := tr.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Expected 3 aircraft, got %d", len(snap))
	}
	for i, want := range []string{"A00001", "B00002", "C00003"} {
		if snap[i].ICAO != want {
			t.Errorf("Expected %s at %d, got %s", want, i, snap[i].ICAO)
		}
	}
}

func TestTrackerRunRecordsPositions(t *testing.T) {
	pub := &recordingPublisher{}
	rec := &recordingRecorder{}
	tr := NewTracker(TrackerConfig{}, pub, rec, nil)

	ctx, cancel := context.WithCancel(context.Background())
	reports := make(chan adsb.Report)
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx, reports) }()

	reports <- position("ABC123", 38.0, -77.0, time.Now().UTC())
	reports <- adsb.Report{ICAO: "ABC123", Timestamp: time.Now().UTC(), Altitude: 1500, HasAltitude: true}
	reports <- position("ABC123", 38.01, -77.01, time.Now().UTC())

	deadline := time.Now().Add(5 * time.Second)
	for rec.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected 2 recorded positions, got %d", rec.count())
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	// The altitude-only report is published but not recorded
	if n := len(pub.all()); n != 3 {
		t.Errorf("Expected 3 published updates, got %d", n)
	}
	if rec.count() != 2 {
		t.Errorf("Expected 2 recorded positions, got %d", rec.count())
	}
}
