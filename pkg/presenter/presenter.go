// Package presenter mirrors the aircraft pushed by the feed onto a map widget:
// one arrow marker per aircraft, colored by altitude and rotated by heading,
// with a trail of line segments through every reported position.
package presenter

import (
	"context"
	"errors"
	"log/slog"

	"github.com/unklstewy/ads-bmap/pkg/adsb"
	"github.com/unklstewy/ads-bmap/pkg/locate"
	"github.com/unklstewy/ads-bmap/pkg/mapview"
)

// Overlay messages shown after the startup location lookup.
const (
	MsgLocationFound       = "Location found."
	MsgLocationFailed      = "Error: The location service failed."
	MsgLocationUnavailable = "Error: No location service is available."
)

// Default view, the White House at zoom 8.
var (
	DefaultCenter = mapview.LatLng{Lat: 38.8976451, Lng: -77.0367452}
	DefaultZoom   = 8
)

// Marker and trail styling.
const (
	markerScale        = 4
	markerStrokeWeight = 2
	trailStrokeWeight  = 4
)

// Options configures a Presenter.
type Options struct {
	Center mapview.LatLng
	Zoom   int
	Style  mapview.Style

	// Locator resolves the viewer position at Start, nil means no location service
	Locator locate.Locator

	Logger *slog.Logger
}

// DefaultOptions returns the default view with no location service.
func DefaultOptions() Options {
	return Options{
		Center: DefaultCenter,
		Zoom:   DefaultZoom,
		Style:  mapview.StyleRoadmap,
	}
}

// entry is everything drawn for one aircraft.
// points always holds at least one position and len(segments) == len(points)-1.
type entry struct {
	marker   mapview.MarkerID
	points   []mapview.LatLng
	segments []mapview.LineID
	latest   adsb.Aircraft
}

type markerClicked struct {
	marker mapview.MarkerID
}

type located struct {
	pos mapview.LatLng
	err error
}

// Presenter owns the per-aircraft tables and is the only writer of the widget.
// All methods except Start's location lookup must be called from one goroutine,
// normally the one running Run.
type Presenter struct {
	widget mapview.Widget
	opts   Options
	logger *slog.Logger

	tracked  map[string]*entry
	byMarker map[mapview.MarkerID]string

	// overlayOn is the marker the open overlay is anchored on, zero if none or anchored on a position
	overlayOpen bool
	overlayOn   mapview.MarkerID

	// internal carries clicks and the location result onto the event loop
	internal chan any
}

// New creates a presenter drawing on widget.
// A zero Center and Zoom select the default view.
func New(widget mapview.Widget, opts Options) *Presenter {
	if opts.Center == (mapview.LatLng{}) && opts.Zoom == 0 {
		opts.Center = DefaultCenter
		opts.Zoom = DefaultZoom
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	p := &Presenter{
		widget:   widget,
		opts:     opts,
		logger:   opts.Logger.With("component", "presenter"),
		tracked:  make(map[string]*entry),
		byMarker: make(map[mapview.MarkerID]string),
		internal: make(chan any, 64),
	}
	widget.OnMarkerClick(p.post)
	return p
}

// post queues a marker click from the widget's goroutine.
func (p *Presenter) post(id mapview.MarkerID) {
	select {
	case p.internal <- markerClicked{marker: id}:
	default:
		p.logger.Warn("dropped marker click, event loop busy", "marker", id)
	}
}

// Start sets up the initial view and starts the location lookup.
// Its result is applied by Run.
func (p *Presenter) Start(ctx context.Context) {
	p.widget.SetView(mapview.View{Center: p.opts.Center, Zoom: p.opts.Zoom, Style: p.opts.Style})

	if p.opts.Locator == nil {
		p.handleLocated(located{err: locate.ErrUnavailable})
		return
	}

	go func() {
		pos, err := p.opts.Locator.Locate(ctx)
		select {
		case p.internal <- located{pos: pos, err: err}:
		case <-ctx.Done():
		}
	}()
}

// Run processes events one at a time until ctx is cancelled or events is closed.
func (p *Presenter) Run(ctx context.Context, events <-chan adsb.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.Handle(ev)
		case msg := <-p.internal:
			switch m := msg.(type) {
			case markerClicked:
				p.handleClick(m.marker)
			case located:
				p.handleLocated(m)
			}
		}
	}
}

// Handle applies one feed event.
func (p *Presenter) Handle(ev adsb.Event) {
	switch ev.Kind {
	case adsb.EventUpdated:
		p.upsert(ev.Aircraft)
	case adsb.EventRemoved:
		p.remove(ev.ICAO)
	case adsb.EventConnected:
		p.logger.Info("feed connected")
	case adsb.EventDisconnected:
		if ev.Err != nil {
			p.logger.Warn("feed disconnected", "error", ev.Err)
		} else {
			p.logger.Warn("feed disconnected")
		}
	default:
		p.logger.Debug("ignoring event", "kind", ev.Kind)
	}
}

func arrow(color string, rotation float64) mapview.Icon {
	return mapview.Icon{
		Shape:         mapview.ShapeForwardClosedArrow,
		FillColor:     color,
		FillOpacity:   1,
		StrokeColor:   "black",
		StrokeOpacity: 1,
		StrokeWeight:  markerStrokeWeight,
		Rotation:      rotation,
		Scale:         markerScale,
	}
}

func (p *Presenter) upsert(ac adsb.Aircraft) {
	pos := mapview.LatLng{Lat: ac.Latitude, Lng: ac.Longitude}
	color := AltitudeColor(ac.Altitude)
	icon := arrow(color, Rotation(ac.Heading))

	e, ok := p.tracked[ac.ICAO]
	if !ok {
		id := p.widget.AddMarker(mapview.MarkerOptions{Position: pos, Icon: icon, Title: ac.ICAO})
		p.tracked[ac.ICAO] = &entry{
			marker: id,
			points: []mapview.LatLng{pos},
			latest: ac,
		}
		p.byMarker[id] = ac.ICAO
		p.logger.Debug("tracking aircraft", "icao", ac.ICAO, "callsign", ac.Callsign)
		return
	}

	prev := e.points[len(e.points)-1]
	e.points = append(e.points, pos)
	line := p.widget.AddLine(mapview.LineOptions{
		Path:          []mapview.LatLng{prev, pos},
		Geodesic:      true,
		StrokeColor:   color,
		StrokeOpacity: 1,
		StrokeWeight:  trailStrokeWeight,
	})
	e.segments = append(e.segments, line)
	p.widget.UpdateMarker(e.marker, pos, icon)
	e.latest = ac
}

func (p *Presenter) remove(icao string) {
	e, ok := p.tracked[icao]
	if !ok {
		p.logger.Debug("remove for untracked aircraft", "icao", icao)
		return
	}

	for _, line := range e.segments {
		p.widget.RemoveLine(line)
	}
	p.widget.RemoveMarker(e.marker)
	if p.overlayOpen && p.overlayOn == e.marker {
		p.closeOverlay()
	}

	delete(p.byMarker, e.marker)
	delete(p.tracked, icao)
	p.logger.Debug("removed aircraft", "icao", icao, "points", len(e.points))
}

func (p *Presenter) handleClick(id mapview.MarkerID) {
	icao, ok := p.byMarker[id]
	if !ok {
		return
	}
	info := FormatInfo(p.tracked[icao].latest)

	p.closeOverlay()
	p.widget.OpenOverlay(mapview.Overlay{HTML: info.HTML(), Text: info.Text(), Marker: id})
	p.overlayOpen, p.overlayOn = true, id
}

func (p *Presenter) handleLocated(l located) {
	if l.err == nil {
		p.widget.SetCenter(l.pos)
		p.openMessage(l.pos, MsgLocationFound)
		p.logger.Info("viewer located", "lat", l.pos.Lat, "lng", l.pos.Lng)
		return
	}

	msg := MsgLocationFailed
	if errors.Is(l.err, locate.ErrUnavailable) {
		msg = MsgLocationUnavailable
	}
	p.openMessage(p.widget.Center(), msg)
	p.logger.Warn("location lookup failed", "error", l.err)
}

func (p *Presenter) openMessage(at mapview.LatLng, text string) {
	p.closeOverlay()
	p.widget.OpenOverlay(mapview.Overlay{HTML: text, Text: text, Position: at})
	p.overlayOpen, p.overlayOn = true, 0
}

func (p *Presenter) closeOverlay() {
	if p.overlayOpen {
		p.widget.CloseOverlay()
	}
	p.overlayOpen, p.overlayOn = false, 0
}

// Tracked returns the number of aircraft on the map.
func (p *Presenter) Tracked() int {
	return len(p.tracked)
}

// Has reports whether icao is on the map.
func (p *Presenter) Has(icao string) bool {
	_, ok := p.tracked[icao]
	return ok
}

// PathLen returns the number of recorded positions for icao.
func (p *Presenter) PathLen(icao string) int {
	if e, ok := p.tracked[icao]; ok {
		return len(e.points)
	}
	return 0
}

// TrailLen returns the number of trail segments drawn for icao.
func (p *Presenter) TrailLen(icao string) int {
	if e, ok := p.tracked[icao]; ok {
		return len(e.segments)
	}
	return 0
}
