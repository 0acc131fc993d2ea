package webview

import "github.com/unklstewy/ads-bmap/pkg/mapview"

// Command types sent to the page.
const (
	cmdSnapshot      = "snapshot"
	cmdView          = "view"
	cmdMarkerAdd     = "marker.add"
	cmdMarkerUpdate  = "marker.update"
	cmdMarkerRemove  = "marker.remove"
	cmdLineAdd       = "line.add"
	cmdLineRemove    = "line.remove"
	cmdOverlayOpen   = "overlay.open"
	cmdOverlayClosed = "overlay.close"
)

type viewJSON struct {
	Center mapview.LatLng `json:"center"`
	Zoom   int            `json:"zoom"`
	Style  string         `json:"style"`
}

type markerJSON struct {
	ID       uint64         `json:"id"`
	Position mapview.LatLng `json:"position"`
	Icon     mapview.Icon   `json:"icon"`
	Title    string         `json:"title"`
}

type lineJSON struct {
	ID       uint64           `json:"id"`
	Path     []mapview.LatLng `json:"path"`
	Geodesic bool             `json:"geodesic"`
	Color    string           `json:"color"`
	Opacity  float64          `json:"opacity"`
	Weight   float64          `json:"weight"`
}

type overlayJSON struct {
	HTML     string         `json:"html"`
	Marker   uint64         `json:"marker,omitempty"`
	Position mapview.LatLng `json:"position"`
}

// command is one message to the page. Only the fields relevant to Type are set.
type command struct {
	Type    string       `json:"type"`
	ID      uint64       `json:"id,omitempty"`
	View    *viewJSON    `json:"view,omitempty"`
	Marker  *markerJSON  `json:"marker,omitempty"`
	Line    *lineJSON    `json:"line,omitempty"`
	Overlay *overlayJSON `json:"overlay,omitempty"`

	Markers []markerJSON `json:"markers,omitempty"`
	Lines   []lineJSON   `json:"lines,omitempty"`
}

// inbound is a message from the page.
type inbound struct {
	Type string `json:"type"`
	ID   uint64 `json:"id"`
}

func toView(v mapview.View) *viewJSON {
	return &viewJSON{Center: v.Center, Zoom: v.Zoom, Style: v.Style.String()}
}

func toMarker(m mapview.Marker) markerJSON {
	return markerJSON{ID: uint64(m.ID), Position: m.Position, Icon: m.Icon, Title: m.Title}
}

func toLine(l mapview.Line) lineJSON {
	return lineJSON{
		ID:       uint64(l.ID),
		Path:     l.Path,
		Geodesic: l.Geodesic,
		Color:    l.StrokeColor,
		Opacity:  l.StrokeOpacity,
		Weight:   l.StrokeWeight,
	}
}

func toOverlay(o mapview.Overlay) *overlayJSON {
	return &overlayJSON{HTML: o.HTML, Marker: uint64(o.Marker), Position: o.Position}
}

func snapshotCommand(s mapview.Snapshot) command {
	cmd := command{
		Type:    cmdSnapshot,
		View:    toView(s.View),
		Markers: make([]markerJSON, 0, len(s.Markers)),
		Lines:   make([]lineJSON, 0, len(s.Lines)),
	}
	for _, m := range s.Markers {
		cmd.Markers = append(cmd.Markers, toMarker(m))
	}
	for _, l := range s.Lines {
		cmd.Lines = append(cmd.Lines, toLine(l))
	}
	if s.Overlay != nil {
		cmd.Overlay = toOverlay(*s.Overlay)
	}
	return cmd
}

func changeCommand(ch mapview.Change) (command, bool) {
	switch ch.Kind {
	case mapview.ChangeView:
		return command{Type: cmdView, View: toView(ch.View)}, true
	case mapview.ChangeMarkerAdded:
		m := toMarker(ch.Marker)
		return command{Type: cmdMarkerAdd, Marker: &m}, true
	case mapview.ChangeMarkerUpdated:
		m := toMarker(ch.Marker)
		return command{Type: cmdMarkerUpdate, Marker: &m}, true
	case mapview.ChangeMarkerRemoved:
		return command{Type: cmdMarkerRemove, ID: uint64(ch.Marker.ID)}, true
	case mapview.ChangeLineAdded:
		l := toLine(ch.Line)
		return command{Type: cmdLineAdd, Line: &l}, true
	case mapview.ChangeLineRemoved:
		return command{Type: cmdLineRemove, ID: uint64(ch.Line.ID)}, true
	case mapview.ChangeOverlayOpened:
		return command{Type: cmdOverlayOpen, Overlay: toOverlay(ch.Overlay)}, true
	case mapview.ChangeOverlayClosed:
		return command{Type: cmdOverlayClosed}, true
	}
	return command{}, false
}
