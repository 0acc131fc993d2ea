package mapview

import (
	"cmp"
	"slices"
	"sync"
)

// ChangeKind identifies a scene mutation.
type ChangeKind int

const (
	ChangeView ChangeKind = iota + 1
	ChangeMarkerAdded
	ChangeMarkerUpdated
	ChangeMarkerRemoved
	ChangeLineAdded
	ChangeLineRemoved
	ChangeOverlayOpened
	ChangeOverlayClosed
)

// Change describes one mutation. Only the fields relevant to Kind are set.
type Change struct {
	Kind    ChangeKind
	View    View
	Marker  Marker
	Line    Line
	Overlay Overlay
}

// Snapshot is a consistent copy of the scene, markers and lines in creation order.
type Snapshot struct {
	View    View
	Markers []Marker
	Lines   []Line
	Overlay *Overlay
}

// Scene is an in-memory Widget. It is safe for concurrent use: the presenter
// mutates it from its event loop while renderers take snapshots from theirs.
type Scene struct {
	// emit serializes mutations so observers see changes in order
	emit sync.Mutex

	mu        sync.RWMutex
	view      View
	nextID    uint64
	markers   map[MarkerID]Marker
	lines     map[LineID]Line
	overlay   *Overlay
	listeners []func(MarkerID)
	observers []func(Change)
}

var _ Widget = (*Scene)(nil)

// NewScene returns an empty scene showing view.
func NewScene(view View) *Scene {
	return &Scene{
		view:    view,
		markers: make(map[MarkerID]Marker),
		lines:   make(map[LineID]Line),
	}
}

// Observe registers fn to be called after every mutation.
// fn runs outside the scene lock and may read the scene, but must not mutate it.
func (s *Scene) Observe(fn func(Change)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// mutate applies fn under the lock and notifies observers of the change it returns.
func (s *Scene) mutate(fn func() (Change, bool)) {
	s.emit.Lock()
	defer s.emit.Unlock()

	s.mu.Lock()
	ch, changed := fn()
	observers := s.observers
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, o := range observers {
		o(ch)
	}
}

func (s *Scene) issue() uint64 {
	s.nextID++
	return s.nextID
}

func (s *Scene) SetView(v View) {
	s.mutate(func() (Change, bool) {
		s.view = v
		return Change{Kind: ChangeView, View: v}, true
	})
}

// View returns the current view.
func (s *Scene) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

func (s *Scene) Center() LatLng {
	return s.View().Center
}

func (s *Scene) SetCenter(c LatLng) {
	s.mutate(func() (Change, bool) {
		s.view.Center = c
		return Change{Kind: ChangeView, View: s.view}, true
	})
}

// SetZoom changes the zoom level, clamped to [0, 21].
func (s *Scene) SetZoom(z int) {
	z = max(0, min(21, z))
	s.mutate(func() (Change, bool) {
		if s.view.Zoom == z {
			return Change{}, false
		}
		s.view.Zoom = z
		return Change{Kind: ChangeView, View: s.view}, true
	})
}

func (s *Scene) AddMarker(opts MarkerOptions) MarkerID {
	var id MarkerID
	s.mutate(func() (Change, bool) {
		id = MarkerID(s.issue())
		m := Marker{ID: id, MarkerOptions: opts}
		s.markers[id] = m
		return Change{Kind: ChangeMarkerAdded, Marker: m}, true
	})
	return id
}

func (s *Scene) UpdateMarker(id MarkerID, pos LatLng, icon Icon) {
	s.mutate(func() (Change, bool) {
		m, ok := s.markers[id]
		if !ok {
			return Change{}, false
		}
		m.Position = pos
		m.Icon = icon
		s.markers[id] = m
		return Change{Kind: ChangeMarkerUpdated, Marker: m}, true
	})
}

func (s *Scene) RemoveMarker(id MarkerID) {
	s.mutate(func() (Change, bool) {
		m, ok := s.markers[id]
		if !ok {
			return Change{}, false
		}
		delete(s.markers, id)
		return Change{Kind: ChangeMarkerRemoved, Marker: m}, true
	})
}

func (s *Scene) AddLine(opts LineOptions) LineID {
	var id LineID
	s.mutate(func() (Change, bool) {
		id = LineID(s.issue())
		opts.Path = slices.Clone(opts.Path)
		l := Line{ID: id, LineOptions: opts}
		s.lines[id] = l
		return Change{Kind: ChangeLineAdded, Line: l}, true
	})
	return id
}

func (s *Scene) RemoveLine(id LineID) {
	s.mutate(func() (Change, bool) {
		l, ok := s.lines[id]
		if !ok {
			return Change{}, false
		}
		delete(s.lines, id)
		return Change{Kind: ChangeLineRemoved, Line: l}, true
	})
}

func (s *Scene) OpenOverlay(o Overlay) {
	s.mutate(func() (Change, bool) {
		s.overlay = &o
		return Change{Kind: ChangeOverlayOpened, Overlay: o}, true
	})
}

func (s *Scene) CloseOverlay() {
	s.mutate(func() (Change, bool) {
		if s.overlay == nil {
			return Change{}, false
		}
		closed := *s.overlay
		s.overlay = nil
		return Change{Kind: ChangeOverlayClosed, Overlay: closed}, true
	})
}

func (s *Scene) OnMarkerClick(fn func(MarkerID)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Click reports a user selection of marker id to the click listeners.
// Clicks on markers that no longer exist are dropped.
func (s *Scene) Click(id MarkerID) bool {
	s.mu.RLock()
	_, ok := s.markers[id]
	listeners := s.listeners
	s.mu.RUnlock()

	if !ok {
		return false
	}
	for _, fn := range listeners {
		fn(id)
	}
	return true
}

// Marker returns the marker with the given id.
func (s *Scene) Marker(id MarkerID) (Marker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.markers[id]
	return m, ok
}

// Overlay returns the open overlay, if any.
func (s *Scene) Overlay() (Overlay, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.overlay == nil {
		return Overlay{}, false
	}
	return *s.overlay, true
}

// Snapshot copies the scene.
func (s *Scene) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		View:    s.view,
		Markers: make([]Marker, 0, len(s.markers)),
		Lines:   make([]Line, 0, len(s.lines)),
	}
	for _, m := range s.markers {
		snap.Markers = append(snap.Markers, m)
	}
	for _, l := range s.lines {
		l.Path = slices.Clone(l.Path)
		snap.Lines = append(snap.Lines, l)
	}
	slices.SortFunc(snap.Markers, func(a, b Marker) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(snap.Lines, func(a, b Line) int { return cmp.Compare(a.ID, b.ID) })
	if s.overlay != nil {
		o := *s.overlay
		snap.Overlay = &o
	}
	return snap
}
