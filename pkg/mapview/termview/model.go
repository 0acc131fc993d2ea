package termview

import (
	"math"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/unklstewy/ads-bmap/pkg/coordinates"
	"github.com/unklstewy/ads-bmap/pkg/mapview"
)

// World pixels covered by one terminal cell. Cells are about twice as tall as wide.
const (
	cellWidthPx  = 8.0
	cellHeightPx = 16.0
)

// Layout
const (
	defaultWidth  = 80
	defaultHeight = 24
	panelWidth    = 36
	statusLines   = 2

	// panStep is the fraction of the map area moved per key press
	panStep = 0.25
)

type model struct {
	widget *Widget
	width  int
	height int

	snap     mapview.Snapshot
	selected mapview.MarkerID
}

func newModel(w *Widget) model {
	return model{
		widget: w,
		width:  defaultWidth,
		height: defaultHeight,
		snap:   w.Snapshot(),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case sceneChangedMsg:
		// Clear before snapshotting so a change racing the snapshot schedules another redraw
		m.widget.pending.Store(false)
		m.refresh()

	case tea.KeyMsg:
		cols, rows := m.mapSize()
		stepX := int(math.Max(1, float64(cols)*panStep))
		stepY := int(math.Max(1, float64(rows)*panStep))

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "left", "h":
			m.pan(-stepX, 0)
		case "right", "l":
			m.pan(stepX, 0)
		case "up", "k":
			m.pan(0, -stepY)
		case "down", "j":
			m.pan(0, stepY)
		case "+", "=":
			m.widget.SetZoom(m.snap.View.Zoom + 1)
		case "-", "_":
			m.widget.SetZoom(m.snap.View.Zoom - 1)
		case "tab":
			m.cycle(1)
		case "shift+tab":
			m.cycle(-1)
		case "enter", " ":
			if m.selected != 0 {
				m.widget.Click(m.selected)
			}
		case "esc":
			m.widget.CloseOverlay()
		}
		m.refresh()

	case tea.MouseMsg:
		switch {
		case msg.Button == tea.MouseButtonWheelUp:
			m.widget.SetZoom(m.snap.View.Zoom + 1)
		case msg.Button == tea.MouseButtonWheelDown:
			m.widget.SetZoom(m.snap.View.Zoom - 1)
		case msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress:
			// The map starts one cell in from the border
			if id, ok := m.markerAt(msg.X-1, msg.Y-1); ok {
				m.selected = id
				m.widget.Click(id)
			}
		}
		m.refresh()
	}

	return m, nil
}

// refresh re-reads the scene and drops a selection whose marker is gone.
func (m *model) refresh() {
	m.snap = m.widget.Snapshot()
	if m.selected == 0 {
		return
	}
	for _, mk := range m.snap.Markers {
		if mk.ID == m.selected {
			return
		}
	}
	m.selected = 0
}

// cycle selects the next marker in creation order and clicks it.
func (m *model) cycle(dir int) {
	n := len(m.snap.Markers)
	if n == 0 {
		return
	}

	idx := -1
	for i, mk := range m.snap.Markers {
		if mk.ID == m.selected {
			idx = i
			break
		}
	}
	switch {
	case idx < 0 && dir > 0:
		idx = 0
	case idx < 0:
		idx = n - 1
	default:
		idx = (idx + dir + n) % n
	}

	m.selected = m.snap.Markers[idx].ID
	m.widget.Click(m.selected)
}

// pan moves the view center by the given number of cells.
func (m *model) pan(dc, dr int) {
	v := m.snap.View
	zoom := float64(v.Zoom)
	x, y := coordinates.Mercator(v.Center.Lat, v.Center.Lng, zoom)
	x += float64(dc) * cellWidthPx
	y += float64(dr) * cellHeightPx

	lat, lon := coordinates.InverseMercator(x, y, zoom)
	m.widget.SetCenter(mapview.LatLng{Lat: lat, Lng: coordinates.NormalizeLongitude(lon)})
}

// mapSize returns the drawable map area inside the border.
func (m model) mapSize() (cols, rows int) {
	width := m.width
	if m.snap.Overlay != nil {
		width -= panelWidth
	}
	cols = max(width-2, 10)
	rows = max(m.height-statusLines-2, 5)
	return cols, rows
}

// project maps a position to a map cell. ok is false outside the visible area.
func (m model) project(p mapview.LatLng) (col, row int, ok bool) {
	cols, rows := m.mapSize()
	v := m.snap.View
	zoom := float64(v.Zoom)

	cx, cy := coordinates.Mercator(v.Center.Lat, v.Center.Lng, zoom)
	x, y := coordinates.Mercator(p.Lat, p.Lng, zoom)

	col = cols/2 + int(math.Round((x-cx)/cellWidthPx))
	row = rows/2 + int(math.Round((y-cy)/cellHeightPx))
	ok = col >= 0 && col < cols && row >= 0 && row < rows
	return col, row, ok
}

// markerAt finds the marker nearest to a map cell, within one cell.
func (m model) markerAt(col, row int) (mapview.MarkerID, bool) {
	var (
		best  mapview.MarkerID
		bestD = math.MaxInt
	)
	for _, mk := range m.snap.Markers {
		c, r, ok := m.project(mk.Position)
		if !ok {
			continue
		}
		dc, dr := abs(c-col), abs(r-row)
		if dc > 1 || dr > 1 {
			continue
		}
		if d := dc + dr; d < bestD {
			best, bestD = mk.ID, d
		}
	}
	return best, best != 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
