package termview

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/unklstewy/ads-bmap/pkg/coordinates"
	"github.com/unklstewy/ads-bmap/pkg/mapview"
)

// arrowGlyphs are indexed by rotation in 45 degree steps, counter-clockwise from east.
var arrowGlyphs = [8]rune{'→', '↗', '↑', '↖', '←', '↙', '↓', '↘'}

const (
	trailGlyph    = '·'
	positionGlyph = '+'
)

type cell struct {
	char     rune
	color    string
	selected bool
}

// glyph returns the arrow closest to a marker rotation.
func glyph(rotation float64) rune {
	idx := int(math.Round(coordinates.NormalizeAzimuth(rotation)/45.0)) % len(arrowGlyphs)
	return arrowGlyphs[idx]
}

// termColor maps a CSS color to something lipgloss can draw.
// Black is shown as gray so unknown-altitude aircraft stay visible on dark terminals.
func termColor(css string) lipgloss.Color {
	switch {
	case strings.HasPrefix(css, "#"):
		return lipgloss.Color(css)
	case css == "black":
		return lipgloss.Color("244")
	case css == "":
		return lipgloss.Color("252")
	}
	return lipgloss.Color(css)
}

func (m model) View() string {
	var s strings.Builder

	mapView := m.renderMap()
	if m.snap.Overlay != nil {
		mapView = lipgloss.JoinHorizontal(lipgloss.Top, mapView, m.renderPanel(*m.snap.Overlay))
	}
	s.WriteString(mapView)
	s.WriteString("\n")

	v := m.snap.View
	statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	s.WriteString(statusStyle.Render(fmt.Sprintf("%d aircraft  zoom %d  %.4f,%.4f  %s",
		len(m.snap.Markers), v.Zoom, v.Center.Lat, v.Center.Lng, v.Style)))
	s.WriteString("\n")

	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	s.WriteString(helpStyle.Render("←↑↓→/hjkl: Pan  +/-: Zoom  TAB: Select  ESC: Close  Q: Quit"))

	return s.String()
}

func (m model) renderMap() string {
	cols, rows := m.mapSize()

	grid := make([][]cell, rows)
	for i := range grid {
		grid[i] = make([]cell, cols)
		for j := range grid[i] {
			grid[i][j] = cell{char: ' '}
		}
	}

	// Trails first so markers draw on top
	for _, l := range m.snap.Lines {
		for i := 1; i < len(l.Path); i++ {
			m.drawSegment(grid, l.Path[i-1], l.Path[i], l.StrokeColor)
		}
	}

	if o := m.snap.Overlay; o != nil && o.Marker == 0 {
		if c, r, ok := m.project(o.Position); ok {
			grid[r][c] = cell{char: positionGlyph, color: "#00AFFF"}
		}
	}

	var anchored mapview.MarkerID
	if m.snap.Overlay != nil {
		anchored = m.snap.Overlay.Marker
	}
	for _, mk := range m.snap.Markers {
		c, r, ok := m.project(mk.Position)
		if !ok {
			continue
		}
		grid[r][c] = cell{
			char:     glyph(mk.Icon.Rotation),
			color:    mk.Icon.FillColor,
			selected: mk.ID == m.selected || mk.ID == anchored,
		}
	}

	var out strings.Builder
	borderStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	out.WriteString(borderStyle.Render("┌" + strings.Repeat("─", cols) + "┐"))
	out.WriteString("\n")

	for _, row := range grid {
		out.WriteString(borderStyle.Render("│"))
		for _, c := range row {
			if c.char == ' ' {
				out.WriteRune(' ')
				continue
			}
			style := lipgloss.NewStyle().Foreground(termColor(c.color))
			if c.selected {
				style = style.Bold(true).Reverse(true)
			}
			out.WriteString(style.Render(string(c.char)))
		}
		out.WriteString(borderStyle.Render("│"))
		out.WriteString("\n")
	}

	out.WriteString(borderStyle.Render("└" + strings.Repeat("─", cols) + "┘"))
	return out.String()
}

// drawSegment rasterizes a trail segment with Bresenham's algorithm.
// Cells outside the grid are skipped, segments longer than the grid is wide are not drawn.
func (m model) drawSegment(grid [][]cell, from, to mapview.LatLng, color string) {
	x0, y0, _ := m.project(from)
	x1, y1, _ := m.project(to)

	rows := len(grid)
	cols := len(grid[0])
	dx, dy := abs(x1-x0), -abs(y1-y0)
	if dx > 4*cols || -dy > 4*rows {
		return
	}

	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}

	err := dx + dy
	for {
		if y0 >= 0 && y0 < rows && x0 >= 0 && x0 < cols {
			grid[y0][x0] = cell{char: trailGlyph, color: color}
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func (m model) renderPanel(o mapview.Overlay) string {
	_, rows := m.mapSize()

	title := "Message"
	if o.Marker != 0 {
		for _, mk := range m.snap.Markers {
			if mk.ID == o.Marker {
				title = mk.Title
				break
			}
		}
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	panelStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("39")).
		Padding(0, 1).
		Width(panelWidth - 2).
		Height(rows)

	return panelStyle.Render(titleStyle.Render(title) + "\n\n" + o.Text)
}
