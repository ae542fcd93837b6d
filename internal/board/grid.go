// Package board holds the bead grid and the edit operations over it.
//
// Every operation is a pure function from one State to the next. Callers
// (see package session) decide whether the result is committed and pushed
// to history.
package board

import (
	"image"

	"github.com/maax3v3/beadboard/internal/color"
)

// Grid size bounds, inclusive.
const (
	MinSize = 5
	MaxSize = 100
)

// Grid is a row-major matrix of colors: grid[y][x].
type Grid [][]color.Hex

// NewGrid returns a w x h grid filled with fill.
func NewGrid(w, h int, fill color.Hex) Grid {
	g := make(Grid, h)
	for y := range g {
		row := make([]color.Hex, w)
		for x := range row {
			row[x] = fill
		}
		g[y] = row
	}
	return g
}

// Height is the number of rows.
func (g Grid) Height() int { return len(g) }

// Width is the length of the first row, or 0 for an empty grid.
func (g Grid) Width() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// InBounds reports whether (x, y) addresses a cell.
func (g Grid) InBounds(x, y int) bool {
	return y >= 0 && y < len(g) && x >= 0 && x < len(g[y])
}

// At returns the color at (x, y), or White when out of bounds.
func (g Grid) At(x, y int) color.Hex {
	if !g.InBounds(x, y) {
		return color.White
	}
	return g[y][x]
}

// Clone returns a deep copy.
func (g Grid) Clone() Grid {
	if g == nil {
		return nil
	}
	out := make(Grid, len(g))
	for y, row := range g {
		out[y] = append([]color.Hex(nil), row...)
	}
	return out
}

// Equal reports whether both grids have the same shape and cells.
func (g Grid) Equal(o Grid) bool {
	if len(g) != len(o) {
		return false
	}
	for y := range g {
		if len(g[y]) != len(o[y]) {
			return false
		}
		for x := range g[y] {
			if g[y][x] != o[y][x] {
				return false
			}
		}
	}
	return true
}

// Fit returns a copy of g cropped or padded with white to exactly w x h,
// anchored at the top-left corner.
func (g Grid) Fit(w, h int) Grid {
	out := make(Grid, h)
	for y := 0; y < h; y++ {
		row := make([]color.Hex, w)
		for x := 0; x < w; x++ {
			if y < len(g) && x < len(g[y]) {
				row[x] = g[y][x]
			} else {
				row[x] = color.White
			}
		}
		out[y] = row
	}
	return out
}

// Clamp bounds a dimension to [MinSize, MaxSize].
func Clamp(n int) int {
	return max(MinSize, min(MaxSize, n))
}

// Settings are the user-facing grid dimensions.
type Settings struct {
	Width           int  `json:"width"`
	Height          int  `json:"height"`
	LockAspectRatio bool `json:"lockAspectRatio"`
}

// State is the grid together with its settings and the optional source
// image it was sampled from. Source is shared, never copied.
type State struct {
	Grid     Grid
	Settings Settings
	Source   image.Image
}

// NewState returns an all-white state of the given size.
func NewState(settings Settings) State {
	settings.Width = Clamp(settings.Width)
	settings.Height = Clamp(settings.Height)
	return State{
		Grid:     NewGrid(settings.Width, settings.Height, color.White),
		Settings: settings,
	}
}

// Clone deep-copies the grid. Source keeps pointing at the same image.
func (s State) Clone() State {
	return State{Grid: s.Grid.Clone(), Settings: s.Settings, Source: s.Source}
}
