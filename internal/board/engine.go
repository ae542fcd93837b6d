package board

import (
	"errors"
	"fmt"
	"image"

	"github.com/maax3v3/beadboard/internal/color"
)

var (
	ErrGridTooSmall  = errors.New("grid would be smaller than minimum size")
	ErrGridTooLarge  = errors.New("grid would be larger than maximum size")
	ErrUnknownEdge   = errors.New("unknown edge direction")
	ErrNoSourceImage = errors.New("no source image bound")
)

// ValidationError reports a rejected edge edit. Silent is set when the
// rejection is one that is conventionally dropped without telling the user
// (growing past the maximum); shrinking below the minimum is not silent.
type ValidationError struct {
	Op     string
	Width  int
	Height int
	Silent bool
	Err    error
}

func (e *ValidationError) Error() string {
	switch {
	case errors.Is(e.Err, ErrGridTooSmall):
		return fmt.Sprintf("%s: cannot reduce grid smaller than %dx%d", e.Op, MinSize, MinSize)
	case errors.Is(e.Err, ErrGridTooLarge):
		return fmt.Sprintf("%s: cannot expand grid larger than %dx%d", e.Op, MaxSize, MaxSize)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Direction names one of the four grid edges.
type Direction string

const (
	Top    Direction = "top"
	Bottom Direction = "bottom"
	Left   Direction = "left"
	Right  Direction = "right"
)

// ParseDirection validates an edge name.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case Top, Bottom, Left, Right:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEdge, s)
}

func (d Direction) vertical() bool { return d == Top || d == Bottom }

// Generator rebuilds a quantized grid from a source image at a given size.
type Generator func(img image.Image, w, h int) Grid

// SetCell paints a single cell. Out-of-bounds coordinates and painting a
// cell with the color it already holds are no-ops.
func SetCell(s State, x, y int, c color.Hex) (State, bool) {
	if !s.Grid.InBounds(x, y) || s.Grid[y][x] == c {
		return s, false
	}
	next := s.Clone()
	next.Grid[y][x] = c
	return next, true
}

// FloodFill replaces every cell in the grid that holds the same color as
// (x, y) with c. This is a global color swap triggered by picking a cell,
// not a connectivity-based fill: matching cells that do not touch the
// picked cell change too.
func FloodFill(s State, x, y int, c color.Hex) (State, bool) {
	if !s.Grid.InBounds(x, y) {
		return s, false
	}
	target := s.Grid[y][x]
	if target == c {
		return s, false
	}
	return ReplaceColors(s, map[color.Hex]color.Hex{target: c})
}

// ReplaceColors substitutes every cell whose color is a key of mapping with
// the mapped value, in a single pass. Cells not in mapping are untouched.
func ReplaceColors(s State, mapping map[color.Hex]color.Hex) (State, bool) {
	if len(mapping) == 0 {
		return s, false
	}
	next := s.Clone()
	changed := false
	for y, row := range next.Grid {
		for x, cell := range row {
			if to, ok := mapping[cell]; ok && to != cell {
				next.Grid[y][x] = to
				changed = true
			}
		}
	}
	if !changed {
		return s, false
	}
	return next, true
}

// Resize changes the grid dimensions. Both dimensions are clamped to
// [MinSize, MaxSize]. With a bound source image the grid is regenerated by
// gen at the new size and the binding is kept; without one the old grid is
// cropped or padded with white, anchored top-left.
func Resize(s State, w, h int, gen Generator) State {
	w, h = Clamp(w), Clamp(h)
	next := State{
		Settings: s.Settings,
		Source:   s.Source,
	}
	next.Settings.Width = w
	next.Settings.Height = h
	if s.Source != nil && gen != nil {
		next.Grid = gen(s.Source, w, h).Fit(w, h)
		return next
	}
	next.Source = nil
	next.Grid = s.Grid.Fit(w, h)
	return next
}

// InsertEdge adds a white row or column on the given edge. It always
// detaches the source image.
func InsertEdge(s State, d Direction) (State, error) {
	if _, err := ParseDirection(string(d)); err != nil {
		return s, err
	}
	w, h := s.Settings.Width, s.Settings.Height
	if d.vertical() {
		h++
	} else {
		w++
	}
	if w > MaxSize || h > MaxSize {
		return s, &ValidationError{Op: "insert " + string(d), Width: w, Height: h, Silent: true, Err: ErrGridTooLarge}
	}

	old := s.Grid.Fit(s.Settings.Width, s.Settings.Height)
	var g Grid
	switch d {
	case Top:
		g = append(Grid{whiteRow(w)}, old...)
	case Bottom:
		g = append(old, whiteRow(w))
	case Left:
		g = make(Grid, h)
		for y, row := range old {
			g[y] = append([]color.Hex{color.White}, row...)
		}
	case Right:
		g = make(Grid, h)
		for y, row := range old {
			g[y] = append(row, color.White)
		}
	default:
		return s, fmt.Errorf("%w: %q", ErrUnknownEdge, d)
	}
	return detached(g, s.Settings, w, h), nil
}

// RemoveEdge discards the row or column on the given edge. It always
// detaches the source image.
func RemoveEdge(s State, d Direction) (State, error) {
	if _, err := ParseDirection(string(d)); err != nil {
		return s, err
	}
	w, h := s.Settings.Width, s.Settings.Height
	if d.vertical() {
		h--
	} else {
		w--
	}
	if w < MinSize || h < MinSize {
		return s, &ValidationError{Op: "remove " + string(d), Width: w, Height: h, Err: ErrGridTooSmall}
	}

	old := s.Grid.Fit(s.Settings.Width, s.Settings.Height)
	var g Grid
	switch d {
	case Top:
		g = old[1:]
	case Bottom:
		g = old[:len(old)-1]
	case Left:
		g = make(Grid, h)
		for y, row := range old {
			g[y] = row[1:]
		}
	case Right:
		g = make(Grid, h)
		for y, row := range old {
			g[y] = row[:len(row)-1]
		}
	default:
		return s, fmt.Errorf("%w: %q", ErrUnknownEdge, d)
	}
	return detached(g, s.Settings, w, h), nil
}

func detached(g Grid, settings Settings, w, h int) State {
	settings.Width = w
	settings.Height = h
	return State{Grid: g.Clone(), Settings: settings}
}

func whiteRow(w int) []color.Hex {
	row := make([]color.Hex, w)
	for i := range row {
		row[i] = color.White
	}
	return row
}
