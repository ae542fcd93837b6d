// Package beadboard turns raster images into bead patterns: a fixed-size
// grid of colors drawn from a constrained bead palette.
//
// Usage as a library:
//
//	img, _ := beadboard.LoadImage("photo.jpg")
//	grid, _ := beadboard.Convert(img, beadboard.DefaultOptions())
//	beadboard.Save("pattern.png", beadboard.Render(grid, beadboard.DefaultOptions()))
//
// Or use the file-based convenience:
//
//	err := beadboard.ConvertFile("photo.jpg", "pattern.png", beadboard.DefaultOptions())
//
// Interactive editing (paint, fill, resize, edges, undo/redo, merge) goes
// through a Session:
//
//	s := beadboard.NewSession(beadboard.DefaultSessionOptions())
//	s.LoadImage(ctx, img)
//	s.FloodFill(0, 0, "#FFFFFF")
//	s.Undo()
package beadboard

import (
	"fmt"
	"image"
	stdcolor "image/color"

	"github.com/maax3v3/beadboard/internal/aggregation"
	"github.com/maax3v3/beadboard/internal/board"
	"github.com/maax3v3/beadboard/internal/color"
	"github.com/maax3v3/beadboard/internal/imaging"
	"github.com/maax3v3/beadboard/internal/palette"
	"github.com/maax3v3/beadboard/internal/renderer"
	"github.com/maax3v3/beadboard/internal/sampler"
	"github.com/maax3v3/beadboard/internal/session"
)

// Grid size limits.
const (
	MinSize = board.MinSize
	MaxSize = board.MaxSize
)

type (
	// Hex is a "#RRGGBB" color.
	Hex = color.Hex
	// Grid is a row-major matrix of bead colors.
	Grid = board.Grid
	// PaletteEntry is one allowed bead color.
	PaletteEntry = palette.Entry
	// Palette is an ordered list of bead colors.
	Palette = palette.Palette
	// Stats is the per-color bead count of a grid.
	Stats = aggregation.Stats
	// Session is an editable bead board with undo history.
	Session = session.Session
	// SessionOptions configures a Session.
	SessionOptions = session.Options
	// Direction names a grid edge for InsertEdge and RemoveEdge.
	Direction = board.Direction
)

// Grid edges.
const (
	Top    = board.Top
	Bottom = board.Bottom
	Left   = board.Left
	Right  = board.Right
)

// Options configures a one-shot conversion.
type Options struct {
	// Width is the grid width in beads, clamped to [MinSize, MaxSize].
	// Default: 15.
	Width int

	// Height is the grid height in beads. 0 keeps the image's aspect
	// ratio. Default: 0.
	Height int

	// Palette is the set of allowed bead colors. Nil uses the stock
	// 19-color palette.
	Palette Palette

	// MergeThreshold folds colors used by less than this share of the beads
	// into their nearest common color. 0 disables merging.
	// Default: 0.
	MergeThreshold float64

	// CellSize is the edge length of one bead in rendered images, in
	// pixels. Default: 20.
	CellSize int

	// Font is the font renderer used to draw legend labels.
	// If nil, a built-in bitmap font is used.
	Font FontRenderer
}

// FontRenderer is the interface for drawing text onto images.
// Implement this to provide a custom font (e.g., TTF rendering).
type FontRenderer interface {
	// DrawString draws text centered at (cx, cy) on the image with the
	// specified color and approximate height in pixels.
	DrawString(img *image.RGBA, text string, cx, cy int, col stdcolor.Color, size int)

	// MeasureString returns the approximate width and height of the text
	// at the given font size.
	MeasureString(text string, size int) (width, height int)
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Width:    15,
		CellSize: renderer.DefaultConfig().CellSize,
	}
}

// DefaultSessionOptions returns the options of a fresh editor: a white
// 15x15 board, aspect ratio locked, stock palette, 30 undo steps.
func DefaultSessionOptions() SessionOptions {
	return session.DefaultOptions()
}

// NewSession creates an editable board.
func NewSession(opts SessionOptions) *Session {
	return session.New(opts)
}

// DefaultPalette returns the stock bead palette.
func DefaultPalette() Palette {
	return palette.Default()
}

// LoadPalette reads a palette from a YAML or JSON file.
func LoadPalette(path string) (Palette, error) {
	return palette.LoadFile(imaging.ExpandPath(path))
}

// Nearest returns the palette color closest to c.
func Nearest(c Hex, p Palette) Hex {
	return palette.Nearest(c, p)
}

// LoadImage reads an image from disk. Supports PNG, JPEG, GIF, WEBP, BMP,
// TIFF and QOI.
func LoadImage(path string) (image.Image, error) {
	return imaging.Load(path)
}

// SavePNG writes an image to disk as PNG.
func SavePNG(path string, img image.Image) error {
	return imaging.SavePNG(path, img)
}

// Save writes an image as QOI when path ends in ".qoi", PNG otherwise.
func Save(path string, img image.Image) error {
	return imaging.Save(path, img)
}

// Convert samples img onto a bead grid using the palette in opts.
func Convert(img image.Image, opts Options) (Grid, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}

	p := opts.Palette
	if p == nil {
		p = palette.Default()
	}
	w := board.Clamp(opts.Width)
	h := opts.Height
	if h == 0 {
		h = sampler.DeriveHeight(w, img.Bounds())
	}
	h = board.Clamp(h)

	grid := sampler.Generate(img, w, h, p)

	if opts.MergeThreshold > 0 {
		st := board.State{Grid: grid, Settings: board.Settings{Width: w, Height: h}}
		plan, err := aggregation.PlanMerge(grid, p, opts.MergeThreshold)
		if err == nil {
			st, _ = plan.Apply(st)
			grid = st.Grid
		}
	}
	return grid, nil
}

// Render draws grid with one solid square of opts.CellSize pixels per bead.
func Render(grid Grid, opts Options) *image.RGBA {
	return renderer.RenderGrid(grid, renderConfig(opts))
}

// ComputeStats counts the beads of each color in grid. Names come from p.
func ComputeStats(grid Grid, p Palette) Stats {
	return aggregation.Compute(grid, p)
}

// RenderLegend draws the bead shopping list for grid.
func RenderLegend(grid Grid, opts Options) *image.RGBA {
	p := opts.Palette
	if p == nil {
		p = palette.Default()
	}
	return renderer.RenderLegend(aggregation.Compute(grid, p), resolveFont(opts.Font), renderConfig(opts))
}

// ConvertFile is a convenience that loads an image from inPath, converts it,
// and saves the rendered pattern to outPath (PNG, or QOI for ".qoi").
func ConvertFile(inPath, outPath string, opts Options) error {
	img, err := LoadImage(inPath)
	if err != nil {
		return fmt.Errorf("loading image: %w", err)
	}

	grid, err := Convert(img, opts)
	if err != nil {
		return fmt.Errorf("converting: %w", err)
	}

	if err := Save(outPath, Render(grid, opts)); err != nil {
		return fmt.Errorf("saving output: %w", err)
	}

	return nil
}

func renderConfig(opts Options) renderer.Config {
	cfg := renderer.DefaultConfig()
	if opts.CellSize > 0 {
		cfg.CellSize = opts.CellSize
	}
	return cfg
}

// resolveFont returns a renderer.FontRenderer, using the built-in bitmap font
// if the user did not provide one.
func resolveFont(f FontRenderer) renderer.FontRenderer {
	if f != nil {
		return &fontAdapter{f}
	}
	return renderer.NewBitmapFont()
}

// fontAdapter adapts the public FontRenderer interface to the internal one.
type fontAdapter struct {
	f FontRenderer
}

func (a *fontAdapter) DrawString(img *image.RGBA, text string, cx, cy int, col stdcolor.Color, size int) {
	a.f.DrawString(img, text, cx, cy, col, size)
}

func (a *fontAdapter) MeasureString(text string, size int) (int, int) {
	return a.f.MeasureString(text, size)
}
