// Package project reads and writes bead board project files.
//
// A project file is JSON (version "1.1") holding the grid settings, the
// palette and one entry per bead. Files may be zstd-compressed; Decode
// detects compression from the frame magic number.
package project

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/maax3v3/beadboard/internal/board"
	"github.com/maax3v3/beadboard/internal/color"
	"github.com/maax3v3/beadboard/internal/imaging"
	"github.com/maax3v3/beadboard/internal/palette"
)

// Version is written into every exported file.
const Version = "1.1"

var (
	// ErrInvalidFormat means the JSON parsed but required fields are missing.
	ErrInvalidFormat = errors.New("invalid project file format")
	// ErrMalformed means the input could not be parsed at all.
	ErrMalformed = errors.New("failed to parse project file")
)

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// maxDecodedSize bounds a decompressed project. A full 100x100 board is a
// few hundred KB of JSON.
const maxDecodedSize = 16 << 20

// Bead is one cell of the grid.
type Bead struct {
	X   int       `json:"x"`
	Y   int       `json:"y"`
	Hex color.Hex `json:"hex"`
}

// File is the on-disk project layout. Grid is the legacy matrix form and is
// only read, never written.
type File struct {
	Version   string           `json:"version"`
	Timestamp string           `json:"timestamp"`
	Settings  *board.Settings  `json:"settings"`
	Palette   *palette.Palette `json:"palette"`
	Beads     []Bead           `json:"beads,omitempty"`
	Grid      [][]color.Hex    `json:"grid,omitempty"`
}

// New builds a File from a board state, enumerating beads row-major.
func New(s board.State, p palette.Palette, now time.Time) *File {
	settings := s.Settings
	pal := p.Clone()
	if pal == nil {
		pal = palette.Palette{}
	}
	beads := make([]Bead, 0, settings.Width*settings.Height)
	for y, row := range s.Grid {
		for x, c := range row {
			beads = append(beads, Bead{X: x, Y: y, Hex: c})
		}
	}
	return &File{
		Version:   Version,
		Timestamp: now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Settings:  &settings,
		Palette:   &pal,
		Beads:     beads,
	}
}

// State rebuilds the board state described by f. Dimensions are clamped to
// the allowed grid range. Beads outside the grid are ignored and cells with
// no bead are white. A legacy grid matrix is cropped or padded to the
// settings. The result never has a source image.
func (f *File) State() board.State {
	settings := *f.Settings
	settings.Width = board.Clamp(settings.Width)
	settings.Height = board.Clamp(settings.Height)
	w, h := settings.Width, settings.Height

	var g board.Grid
	switch {
	case f.Beads != nil:
		g = board.NewGrid(w, h, color.White)
		for _, b := range f.Beads {
			if b.X >= 0 && b.X < w && b.Y >= 0 && b.Y < h {
				g[b.Y][b.X] = color.Normalize(b.Hex)
			}
		}
	case f.Grid != nil:
		g = board.Grid(f.Grid).Fit(w, h)
		for _, row := range g {
			for x, c := range row {
				row[x] = color.Normalize(c)
			}
		}
	default:
		g = board.NewGrid(w, h, color.White)
	}
	return board.State{Grid: g, Settings: settings}
}

// Colors returns the palette stored in f with canonical colors. Entries
// without an ID get one generated; undecodable colors are kept as they are.
func (f *File) Colors() palette.Palette {
	p := f.Palette.Clone()
	for i := range p {
		p[i].Hex = color.Normalize(p[i].Hex)
		if p[i].ID == "" {
			p[i].ID = palette.NewID()
		}
	}
	return p
}

// Encode writes f as indented JSON, zstd-compressed when compress is set.
func Encode(w io.Writer, f *File, compress bool) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding project: %w", err)
	}
	if !compress {
		_, err = w.Write(data)
		return err
	}
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return fmt.Errorf("compressing project: %w", err)
	}
	return zw.Close()
}

// Decode reads a project file, plain or zstd-compressed. It returns
// ErrMalformed when the input cannot be parsed and ErrInvalidFormat when
// settings or palette are missing.
func Decode(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading project: %w", err)
	}
	if bytes.HasPrefix(data, zstdMagic) {
		zr, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
		if err != nil {
			return nil, fmt.Errorf("creating zstd reader: %w", err)
		}
		defer zr.Close()
		data, err = zr.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if f.Settings == nil || f.Palette == nil {
		return nil, ErrInvalidFormat
	}
	return &f, nil
}

// Save writes f to path, compressing when the path ends in ".zst".
func Save(path string, f *File) error {
	path = imaging.ExpandPath(path)
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating project file: %w", err)
	}
	if err := Encode(out, f, strings.HasSuffix(strings.ToLower(path), ".zst")); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Load reads a project file from disk.
func Load(path string) (*File, error) {
	in, err := os.Open(imaging.ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("opening project file: %w", err)
	}
	defer in.Close()
	return Decode(in)
}
