// Package palette holds the ordered set of allowed bead colors and the
// nearest-color quantizer over it.
package palette

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/maax3v3/beadboard/internal/color"
)

var (
	ErrInvalidColor   = errors.New("invalid hex color")
	ErrDuplicateColor = errors.New("color already in palette")
)

// Entry is one allowed bead color.
type Entry struct {
	ID   string    `json:"id" yaml:"id"`
	Hex  color.Hex `json:"hex" yaml:"hex"`
	Name string    `json:"name,omitempty" yaml:"name,omitempty"`
}

// Palette is an ordered list of entries. Order only matters for breaking
// ties in Nearest.
type Palette []Entry

// Default returns the stock bobbin palette.
func Default() Palette {
	return Palette{
		{ID: "yellow1", Hex: "#F5DC4B", Name: "0"},
		{ID: "red1", Hex: "#EE4256", Name: "1"},
		{ID: "orange1", Hex: "#F68643", Name: "2"},
		{ID: "green1", Hex: "#36BF38", Name: "3"},
		{ID: "blue1", Hex: "#89DA18", Name: "4"},
		{ID: "brown1", Hex: "#C35536", Name: "5"},
		{ID: "blue2", Hex: "#26B7F5", Name: "6"},
		{ID: "blue3", Hex: "#3B61F4", Name: "7"},
		{ID: "pink1", Hex: "#F265F2", Name: "8"},
		{ID: "purple1", Hex: "#975CF6", Name: "9"},
		{ID: "pink2", Hex: "#F293E2", Name: "10"},
		{ID: "blue4", Hex: "#AA90F7", Name: "11"},
		{ID: "brown2", Hex: "#F3BE9E", Name: "12"},
		{ID: "blue5", Hex: "#20DFEC", Name: "13"},
		{ID: "orange2", Hex: "#F1A714", Name: "14"},
		{ID: "green2", Hex: "#28D69F", Name: "15"},
		{ID: "gray1", Hex: "#677E96", Name: "16"},
		{ID: "white1", Hex: "#B9C0CD", Name: "17"},
		{ID: "black1", Hex: "#5F5F61", Name: "18"},
	}
}

// Nearest returns the palette color closest to target by squared RGB
// distance. Ties resolve to the earliest entry. An empty palette or an
// undecodable target returns target unchanged; undecodable entries are
// skipped.
func Nearest(target color.Hex, p Palette) color.Hex {
	if len(p) == 0 {
		return target
	}
	want, ok := color.Decode(target)
	if !ok {
		return target
	}

	best := p[0].Hex
	bestDist := -1
	for _, e := range p {
		rgb, ok := color.Decode(e.Hex)
		if !ok {
			continue
		}
		d := color.Distance(want, rgb)
		if bestDist < 0 || d < bestDist {
			bestDist = d
			best = e.Hex
		}
	}
	return best
}

// Clone returns an independent copy of p.
func (p Palette) Clone() Palette {
	if p == nil {
		return nil
	}
	out := make(Palette, len(p))
	copy(out, p)
	return out
}

// Lookup finds the first entry whose color matches hex, ignoring case.
func (p Palette) Lookup(hex color.Hex) (Entry, bool) {
	for _, e := range p {
		if strings.EqualFold(string(e.Hex), string(hex)) {
			return e, true
		}
	}
	return Entry{}, false
}

// Contains reports whether hex is in p, ignoring case.
func (p Palette) Contains(hex color.Hex) bool {
	_, ok := p.Lookup(hex)
	return ok
}

// Add appends a new entry with a generated ID. The color is stored in
// canonical form.
func Add(p Palette, hex color.Hex, name string) (Palette, Entry, error) {
	if !hex.Valid() {
		return p, Entry{}, fmt.Errorf("%w: %q", ErrInvalidColor, hex)
	}
	hex = color.Normalize(hex)
	if p.Contains(hex) {
		return p, Entry{}, fmt.Errorf("%w: %s", ErrDuplicateColor, hex)
	}
	e := Entry{ID: NewID(), Hex: hex, Name: name}
	out := append(p.Clone(), e)
	return out, e, nil
}

// Remove drops every entry with the given ID.
// The boolean is false when no entry matched.
func Remove(p Palette, id string) (Palette, bool) {
	out := make(Palette, 0, len(p))
	found := false
	for _, e := range p {
		if e.ID == id {
			found = true
			continue
		}
		out = append(out, e)
	}
	if !found {
		return p, false
	}
	return out, true
}

// LoadFile reads a palette from a YAML or JSON file holding a list of
// entries. Entries without an ID get one generated.
func LoadFile(path string) (Palette, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading palette: %w", err)
	}
	var p Palette
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing palette %s: %w", path, err)
	}
	return Canonical(p)
}

// Canonical validates every entry of p and returns a copy with colors in
// canonical form and generated IDs for entries that lack one.
func Canonical(p Palette) (Palette, error) {
	out := p.Clone()
	for i := range out {
		if !out[i].Hex.Valid() {
			return nil, fmt.Errorf("palette entry %d: %w: %q", i, ErrInvalidColor, out[i].Hex)
		}
		out[i].Hex = color.Normalize(out[i].Hex)
		if out[i].ID == "" {
			out[i].ID = NewID()
		}
	}
	return out, nil
}

// NewID returns a fresh, time-ordered entry ID.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
