// Package aggregation computes per-color bead counts over a grid and plans
// the merge of rare colors into common ones.
package aggregation

import (
	"errors"
	"math"
	"sort"

	"github.com/maax3v3/beadboard/internal/board"
	"github.com/maax3v3/beadboard/internal/color"
	"github.com/maax3v3/beadboard/internal/palette"
)

// DefaultThreshold is the share below which a color counts as rare.
const DefaultThreshold = 0.03

// ErrNothingToMerge is returned when every color is rare or every color is common.
var ErrNothingToMerge = errors.New("no suitable colors to merge")

// Entry is the population of one color.
type Entry struct {
	Hex        color.Hex `json:"hex"`
	Name       string    `json:"name"`
	Count      int       `json:"count"`
	Percentage float64   `json:"percentage"` // rounded to one decimal
}

// Stats summarizes a grid.
type Stats struct {
	Total   int     `json:"total"`
	Entries []Entry `json:"entries"` // by count descending
}

// Compute counts every color in g. Entries are sorted by count, highest
// first; equal counts keep the order in which colors first appear
// (row-major). Names come from p, falling back to the hex value.
func Compute(g board.Grid, p palette.Palette) Stats {
	index := make(map[color.Hex]int)
	var entries []Entry
	total := 0
	for _, row := range g {
		for _, c := range row {
			total++
			if i, ok := index[c]; ok {
				entries[i].Count++
				continue
			}
			index[c] = len(entries)
			entries = append(entries, Entry{Hex: c, Count: 1})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})

	for i := range entries {
		e := &entries[i]
		e.Name = string(e.Hex)
		if pe, ok := p.Lookup(e.Hex); ok && pe.Name != "" {
			e.Name = pe.Name
		}
		e.Percentage = math.Round(float64(e.Count)/float64(total)*1000) / 10
	}
	return Stats{Total: total, Entries: entries}
}

// Plan is a proposed rare-to-common remapping.
type Plan struct {
	Threshold float64                 `json:"threshold"`
	Common    []Entry                 `json:"common"`
	Rare      []Entry                 `json:"rare"`
	Mapping   map[color.Hex]color.Hex `json:"mapping"`
}

// PlanMerge splits the colors of g into common (share >= threshold) and rare
// (share < threshold) and maps each rare color to its nearest common color.
// It returns ErrNothingToMerge when either side is empty.
func PlanMerge(g board.Grid, p palette.Palette, threshold float64) (Plan, error) {
	stats := Compute(g, p)
	plan := Plan{Threshold: threshold, Mapping: make(map[color.Hex]color.Hex)}
	if stats.Total == 0 {
		return plan, ErrNothingToMerge
	}

	for _, e := range stats.Entries {
		if float64(e.Count)/float64(stats.Total) >= threshold {
			plan.Common = append(plan.Common, e)
		} else {
			plan.Rare = append(plan.Rare, e)
		}
	}
	if len(plan.Common) == 0 || len(plan.Rare) == 0 {
		return plan, ErrNothingToMerge
	}

	reduced := make(palette.Palette, len(plan.Common))
	for i, e := range plan.Common {
		reduced[i] = palette.Entry{ID: string(e.Hex), Hex: e.Hex, Name: e.Name}
	}
	for _, e := range plan.Rare {
		plan.Mapping[e.Hex] = palette.Nearest(e.Hex, reduced)
	}
	return plan, nil
}

// Apply performs the plan on s as a single replacement.
func (p Plan) Apply(s board.State) (board.State, bool) {
	return board.ReplaceColors(s, p.Mapping)
}
