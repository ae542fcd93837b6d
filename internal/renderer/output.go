// Package renderer rasterizes bead grids and their color legends.
package renderer

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/maax3v3/beadboard/internal/aggregation"
	"github.com/maax3v3/beadboard/internal/board"
)

// Config holds rendering configuration.
type Config struct {
	CellSize         int // pixels per bead edge in grid exports
	LegendWidth      int // total width of the legend sheet
	LegendPadding    int // vertical padding above and below the legend
	LegendCircleSize int // diameter of legend color circles
	LegendSpacing    int // horizontal spacing between legend items
	LegendMargin     int // left/right margin for the legend area
}

// DefaultConfig returns sensible default rendering configuration.
func DefaultConfig() Config {
	return Config{
		CellSize:         20,
		LegendWidth:      480,
		LegendPadding:    20,
		LegendCircleSize: 30,
		LegendSpacing:    15,
		LegendMargin:     20,
	}
}

// RenderGrid draws one solid CellSize square per bead. There is no
// anti-aliasing and no grid-line overlay.
func RenderGrid(g board.Grid, cfg Config) *image.RGBA {
	cell := cfg.CellSize
	if cell < 1 {
		cell = 1
	}
	out := image.NewRGBA(image.Rect(0, 0, g.Width()*cell, g.Height()*cell))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	for y, row := range g {
		for x, c := range row {
			r := image.Rect(x*cell, y*cell, (x+1)*cell, (y+1)*cell)
			draw.Draw(out, r, image.NewUniform(c.RGBA()), image.Point{}, draw.Src)
		}
	}
	return out
}

// RenderLegend draws the bead shopping list for stats: one color circle
// per entry labelled with its palette name, followed by the bead count.
func RenderLegend(stats aggregation.Stats, font FontRenderer, cfg Config) *image.RGBA {
	height := calculateLegendHeight(stats, font, cfg)
	out := image.NewRGBA(image.Rect(0, 0, cfg.LegendWidth, height))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	drawLegend(out, stats, font, cfg)
	return out
}

func legendItemWidth(font FontRenderer, cfg Config) int {
	countW, _ := font.MeasureString("x10000", countFontSize(cfg))
	return cfg.LegendCircleSize + cfg.LegendSpacing/2 + countW + cfg.LegendSpacing
}

func itemsPerRow(font FontRenderer, cfg Config) int {
	availableW := cfg.LegendWidth - 2*cfg.LegendMargin
	return max(1, availableW/legendItemWidth(font, cfg))
}

func countFontSize(cfg Config) int {
	return max(7, cfg.LegendCircleSize/2)
}

func calculateLegendHeight(stats aggregation.Stats, font FontRenderer, cfg Config) int {
	if len(stats.Entries) == 0 {
		return 2 * cfg.LegendPadding
	}
	perRow := itemsPerRow(font, cfg)
	numRows := (len(stats.Entries) + perRow - 1) / perRow
	rowHeight := cfg.LegendCircleSize + cfg.LegendSpacing
	return cfg.LegendPadding + numRows*rowHeight + cfg.LegendPadding
}

func drawLegend(img *image.RGBA, stats aggregation.Stats, font FontRenderer, cfg Config) {
	perRow := itemsPerRow(font, cfg)
	itemWidth := legendItemWidth(font, cfg)
	nameSize := cfg.LegendCircleSize * 2 / 3
	countSize := countFontSize(cfg)
	radius := cfg.LegendCircleSize / 2

	for i, entry := range stats.Entries {
		row := i / perRow
		col := i % perRow

		cx := cfg.LegendMargin + col*itemWidth + radius
		cy := cfg.LegendPadding + row*(cfg.LegendCircleSize+cfg.LegendSpacing) + radius

		drawFilledCircle(img, cx, cy, radius, entry.Hex.RGBA())
		drawCircleBorder(img, cx, cy, radius, color.RGBA{100, 100, 100, 255})

		textColor := color.Color(color.Black)
		if !entry.Hex.IsLight() {
			textColor = color.White
		}
		name := entry.Name
		if w, _ := font.MeasureString(name, nameSize); w > cfg.LegendCircleSize {
			name = "" // hex fallbacks do not fit inside the swatch
		}
		font.DrawString(img, name, cx, cy, textColor, nameSize)

		count := fmt.Sprintf("x%d", entry.Count)
		w, _ := font.MeasureString(count, countSize)
		left := cx + radius + cfg.LegendSpacing/2
		font.DrawString(img, count, left+w/2, cy, color.Black, countSize)
	}
}

func drawFilledCircle(img *image.RGBA, cx, cy, radius int, col color.RGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				px, py := cx+dx, cy+dy
				if px >= 0 && px < img.Bounds().Dx() && py >= 0 && py < img.Bounds().Dy() {
					img.SetRGBA(px, py, col)
				}
			}
		}
	}
}

func drawCircleBorder(img *image.RGBA, cx, cy, radius int, col color.RGBA) {
	for angle := 0.0; angle < 2*math.Pi; angle += 0.01 {
		px := cx + int(math.Round(float64(radius)*math.Cos(angle)))
		py := cy + int(math.Round(float64(radius)*math.Sin(angle)))
		if px >= 0 && px < img.Bounds().Dx() && py >= 0 && py < img.Bounds().Dy() {
			img.SetRGBA(px, py, col)
		}
	}
}
