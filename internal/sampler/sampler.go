// Package sampler turns a source image into a grid of palette colors.
package sampler

import (
	"image"
	stdcolor "image/color"
	"math"
	"sync"

	"golang.org/x/image/draw"

	"github.com/maax3v3/beadboard/internal/board"
	"github.com/maax3v3/beadboard/internal/color"
	"github.com/maax3v3/beadboard/internal/palette"
)

// Sample scales img down (or up) to exactly w x h cells and returns one raw
// color per cell. The image is drawn over an opaque white canvas, so
// transparent source pixels come out white.
func Sample(img image.Image, w, h int) board.Grid {
	if w < 1 || h < 1 {
		return board.Grid{}
	}
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(stdcolor.White), image.Point{}, draw.Src)
	if img != nil && !img.Bounds().Empty() {
		draw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), img, img.Bounds(), draw.Over, nil)
	}

	g := make(board.Grid, h)
	for y := 0; y < h; y++ {
		row := make([]color.Hex, w)
		for x := 0; x < w; x++ {
			off := canvas.PixOffset(x, y)
			px := canvas.Pix[off : off+3 : off+3]
			row[x] = color.FromRGB(px[0], px[1], px[2])
		}
		g[y] = row
	}
	return g
}

// Quantize maps every cell of raw to its nearest palette color. raw is not
// modified.
func Quantize(raw board.Grid, p palette.Palette) board.Grid {
	out := make(board.Grid, len(raw))
	parallelRows(len(raw), func(sy, ey int) {
		for y := sy; y < ey; y++ {
			row := make([]color.Hex, len(raw[y]))
			for x, c := range raw[y] {
				row[x] = palette.Nearest(c, p)
			}
			out[y] = row
		}
	})
	return out
}

// Generate samples img at w x h and quantizes the result against p.
func Generate(img image.Image, w, h int, p palette.Palette) board.Grid {
	return Quantize(Sample(img, w, h), p)
}

// Generator binds p into a board.Generator.
func Generator(p palette.Palette) board.Generator {
	p = p.Clone()
	return func(img image.Image, w, h int) board.Grid {
		return Generate(img, w, h, p)
	}
}

// DeriveHeight returns the grid height that keeps the aspect ratio of
// bounds at the given width, clamped to the allowed grid range.
func DeriveHeight(width int, bounds image.Rectangle) int {
	if bounds.Dx() == 0 {
		return board.Clamp(width)
	}
	aspect := float64(bounds.Dy()) / float64(bounds.Dx())
	return board.Clamp(int(math.Round(float64(width) * aspect)))
}

// parallelRows runs fn across row bands using multiple goroutines.
// Each band writes only its own rows.
func parallelRows(h int, fn func(startY, endY int)) {
	numWorkers := 8
	rowsPerWorker := (h + numWorkers - 1) / numWorkers
	var wg sync.WaitGroup
	for worker := 0; worker < numWorkers; worker++ {
		startY := worker * rowsPerWorker
		endY := startY + rowsPerWorker
		if endY > h {
			endY = h
		}
		if startY >= h {
			break
		}
		wg.Add(1)
		go func(sy, ey int) {
			defer wg.Done()
			fn(sy, ey)
		}(startY, endY)
	}
	wg.Wait()
}
