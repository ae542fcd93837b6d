package renderer

import (
	"image"
	"image/color"
	"testing"

	"github.com/maax3v3/beadboard/internal/aggregation"
	"github.com/maax3v3/beadboard/internal/board"
	bcol "github.com/maax3v3/beadboard/internal/color"
)

func TestBitmapFont_MeasureString(t *testing.T) {
	bf := NewBitmapFont()

	tests := []struct {
		name         string
		text         string
		size         int
		wantW, wantH int
	}{
		{
			name: "empty string",
			text: "", size: 14,
			wantW: 0, wantH: 0,
		},
		{
			name: "single digit scale 1",
			text: "5", size: 7,
			wantW: 5, wantH: 7,
		},
		{
			name: "hex name scale 1",
			text: "#FF", size: 7,
			// 3 * (5*1) + (3-1)*1 = 17
			wantW: 17, wantH: 7,
		},
		{
			name: "single digit scale 2",
			text: "5", size: 14,
			wantW: 10, wantH: 14,
		},
		{
			name: "size smaller than glyph height uses scale 1",
			text: "0", size: 3,
			wantW: 5, wantH: 7,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := bf.MeasureString(tt.text, tt.size)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("MeasureString(%q, %d) = (%d, %d), want (%d, %d)",
					tt.text, tt.size, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func countBlack(img *image.RGBA) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			if c.R == 0 && c.G == 0 && c.B == 0 {
				n++
			}
		}
	}
	return n
}

func whiteCanvas(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{255, 255, 255, 255})
		}
	}
	return img
}

func TestBitmapFont_DrawString_WritesPixels(t *testing.T) {
	bf := NewBitmapFont()
	for _, text := range []string{"1", "A", "f", "#", "x", "%"} {
		img := whiteCanvas(50, 50)
		bf.DrawString(img, text, 25, 25, color.Black, 7)
		if countBlack(img) == 0 {
			t.Errorf("DrawString(%q) wrote no pixels", text)
		}
	}
}

func TestBitmapFont_DrawString_LowercaseHexMatchesUppercase(t *testing.T) {
	bf := NewBitmapFont()
	lower := whiteCanvas(60, 20)
	upper := whiteCanvas(60, 20)
	bf.DrawString(lower, "#ab12cd", 30, 10, color.Black, 7)
	bf.DrawString(upper, "#AB12CD", 30, 10, color.Black, 7)
	for i := range lower.Pix {
		if lower.Pix[i] != upper.Pix[i] {
			t.Fatal("lowercase hex should render like uppercase")
		}
	}
}

func TestBitmapFont_DrawString_UnknownGlyph(t *testing.T) {
	bf := NewBitmapFont()
	img := whiteCanvas(50, 50)
	bf.DrawString(img, "?", 25, 25, color.Black, 7)
	if n := countBlack(img); n != 0 {
		t.Errorf("expected no pixels for unknown glyph, got %d", n)
	}
}

func TestBitmapFont_ImplementsFontRenderer(t *testing.T) {
	var _ FontRenderer = NewBitmapFont()
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.CellSize != 20 {
		t.Errorf("CellSize: got %d, want 20", cfg.CellSize)
	}
	if cfg.LegendCircleSize <= 0 || cfg.LegendWidth <= 0 {
		t.Errorf("legend sizes must be positive: %+v", cfg)
	}
}

func TestRenderGrid(t *testing.T) {
	g := board.NewGrid(6, 5, bcol.White)
	g[0][0] = "#FF0000"
	g[4][5] = "#0000FF"
	g[2][3] = "not a color"

	cfg := DefaultConfig()
	img := RenderGrid(g, cfg)

	if img.Bounds().Dx() != 120 || img.Bounds().Dy() != 100 {
		t.Fatalf("dimensions: got %dx%d, want 120x100", img.Bounds().Dx(), img.Bounds().Dy())
	}

	tests := []struct {
		name string
		x, y int
		want color.RGBA
	}{
		{"first cell top-left", 0, 0, color.RGBA{255, 0, 0, 255}},
		{"first cell bottom-right", 19, 19, color.RGBA{255, 0, 0, 255}},
		{"neighbour is white", 20, 0, color.RGBA{255, 255, 255, 255}},
		{"last cell", 119, 99, color.RGBA{0, 0, 255, 255}},
		{"invalid color renders white", 3*20 + 5, 2*20 + 5, color.RGBA{255, 255, 255, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := img.RGBAAt(tt.x, tt.y); got != tt.want {
				t.Errorf("pixel (%d,%d): got %v, want %v", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestRenderGrid_ZeroCellSize(t *testing.T) {
	img := RenderGrid(board.NewGrid(5, 5, bcol.White), Config{})
	if img.Bounds().Dx() != 5 || img.Bounds().Dy() != 5 {
		t.Errorf("dimensions: got %dx%d, want 5x5", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestCalculateLegendHeight_NoEntries(t *testing.T) {
	cfg := DefaultConfig()
	h := calculateLegendHeight(aggregation.Stats{}, NewBitmapFont(), cfg)
	if h != 2*cfg.LegendPadding {
		t.Errorf("got %d, want %d", h, 2*cfg.LegendPadding)
	}
}

func TestCalculateLegendHeight_WithEntries(t *testing.T) {
	cfg := DefaultConfig()
	font := NewBitmapFont()
	perRow := itemsPerRow(font, cfg)

	entries := make([]aggregation.Entry, perRow+1)
	for i := range entries {
		entries[i] = aggregation.Entry{Hex: bcol.White, Name: "1", Count: 1}
	}
	h := calculateLegendHeight(aggregation.Stats{Total: len(entries), Entries: entries}, font, cfg)

	want := 2*cfg.LegendPadding + 2*(cfg.LegendCircleSize+cfg.LegendSpacing)
	if h != want {
		t.Errorf("got %d, want %d", h, want)
	}
}

func TestRenderLegend_DrawsSwatches(t *testing.T) {
	cfg := DefaultConfig()
	stats := aggregation.Stats{
		Total: 12,
		Entries: []aggregation.Entry{
			{Hex: "#EE4256", Name: "1", Count: 8, Percentage: 66.7},
			{Hex: "#2F3BA8", Name: "2", Count: 4, Percentage: 33.3},
		},
	}
	img := RenderLegend(stats, NewBitmapFont(), cfg)

	if img.Bounds().Dx() != cfg.LegendWidth {
		t.Errorf("width: got %d, want %d", img.Bounds().Dx(), cfg.LegendWidth)
	}

	radius := cfg.LegendCircleSize / 2
	cx := cfg.LegendMargin + radius
	cy := cfg.LegendPadding + radius
	// just inside the circle edge, away from the centred label
	got := img.RGBAAt(cx-radius+3, cy)
	if got != (color.RGBA{0xEE, 0x42, 0x56, 0xFF}) {
		t.Errorf("swatch pixel: got %v", got)
	}
	if countBlack(img) == 0 {
		t.Error("expected count labels to be drawn")
	}
}
