package beadboard

import (
	"context"
	"image"
	stdcolor "image/color"
	"path/filepath"
	"testing"
)

func stripes(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := stdcolor.RGBA{0xEE, 0x42, 0x56, 255}
			if y >= h/2 {
				c = stdcolor.RGBA{0x36, 0xBF, 0x38, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestConvert(t *testing.T) {
	grid, err := Convert(stripes(100, 50), DefaultOptions())
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if grid.Width() != 15 || grid.Height() != 8 {
		t.Fatalf("size: got %dx%d, want 15x8", grid.Width(), grid.Height())
	}
	if grid[0][0] != "#EE4256" || grid[7][14] != "#36BF38" {
		t.Errorf("unexpected colors %s / %s", grid[0][0], grid[7][14])
	}

	if _, err := Convert(nil, DefaultOptions()); err == nil {
		t.Error("expected error for nil image")
	}
}

func TestConvert_ExplicitSizeAndMerge(t *testing.T) {
	img := stripes(100, 100)
	img.SetRGBA(0, 0, stdcolor.RGBA{0x2F, 0x3B, 0xA8, 255})

	opts := DefaultOptions()
	opts.Width, opts.Height = 100, 100
	opts.MergeThreshold = 0.03
	grid, err := Convert(img, opts)
	if err != nil {
		t.Fatal(err)
	}
	if grid.Height() != 100 {
		t.Errorf("height: got %d", grid.Height())
	}
	stats := ComputeStats(grid, DefaultPalette())
	if len(stats.Entries) != 2 {
		t.Errorf("expected the stray pixel merged away, got %+v", stats.Entries)
	}
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	if err := SavePNG(in, stripes(40, 40)); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out.qoi")
	if err := ConvertFile(in, out, DefaultOptions()); err != nil {
		t.Fatalf("ConvertFile: %v", err)
	}
	img, err := LoadImage(out)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 300 || img.Bounds().Dy() != 300 {
		t.Errorf("output size: got %v", img.Bounds())
	}

	if err := ConvertFile(filepath.Join(dir, "missing.png"), out, DefaultOptions()); err == nil {
		t.Error("expected error for missing input")
	}
}

type countingFont struct{ calls int }

func (f *countingFont) DrawString(img *image.RGBA, text string, cx, cy int, col stdcolor.Color, size int) {
	f.calls++
}

func (f *countingFont) MeasureString(text string, size int) (int, int) {
	return len(text) * size, size
}

func TestRenderLegend_CustomFont(t *testing.T) {
	grid, _ := Convert(stripes(20, 20), DefaultOptions())
	font := &countingFont{}
	opts := DefaultOptions()
	opts.Font = font

	legend := RenderLegend(grid, opts)
	if legend.Bounds().Dx() == 0 {
		t.Fatal("empty legend")
	}
	// a name and a count per color
	if font.calls != 4 {
		t.Errorf("DrawString calls: got %d, want 4", font.calls)
	}
}

func TestSession(t *testing.T) {
	s := NewSession(DefaultSessionOptions())
	if err := s.LoadImage(context.Background(), stripes(30, 30)); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertEdge(Bottom); err != nil {
		t.Fatal(err)
	}
	if st := s.State(); st.Settings.Height != 16 || st.Source != nil {
		t.Errorf("edge insert should grow and detach: %+v", st.Settings)
	}
	if !s.Undo() || s.State().Source == nil {
		t.Error("undo should restore the bound image")
	}
}
