package renderer

import (
	"image"
	"image/color"
	"unicode"
)

// FontRenderer is the interface for drawing text onto images.
// Implementations can be swapped (e.g., bitmap font, TTF font).
type FontRenderer interface {
	// DrawString draws the given text centered at (cx, cy) on the image
	// with the specified color and font size (approximate height in pixels).
	DrawString(img *image.RGBA, text string, cx, cy int, col color.Color, size int)

	// MeasureString returns the approximate width and height of the text
	// at the given font size.
	MeasureString(text string, size int) (width, height int)
}

// BitmapFont is a simple bitmap font covering what legend labels need:
// digits, hex letters, '#', 'x', '.' and '%'.
type BitmapFont struct{}

// NewBitmapFont creates a new BitmapFont.
func NewBitmapFont() *BitmapFont {
	return &BitmapFont{}
}

// glyphs are 5x7 pixel bitmaps, one byte per row, high bit on the left.
var glyphs = map[rune][7]uint8{
	'0': {0x0E, 0x11, 0x13, 0x15, 0x19, 0x11, 0x0E},
	'1': {0x04, 0x0C, 0x04, 0x04, 0x04, 0x04, 0x0E},
	'2': {0x0E, 0x11, 0x01, 0x06, 0x08, 0x10, 0x1F},
	'3': {0x0E, 0x11, 0x01, 0x06, 0x01, 0x11, 0x0E},
	'4': {0x02, 0x06, 0x0A, 0x12, 0x1F, 0x02, 0x02},
	'5': {0x1F, 0x10, 0x1E, 0x01, 0x01, 0x11, 0x0E},
	'6': {0x06, 0x08, 0x10, 0x1E, 0x11, 0x11, 0x0E},
	'7': {0x1F, 0x01, 0x02, 0x04, 0x08, 0x08, 0x08},
	'8': {0x0E, 0x11, 0x11, 0x0E, 0x11, 0x11, 0x0E},
	'9': {0x0E, 0x11, 0x11, 0x0F, 0x01, 0x02, 0x0C},
	'A': {0x0E, 0x11, 0x11, 0x1F, 0x11, 0x11, 0x11},
	'B': {0x1E, 0x11, 0x11, 0x1E, 0x11, 0x11, 0x1E},
	'C': {0x0E, 0x11, 0x10, 0x10, 0x10, 0x11, 0x0E},
	'D': {0x1E, 0x11, 0x11, 0x11, 0x11, 0x11, 0x1E},
	'E': {0x1F, 0x10, 0x10, 0x1E, 0x10, 0x10, 0x1F},
	'F': {0x1F, 0x10, 0x10, 0x1E, 0x10, 0x10, 0x10},
	'#': {0x0A, 0x0A, 0x1F, 0x0A, 0x1F, 0x0A, 0x0A},
	'x': {0x00, 0x00, 0x11, 0x0A, 0x04, 0x0A, 0x11},
	'.': {0x00, 0x00, 0x00, 0x00, 0x00, 0x0C, 0x0C},
	'%': {0x18, 0x19, 0x02, 0x04, 0x08, 0x13, 0x03},
}

const (
	glyphWidth  = 5
	glyphHeight = 7
)

func lookupGlyph(ch rune) ([7]uint8, bool) {
	if g, ok := glyphs[ch]; ok {
		return g, true
	}
	// hex digits print the same in either case
	if ch >= 'a' && ch <= 'f' {
		g, ok := glyphs[unicode.ToUpper(ch)]
		return g, ok
	}
	return [7]uint8{}, false
}

func scaleFor(size int) int {
	return max(1, size/glyphHeight)
}

func (bf *BitmapFont) DrawString(img *image.RGBA, text string, cx, cy int, col color.Color, size int) {
	scale := scaleFor(size)
	totalW, totalH := bf.MeasureString(text, size)
	startX := cx - totalW/2
	startY := cy - totalH/2
	b := img.Bounds()

	curX := startX
	for _, ch := range text {
		glyph, ok := lookupGlyph(ch)
		if ok {
			for row := 0; row < glyphHeight; row++ {
				for bit := 0; bit < glyphWidth; bit++ {
					if glyph[row]&(1<<(glyphWidth-1-bit)) == 0 {
						continue
					}
					for dy := 0; dy < scale; dy++ {
						for dx := 0; dx < scale; dx++ {
							px := curX + bit*scale + dx
							py := startY + row*scale + dy
							if px >= 0 && px < b.Dx() && py >= 0 && py < b.Dy() {
								img.Set(px+b.Min.X, py+b.Min.Y, col)
							}
						}
					}
				}
			}
		}
		curX += (glyphWidth + 1) * scale
	}
}

func (bf *BitmapFont) MeasureString(text string, size int) (width, height int) {
	scale := scaleFor(size)
	n := len([]rune(text))
	if n == 0 {
		return 0, 0
	}
	w := n*(glyphWidth*scale) + (n-1)*scale
	h := glyphHeight * scale
	return w, h
}
