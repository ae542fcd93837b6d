package color

import (
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Hex is a color in canonical "#RRGGBB" form. Values that are not valid
// 6-digit hex colors may still travel through a Hex; every consumer treats
// them as opaque strings that cannot be compared.
type Hex string

// White is the default fill for every cell.
const White Hex = "#FFFFFF"

// RGB holds the three 8-bit channels of a decoded Hex.
type RGB struct {
	R, G, B uint8
}

// Decode parses "#RRGGBB" or "RRGGBB" (case-insensitive).
// The boolean is false when s is not a 6-digit hex color.
func Decode(s Hex) (RGB, bool) {
	str := strings.TrimPrefix(string(s), "#")
	// colorful.Hex also takes the 3-digit shorthand and scans leniently.
	if len(str) != 6 || strings.Trim(str, hexDigits) != "" {
		return RGB{}, false
	}
	c, err := colorful.Hex("#" + str)
	if err != nil {
		return RGB{}, false
	}
	r, g, b := c.RGB255()
	return RGB{R: r, G: g, B: b}, true
}

const hexDigits = "0123456789abcdefABCDEF"

// Distance is the squared Euclidean distance between two colors in RGB space.
// It is only meaningful for ordering.
func Distance(a, b RGB) int {
	dr := int(a.R) - int(b.R)
	dg := int(a.G) - int(b.G)
	db := int(a.B) - int(b.B)
	return dr*dr + dg*dg + db*db
}

// Valid reports whether c decodes.
func (c Hex) Valid() bool {
	_, ok := Decode(c)
	return ok
}

// Normalize returns the canonical uppercase "#RRGGBB" form of c.
// Undecodable values are returned unchanged.
func Normalize(c Hex) Hex {
	rgb, ok := Decode(c)
	if !ok {
		return c
	}
	return rgb.Hex()
}

// Equal compares two colors in canonical form.
func Equal(a, b Hex) bool {
	return Normalize(a) == Normalize(b)
}

// Hex encodes the channels as canonical "#RRGGBB".
func (c RGB) Hex() Hex {
	col := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
	return Hex(strings.ToUpper(col.Hex()))
}

// FromRGB builds a canonical Hex from three channels.
func FromRGB(r, g, b uint8) Hex {
	return RGB{R: r, G: g, B: b}.Hex()
}

// FromStdColor converts a standard library color to a Hex, dropping alpha.
// Callers composite onto an opaque background first when alpha matters.
func FromStdColor(c color.Color) Hex {
	r, g, b, _ := c.RGBA()
	return FromRGB(uint8(r>>8), uint8(g>>8), uint8(b>>8))
}

// RGBA converts c to an opaque standard library color.
// Undecodable colors render as white.
func (c Hex) RGBA() color.RGBA {
	rgb, ok := Decode(c)
	if !ok {
		return color.RGBA{255, 255, 255, 255}
	}
	return color.RGBA{R: rgb.R, G: rgb.G, B: rgb.B, A: 255}
}

// IsLight returns true if the color is perceptually light (luminance > 0.5).
func (c Hex) IsLight() bool {
	rgb, ok := Decode(c)
	if !ok {
		return true
	}
	rLin := srgbToLinear(float64(rgb.R) / 255.0)
	gLin := srgbToLinear(float64(rgb.G) / 255.0)
	bLin := srgbToLinear(float64(rgb.B) / 255.0)
	luminance := 0.2126*rLin + 0.7152*gLin + 0.0722*bLin
	return luminance > 0.5
}

func srgbToLinear(v float64) float64 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}
