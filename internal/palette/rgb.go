// Package palette resolves free-form color tokens (hex values or brand color
// names) into canonical RGB values.
package palette

import (
	"fmt"
	"image/color"
	"regexp"

	"github.com/lucasb-eyer/go-colorful"
)

// RGB is a resolved, opaque color.
type RGB struct {
	R, G, B uint8
}

// White is returned when nothing else resolves.
var White = RGB{R: 255, G: 255, B: 255}

var hexPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// IsHex reports whether s is a strict #RRGGBB token.
func IsHex(s string) bool {
	return hexPattern.MatchString(s)
}

// ParseHex parses a strict #RRGGBB token.
func ParseHex(s string) (RGB, error) {
	if !IsHex(s) {
		return RGB{}, fmt.Errorf("invalid hex color %q", s)
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return RGB{R: r, G: g, B: b}, nil
}

// Hex returns the color as lowercase #rrggbb.
func (c RGB) Hex() string {
	return c.colorful().Hex()
}

// String implements fmt.Stringer.
func (c RGB) String() string {
	return c.Hex()
}

// NRGBA returns the color as an opaque color.NRGBA.
func (c RGB) NRGBA() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

// Luminance returns the Rec. 601 luma of the color in [0,255].
func (c RGB) Luminance() float64 {
	return 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
}

func (c RGB) colorful() colorful.Color {
	return colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}
}
