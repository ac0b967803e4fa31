package render

import (
	"fmt"

	"github.com/MeKo-Tech/patternpreview/internal/palette"
	"github.com/MeKo-Tech/patternpreview/internal/pattern"
	"github.com/MeKo-Tech/patternpreview/internal/tint"
)

// ErrInvalidConfiguration marks requests that cannot be rendered at all.
// It is the same sentinel as pattern.ErrInvalid so either can be matched.
var ErrInvalidConfiguration = pattern.ErrInvalid

// Mode selects the output layout.
type Mode string

const (
	// ModeSwatch draws one repeat stretched over the whole surface.
	ModeSwatch Mode = "swatch"
	// ModeRoom repeats the pattern (or lays out wall panels) at physical scale.
	ModeRoom Mode = "room"
	// ModePrint centers one repeat on a white sheet, keeping its aspect ratio.
	ModePrint Mode = "print"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeSwatch, ModeRoom, ModePrint:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown render mode %q (swatch, room, print)", ErrInvalidConfiguration, s)
	}
}

const (
	DefaultWallWidthInches = 120.0
	DefaultPrintMarginPx   = 48

	// fallbackPPI sizes the tile when no source image could be decoded.
	fallbackPPI = 72.0
)

// RoomOptions control the room mockup.
type RoomOptions struct {
	// WallWidthInches is the physical width the surface represents.
	WallWidthInches float64
	// Scale is the user scale factor applied to the physical repeat size.
	Scale float64
	// Grid shows Grid x Grid repeats where one would be (1..4).
	Grid int
	// Backdrop fills the wall around panels; nil means white.
	Backdrop *palette.RGB
}

// PrintOptions control the print sheet.
type PrintOptions struct {
	MarginPx int
}

// Request describes one render call.
type Request struct {
	Pattern *pattern.Pattern
	// Colors is used as-is when set; otherwise Tokens are resolved.
	Colors pattern.ColorAssignment
	Tokens []string

	Mode   Mode
	Width  int
	Height int

	Room  RoomOptions
	Print PrintOptions

	// WhiteThreshold applies to tinted-base patterns; 0 means the default.
	WhiteThreshold uint8
}

func (r *Request) withDefaults() Request {
	out := *r
	if out.Mode == "" {
		out.Mode = ModeSwatch
	}
	if out.Room.WallWidthInches <= 0 {
		out.Room.WallWidthInches = DefaultWallWidthInches
	}
	if out.Room.Scale <= 0 {
		out.Room.Scale = 1
	}
	if out.Room.Grid == 0 {
		out.Room.Grid = 1
	}
	if out.Print.MarginPx < 0 {
		out.Print.MarginPx = 0
	}
	if out.WhiteThreshold == 0 {
		out.WhiteThreshold = tint.DefaultWhiteThreshold
	}
	return out
}

func (r *Request) validate() error {
	if err := r.Pattern.Validate(); err != nil {
		return err
	}
	if _, err := ParseMode(string(r.Mode)); err != nil {
		return err
	}
	if r.Room.Grid < 1 || r.Room.Grid > 4 {
		return fmt.Errorf("%w: grid multiplier must be 1..4, got %d", ErrInvalidConfiguration, r.Room.Grid)
	}
	return nil
}
