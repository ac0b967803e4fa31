// Package pattern describes multi-layer printed patterns and the colors
// assigned to their layers.
package pattern

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/patternpreview/internal/palette"
)

// ErrInvalid marks a structurally invalid pattern or color assignment.
var ErrInvalid = errors.New("invalid pattern configuration")

// TilingMode selects how a pattern repeats.
type TilingMode string

const (
	Straight   TilingMode = "straight"
	HalfDrop   TilingMode = "half-drop"
	WallPanel  TilingMode = "wall-panel"
	TintedBase TilingMode = "tinted-base"
)

// Role tells the compositor how to treat a layer.
type Role string

const (
	Colorable Role = "colorable"
	Shadow    Role = "shadow"
)

// MaskMode selects how a colorable layer's separation becomes alpha.
type MaskMode string

const (
	// MaskNormalized stretches the layer's luminance range before deriving alpha.
	MaskNormalized MaskMode = "normalized"
	// MaskThreshold makes bright pixels opaque and everything else transparent.
	MaskThreshold MaskMode = "threshold"
	// MaskDetail treats every non-black, non-white pixel as solid ink.
	MaskDetail MaskMode = "detail"
)

// Size is a physical size in inches.
type Size struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Layer is one grayscale separation of a pattern.
type Layer struct {
	Label  string   `yaml:"label"`
	Source string   `yaml:"source"`
	Role   Role     `yaml:"role"`
	Mask   MaskMode `yaml:"mask"`
}

// PanelLayout configures the discrete wall-panel layout.
type PanelLayout struct {
	Count            uint32 `yaml:"count"`
	SpacingPx        uint32 `yaml:"spacing_px"`
	VerticalOffsetPx int32  `yaml:"vertical_offset_px"`
}

// Pattern is a printable repeat made of ordered layers.
type Pattern struct {
	Name       string       `yaml:"name"`
	SizeInches Size         `yaml:"size_inches"`
	Tiling     TilingMode   `yaml:"tiling"`
	Layers     []Layer      `yaml:"layers"`
	TintedBase string       `yaml:"tinted_base"`
	Panels     *PanelLayout `yaml:"panels"`
}

// ColorAssignment holds the ground color at index 0 followed by one color per
// colorable layer, in layer order. Shadow layers take no slot.
type ColorAssignment []palette.RGB

// Ground returns the background fill color.
func (a ColorAssignment) Ground() palette.RGB {
	if len(a) == 0 {
		return palette.White
	}
	return a[0]
}

// Resolve turns raw tokens into an assignment.
func Resolve(tokens []string, table palette.Lookuper) ColorAssignment {
	out := make(ColorAssignment, len(tokens))
	for i, tok := range tokens {
		out[i] = palette.Resolve(tok, table)
	}
	return out
}

// UsesLayers reports whether the pattern is composited from its layers.
func (p *Pattern) UsesLayers() bool {
	return p.Tiling != TintedBase
}

// ColorableCount returns the number of layers that take a color slot.
func (p *Pattern) ColorableCount() int {
	if !p.UsesLayers() {
		return 0
	}
	n := 0
	for _, l := range p.Layers {
		if l.Role == Colorable {
			n++
		}
	}
	return n
}

// ColorSlots returns, per layer, the assignment index of its color or -1 for
// layers that take none.
func (p *Pattern) ColorSlots() []int {
	slots := make([]int, len(p.Layers))
	next := 1
	for i, l := range p.Layers {
		if l.Role == Colorable {
			slots[i] = next
			next++
			continue
		}
		slots[i] = -1
	}
	return slots
}

// Validate checks the pattern's structural invariants.
func (p *Pattern) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: pattern is nil", ErrInvalid)
	}
	if p.SizeInches.Width <= 0 || p.SizeInches.Height <= 0 {
		return fmt.Errorf("%w: size must be positive, got %gx%g", ErrInvalid, p.SizeInches.Width, p.SizeInches.Height)
	}

	switch p.Tiling {
	case Straight, HalfDrop:
	case WallPanel:
		if p.Panels == nil {
			return fmt.Errorf("%w: wall-panel tiling requires a panel layout", ErrInvalid)
		}
		if p.Panels.Count == 0 {
			return fmt.Errorf("%w: panel count must be at least 1", ErrInvalid)
		}
	case TintedBase:
		if p.TintedBase == "" {
			return fmt.Errorf("%w: tinted-base tiling requires a base image", ErrInvalid)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown tiling mode %q", ErrInvalid, p.Tiling)
	}

	for i, l := range p.Layers {
		switch l.Role {
		case Colorable, Shadow:
		default:
			return fmt.Errorf("%w: layer %d (%s) has unknown role %q", ErrInvalid, i, l.Label, l.Role)
		}
		switch l.Mask {
		case "", MaskNormalized, MaskThreshold, MaskDetail:
		default:
			return fmt.Errorf("%w: layer %d (%s) has unknown mask mode %q", ErrInvalid, i, l.Label, l.Mask)
		}
	}
	return nil
}

// CheckAssignment verifies the assignment lines up with the colorable layers.
func (p *Pattern) CheckAssignment(a ColorAssignment) error {
	want := 1 + p.ColorableCount()
	if len(a) != want {
		return fmt.Errorf("%w: got %d colors, want %d (ground + %d colorable layers)",
			ErrInvalid, len(a), want, want-1)
	}
	return nil
}
