// Package tint turns grayscale separations into colored, alpha-masked layers.
package tint

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/patternpreview/internal/palette"
	"github.com/MeKo-Tech/patternpreview/internal/pattern"
	"golang.org/x/image/draw"
)

// ErrImageLoadFailed is returned when a layer has no decodable source image.
var ErrImageLoadFailed = errors.New("layer image failed to load")

const (
	// ThresholdBrightness is the average-brightness cutoff of threshold mode.
	ThresholdBrightness = 200

	// detail mode cutoffs
	detailWhite = 240
	detailBlack = 10
)

// Layer tints src according to the layer role and mask mode. color is ignored
// for shadow layers.
func Layer(src image.Image, role pattern.Role, c palette.RGB, mode pattern.MaskMode) (*image.NRGBA, error) {
	if src == nil {
		return nil, ErrImageLoadFailed
	}

	if role == pattern.Shadow {
		return Shadow(src), nil
	}

	switch mode {
	case pattern.MaskNormalized, "":
		return Normalized(src, c), nil
	case pattern.MaskThreshold:
		return Threshold(src, c), nil
	case pattern.MaskDetail:
		return Detail(src, c), nil
	default:
		return nil, fmt.Errorf("unknown mask mode %q", mode)
	}
}

// Shadow converts src into black ink whose alpha grows as the source darkens.
// The result is meant to be multiplied onto the ground.
func Shadow(src image.Image) *image.NRGBA {
	in := ToNRGBA(src)
	bounds := in.Bounds()
	dst := image.NewNRGBA(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			l := luminance(in.NRGBAAt(x, y))
			a := math.Round((1 - l/255.0) * 255.0)
			dst.SetNRGBA(x, y, color.NRGBA{A: clampAlpha(a)})
		}
	}

	return dst
}

// Normalized stretches the luminance range of src to [0,1] and derives alpha
// from it, so the darkest pixel is fully opaque. Partial tones above half
// strength are pushed to full opacity so light separations don't wash out.
func Normalized(src image.Image, c palette.RGB) *image.NRGBA {
	in := ToNRGBA(src)
	bounds := in.Bounds()
	dst := image.NewNRGBA(bounds)
	if bounds.Empty() {
		return dst
	}

	minL, maxL := 255.0, 0.0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			l := luminance(in.NRGBAAt(x, y))
			minL = math.Min(minL, l)
			maxL = math.Max(maxL, l)
		}
	}
	span := math.Max(maxL-minL, 1)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			n := (luminance(in.NRGBAAt(x, y)) - minL) / span
			n = math.Max(0, math.Min(1, n))

			a := 1 - n
			if a > 0.5 {
				a = 1
			} else {
				a *= 2
			}

			dst.SetNRGBA(x, y, color.NRGBA{R: c.R, G: c.G, B: c.B, A: clampAlpha(math.Round(a * 255))})
		}
	}

	return dst
}

// Threshold makes every pixel whose average brightness exceeds
// ThresholdBrightness solid c, and everything else transparent.
func Threshold(src image.Image, c palette.RGB) *image.NRGBA {
	in := ToNRGBA(src)
	bounds := in.Bounds()
	dst := image.NewNRGBA(bounds)
	ink := c.NRGBA()

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			p := in.NRGBAAt(x, y)
			if p.A == 0 {
				continue
			}
			// compare the channel sum so fractional averages are not truncated
			if int(p.R)+int(p.G)+int(p.B) > 3*ThresholdBrightness {
				dst.SetNRGBA(x, y, ink)
			}
		}
	}

	return dst
}

// Detail is the wall-panel variant: any visible pixel that is neither black
// nor near-white is design detail and becomes solid c.
func Detail(src image.Image, c palette.RGB) *image.NRGBA {
	in := ToNRGBA(src)
	bounds := in.Bounds()
	dst := image.NewNRGBA(bounds)
	ink := c.NRGBA()

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			p := in.NRGBAAt(x, y)
			if p.A == 0 {
				continue
			}
			if p.R > detailWhite && p.G > detailWhite && p.B > detailWhite {
				continue
			}
			if p.R <= detailBlack && p.G <= detailBlack && p.B <= detailBlack {
				continue
			}
			dst.SetNRGBA(x, y, ink)
		}
	}

	return dst
}

// ToNRGBA returns img as *image.NRGBA, converting when needed. The bounds are
// preserved.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	dst := image.NewNRGBA(img.Bounds())
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	return dst
}

// Clone returns an independent *image.NRGBA copy of img. NRGBA sources are
// copied byte for byte.
func Clone(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	dst := image.NewNRGBA(bounds)
	src, ok := img.(*image.NRGBA)
	if !ok {
		draw.Draw(dst, bounds, img, bounds.Min, draw.Src)
		return dst
	}
	rowLen := bounds.Dx() * 4
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		so := src.PixOffset(bounds.Min.X, y)
		do := dst.PixOffset(bounds.Min.X, y)
		copy(dst.Pix[do:do+rowLen], src.Pix[so:so+rowLen])
	}
	return dst
}

// luminance treats fully transparent pixels as white paper.
func luminance(p color.NRGBA) float64 {
	if p.A == 0 {
		return 255
	}
	return 0.299*float64(p.R) + 0.587*float64(p.G) + 0.114*float64(p.B)
}

func clampAlpha(a float64) uint8 {
	if a < 0 {
		return 0
	}
	if a > 255 {
		return 255
	}
	return uint8(a)
}
