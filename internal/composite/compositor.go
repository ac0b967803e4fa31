// Package composite stacks tinted layers onto a ground color.
package composite

import (
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/patternpreview/internal/palette"
	"github.com/MeKo-Tech/patternpreview/internal/pattern"
)

// ShadowOpacity is the global opacity shadow layers are multiplied with.
const ShadowOpacity = 0.3

// Layer is a tinted layer ready for compositing. A nil Image marks a layer
// that failed to load; it is skipped.
type Layer struct {
	Image image.Image
	Role  pattern.Role
	Label string
}

// Compose fills dst with ground, multiplies every shadow layer on top and then
// draws every colorable layer with source-over. Within each role the input
// order is kept. Shadows always sit beneath the colored ink.
func Compose(ground palette.RGB, layers []Layer, dst *image.NRGBA) {
	Fill(dst, dst.Bounds(), ground)

	for _, l := range layers {
		if l.Image == nil || l.Role != pattern.Shadow {
			continue
		}
		multiplyOver(dst, l.Image, ShadowOpacity)
	}

	for _, l := range layers {
		if l.Image == nil || l.Role == pattern.Shadow {
			continue
		}
		alphaOver(dst, l.Image)
	}
}

// Fill paints rect of dst with an opaque color.
func Fill(dst *image.NRGBA, rect image.Rectangle, c palette.RGB) {
	rect = rect.Intersect(dst.Bounds())
	fill := c.NRGBA()
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dst.SetNRGBA(x, y, fill)
		}
	}
}

func alphaOver(dst *image.NRGBA, src image.Image) {
	bounds := dst.Bounds().Intersect(src.Bounds())

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			s := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			if s.A == 0 {
				continue
			}

			d := dst.NRGBAAt(x, y)

			sa := float64(s.A) / 255.0
			da := float64(d.A) / 255.0

			outA := sa + da*(1.0-sa)
			if outA == 0 {
				dst.SetNRGBA(x, y, color.NRGBA{})
				continue
			}

			blend := func(srcVal, dstVal uint8) uint8 {
				srcPremult := float64(srcVal) * sa
				dstPremult := float64(dstVal) * da
				outPremult := srcPremult + dstPremult*(1.0-sa)
				return uint8(math.Round(outPremult / outA))
			}

			dst.SetNRGBA(x, y, color.NRGBA{
				R: blend(s.R, d.R),
				G: blend(s.G, d.G),
				B: blend(s.B, d.B),
				A: uint8(math.Round(outA * 255.0)),
			})
		}
	}
}

// multiplyOver blends src onto dst with the multiply mode, scaling the source
// alpha by opacity. Destination alpha is kept.
func multiplyOver(dst *image.NRGBA, src image.Image, opacity float64) {
	bounds := dst.Bounds().Intersect(src.Bounds())

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			s := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			if s.A == 0 {
				continue
			}

			d := dst.NRGBAAt(x, y)
			sa := float64(s.A) / 255.0 * opacity

			blend := func(srcVal, dstVal uint8) uint8 {
				mult := float64(srcVal) * float64(dstVal) / 255.0
				return uint8(math.Round(float64(dstVal)*(1.0-sa) + mult*sa))
			}

			dst.SetNRGBA(x, y, color.NRGBA{
				R: blend(s.R, d.R),
				G: blend(s.G, d.G),
				B: blend(s.B, d.B),
				A: d.A,
			})
		}
	}
}
