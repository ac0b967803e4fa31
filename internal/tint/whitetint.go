package tint

import (
	"image"

	"github.com/MeKo-Tech/patternpreview/internal/palette"
)

// DefaultWhiteThreshold is the per-channel cutoff above which a pixel counts
// as white paper in a pre-tinted base image.
const DefaultWhiteThreshold uint8 = 230

// RecolorWhite returns a copy of base with its near-white pixels replaced by
// target.
func RecolorWhite(base image.Image, target palette.RGB, threshold uint8) *image.NRGBA {
	dst := Clone(base)
	RecolorWhiteInPlace(dst, target, threshold)
	return dst
}

// RecolorWhiteInPlace swaps the RGB of every visible pixel whose three
// channels all exceed threshold for target. Alpha and all other pixels are
// left untouched.
func RecolorWhiteInPlace(img *image.NRGBA, target palette.RGB, threshold uint8) {
	bounds := img.Bounds()

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			p := img.NRGBAAt(x, y)
			if p.A == 0 {
				continue
			}
			if p.R > threshold && p.G > threshold && p.B > threshold {
				p.R, p.G, p.B = target.R, target.G, target.B
				img.SetNRGBA(x, y, p)
			}
		}
	}
}
