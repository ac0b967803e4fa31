// Package tiling repeats a composited pattern tile across a surface, either as
// a straight or half-drop repeat or as a row of discrete wall panels.
package tiling

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/MeKo-Tech/patternpreview/internal/pattern"
	"github.com/disintegration/gift"
	"golang.org/x/image/draw"
)

// ErrInvalidGrid is returned for grid multipliers outside 1..4.
var ErrInvalidGrid = errors.New("grid multiplier must be 1, 2, 3 or 4")

// TileSize returns the on-surface pixel size of one repeat. grid shrinks the
// tile so that grid x grid repeats fit where one did before.
func TileSize(size pattern.Size, pixelsPerInch, scale float64, grid int) (image.Point, error) {
	if grid < 1 || grid > 4 {
		return image.Point{}, fmt.Errorf("%w: got %d", ErrInvalidGrid, grid)
	}
	if pixelsPerInch <= 0 || scale <= 0 {
		return image.Point{}, fmt.Errorf("pixels per inch and scale must be positive, got %g and %g", pixelsPerInch, scale)
	}

	factor := pixelsPerInch * scale / float64(grid)
	return image.Point{
		X: max(1, int(math.Round(size.Width*factor))),
		Y: max(1, int(math.Round(size.Height*factor))),
	}, nil
}

// Origins returns the top-left corner of every tile needed to cover a surface
// of the given size. Columns start one tile left of the surface and run until
// past its right edge so partial tiles get clipped by the surface. With
// halfDrop, odd columns are pushed down by half a tile height.
func Origins(tile, surface image.Point, halfDrop bool) []image.Point {
	if tile.X <= 0 || tile.Y <= 0 {
		return nil
	}

	var origins []image.Point
	for x := -tile.X; x < surface.X+tile.X; x += tile.X {
		offset := 0
		if halfDrop && mod(floorDiv(x, tile.X), 2) == 1 {
			offset = tile.Y / 2
		}

		for y := -tile.Y; y < surface.Y+tile.Y; y += tile.Y {
			top := y + offset
			if top+tile.Y <= 0 || top >= surface.Y {
				continue
			}
			origins = append(origins, image.Pt(x, top))
		}
	}
	return origins
}

// Tile repeats tile across dst at its current size.
func Tile(tile image.Image, dst draw.Image, halfDrop bool) {
	tb := tile.Bounds()
	db := dst.Bounds()

	for _, o := range Origins(tb.Size(), db.Size(), halfDrop) {
		r := image.Rectangle{Min: o, Max: o.Add(tb.Size())}.Add(db.Min)
		draw.Draw(dst, r, tile, tb.Min, draw.Over)
	}
}

// Scale resizes img to size with linear resampling.
func Scale(img image.Image, size image.Point) *image.NRGBA {
	if img.Bounds().Size() == size {
		if n, ok := img.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
			return n
		}
	}
	g := gift.New(gift.Resize(size.X, size.Y, gift.LinearResampling))
	dst := image.NewNRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mod(a, b int) int {
	r := a % b
	if r < 0 {
		r += b
	}
	return r
}
