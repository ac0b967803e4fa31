package tiling

import (
	"image"
	"math"

	"github.com/MeKo-Tech/patternpreview/internal/composite"
	"github.com/MeKo-Tech/patternpreview/internal/palette"
	"github.com/MeKo-Tech/patternpreview/internal/pattern"
	"golang.org/x/image/draw"
)

// PanelSize returns the pixel size of one wall panel. If the row of panels
// would be wider than surfaceWidth, the panel is shrunk proportionally so the
// whole row fits.
func PanelSize(size pattern.Size, pixelsPerInch, scale float64, surfaceWidth int, layout pattern.PanelLayout) image.Point {
	w := size.Width * pixelsPerInch * scale
	h := size.Height * pixelsPerInch * scale

	count := float64(max(layout.Count, 1))
	gaps := (count - 1) * float64(layout.SpacingPx)
	if total := count*w + gaps; total > float64(surfaceWidth) && w > 0 {
		fit := (float64(surfaceWidth) - gaps) / count
		if fit < 1 {
			fit = 1
		}
		h *= fit / w
		w = fit
	}

	return image.Point{
		X: max(1, int(math.Round(w))),
		Y: max(1, int(math.Round(h))),
	}
}

// PanelRects returns where each panel goes: a horizontally centered row,
// vertically centered and then raised by the layout's vertical offset.
func PanelRects(surface, panel image.Point, layout pattern.PanelLayout) []image.Rectangle {
	count := int(layout.Count)
	if count <= 0 {
		return nil
	}
	spacing := int(layout.SpacingPx)

	total := count*panel.X + (count-1)*spacing
	x0 := (surface.X - total) / 2
	y0 := (surface.Y-panel.Y)/2 - int(layout.VerticalOffsetPx)

	rects := make([]image.Rectangle, 0, count)
	for i := 0; i < count; i++ {
		x := x0 + i*(panel.X+spacing)
		rects = append(rects, image.Rect(x, y0, x+panel.X, y0+panel.Y))
	}
	return rects
}

// LayoutPanels draws each panel exactly once: a ground rectangle followed by
// the tile scaled to the panel size. The area between panels is left alone.
func LayoutPanels(tile image.Image, dst *image.NRGBA, ground palette.RGB, panel image.Point, layout pattern.PanelLayout) {
	scaled := Scale(tile, panel)
	origin := dst.Bounds().Min

	for _, r := range PanelRects(dst.Bounds().Size(), panel, layout) {
		r = r.Add(origin)
		composite.Fill(dst, r, ground)
		draw.Draw(dst, r, scaled, scaled.Bounds().Min, draw.Over)
	}
}
