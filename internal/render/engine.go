// Package render turns a pattern and a color assignment into a finished
// raster: a flat swatch, a room mockup or a print sheet.
package render

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"

	"github.com/MeKo-Tech/patternpreview/internal/composite"
	"github.com/MeKo-Tech/patternpreview/internal/imageio"
	"github.com/MeKo-Tech/patternpreview/internal/palette"
	"github.com/MeKo-Tech/patternpreview/internal/pattern"
	"github.com/MeKo-Tech/patternpreview/internal/tiling"
	"github.com/MeKo-Tech/patternpreview/internal/tint"
	"golang.org/x/image/draw"
)

// Engine renders patterns. It holds only read-only collaborators and may be
// used from several goroutines at once, as long as each call gets its own
// destination surface.
type Engine struct {
	loader imageio.Loader
	table  palette.Lookuper
	logger *slog.Logger
}

// New creates an engine. table may be nil when only hex tokens are used.
func New(loader imageio.Loader, table palette.Lookuper, logger *slog.Logger) *Engine {
	return &Engine{
		loader: loader,
		table:  table,
		logger: logger,
	}
}

// Render allocates a Width x Height surface and renders into it.
func (e *Engine) Render(ctx context.Context, req Request) (*image.NRGBA, error) {
	if req.Width <= 0 || req.Height <= 0 {
		return nil, fmt.Errorf("%w: surface size must be positive, got %dx%d", ErrInvalidConfiguration, req.Width, req.Height)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, req.Width, req.Height))
	if err := e.RenderInto(ctx, req, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// RenderInto renders into dst, ignoring req.Width and req.Height. Invalid
// requests return an error wrapping ErrInvalidConfiguration before anything
// is written to dst.
func (e *Engine) RenderInto(ctx context.Context, req Request, dst *image.NRGBA) error {
	req = req.withDefaults()
	if err := req.validate(); err != nil {
		return err
	}
	if dst == nil || dst.Bounds().Empty() {
		return fmt.Errorf("%w: destination surface is empty", ErrInvalidConfiguration)
	}

	colors := req.Colors
	if len(colors) == 0 {
		colors = e.resolveTokens(req.Tokens)
	}
	if err := req.Pattern.CheckAssignment(colors); err != nil {
		return err
	}

	tile, err := e.BuildTile(ctx, req.Pattern, colors, req.WhiteThreshold)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	switch req.Mode {
	case ModeSwatch:
		drawSwatch(tile, dst)
	case ModePrint:
		drawPrint(tile, dst, req.Print.MarginPx)
	case ModeRoom:
		if err := e.drawRoom(tile, dst, req.Pattern, colors.Ground(), req.Room); err != nil {
			return err
		}
	}

	e.log().Debug("Rendered pattern",
		"pattern", req.Pattern.Name,
		"mode", req.Mode,
		"size", dst.Bounds().Size().String(),
	)
	return nil
}

// BuildTile composites one repeat of the pattern at source resolution. Layers
// that fail to load are logged and left out.
func (e *Engine) BuildTile(ctx context.Context, p *pattern.Pattern, colors pattern.ColorAssignment, whiteThreshold uint8) (*image.NRGBA, error) {
	if !p.UsesLayers() {
		return e.buildTintedBase(ctx, p, colors.Ground(), whiteThreshold)
	}

	layers := e.loadLayers(ctx, p, colors)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var size image.Point
	for _, l := range layers {
		if l.Image != nil {
			size = l.Image.Bounds().Size()
			break
		}
	}
	if size == (image.Point{}) {
		size = fallbackTileSize(p)
		e.log().Warn("No layer could be loaded; rendering ground only", "pattern", p.Name)
	}

	for i := range layers {
		if layers[i].Image != nil && layers[i].Image.Bounds().Size() != size {
			layers[i].Image = tiling.Scale(layers[i].Image, size)
		}
	}

	tile := image.NewNRGBA(image.Rectangle{Max: size})
	composite.Compose(colors.Ground(), layers, tile)
	return tile, nil
}

// loadLayers decodes and tints every layer concurrently. The result keeps
// layer order; failed layers have a nil Image.
func (e *Engine) loadLayers(ctx context.Context, p *pattern.Pattern, colors pattern.ColorAssignment) []composite.Layer {
	slots := p.ColorSlots()
	out := make([]composite.Layer, len(p.Layers))

	var wg sync.WaitGroup
	for i, layer := range p.Layers {
		out[i] = composite.Layer{Role: layer.Role, Label: layer.Label}

		var c palette.RGB
		if slots[i] >= 0 {
			c = colors[slots[i]]
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			src, err := e.loader.Load(ctx, layer.Source)
			if err != nil {
				e.log().Warn("Skipping layer that failed to load",
					"pattern", p.Name, "layer", layer.Label, "source", layer.Source, "error", err)
				return
			}

			tinted, err := tint.Layer(src, layer.Role, c, layer.Mask)
			if err != nil {
				e.log().Warn("Skipping layer that failed to tint",
					"pattern", p.Name, "layer", layer.Label, "error", err)
				return
			}
			out[i].Image = atOrigin(tinted)
		}()
	}
	wg.Wait()

	return out
}

func (e *Engine) buildTintedBase(ctx context.Context, p *pattern.Pattern, ground palette.RGB, threshold uint8) (*image.NRGBA, error) {
	if threshold == 0 {
		threshold = tint.DefaultWhiteThreshold
	}
	base, err := e.loader.Load(ctx, p.TintedBase)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.log().Warn("Tinted base failed to load; rendering ground only",
			"pattern", p.Name, "source", p.TintedBase, "error", err)
		tile := image.NewNRGBA(image.Rectangle{Max: fallbackTileSize(p)})
		composite.Fill(tile, tile.Bounds(), ground)
		return tile, nil
	}

	return atOrigin(tint.RecolorWhite(base, ground, threshold)), nil
}

func (e *Engine) drawRoom(tile *image.NRGBA, dst *image.NRGBA, p *pattern.Pattern, ground palette.RGB, opts RoomOptions) error {
	ppi := float64(dst.Bounds().Dx()) / opts.WallWidthInches

	if p.Tiling == pattern.WallPanel {
		backdrop := palette.White
		if opts.Backdrop != nil {
			backdrop = *opts.Backdrop
		}
		composite.Fill(dst, dst.Bounds(), backdrop)

		panel := tiling.PanelSize(p.SizeInches, ppi, opts.Scale, dst.Bounds().Dx(), *p.Panels)
		tiling.LayoutPanels(tile, dst, ground, panel, *p.Panels)
		return nil
	}

	size, err := tiling.TileSize(p.SizeInches, ppi, opts.Scale, opts.Grid)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	// transparent tile pixels show the ground, not what dst held before
	composite.Fill(dst, dst.Bounds(), ground)
	tiling.Tile(tiling.Scale(tile, size), dst, p.Tiling == pattern.HalfDrop)
	return nil
}

func (e *Engine) resolveTokens(tokens []string) pattern.ColorAssignment {
	out := make(pattern.ColorAssignment, len(tokens))
	for i, tok := range tokens {
		c, ok := palette.Match(tok, e.table)
		if !ok {
			e.log().Warn("Color not found; using fallback", "token", tok, "color", c.Hex())
		}
		out[i] = c
	}
	return out
}

func (e *Engine) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}

// drawSwatch stretches the tile over the whole surface.
func drawSwatch(tile image.Image, dst *image.NRGBA) {
	draw.CatmullRom.Scale(dst, dst.Bounds(), tile, tile.Bounds(), draw.Src, nil)
}

// drawPrint centers the tile on a white sheet inside the margin, keeping its
// aspect ratio.
func drawPrint(tile image.Image, dst *image.NRGBA, margin int) {
	composite.Fill(dst, dst.Bounds(), palette.White)

	area := dst.Bounds().Inset(margin)
	if area.Empty() {
		area = dst.Bounds()
	}
	r := fitRect(tile.Bounds().Size(), area)
	draw.CatmullRom.Scale(dst, r, tile, tile.Bounds(), draw.Src, nil)
}

// fitRect returns the largest rectangle with src's aspect ratio that fits in
// area, centered.
func fitRect(src image.Point, area image.Rectangle) image.Rectangle {
	if src.X <= 0 || src.Y <= 0 {
		return area
	}
	scale := math.Min(float64(area.Dx())/float64(src.X), float64(area.Dy())/float64(src.Y))
	w := max(1, int(math.Round(float64(src.X)*scale)))
	h := max(1, int(math.Round(float64(src.Y)*scale)))

	x := area.Min.X + (area.Dx()-w)/2
	y := area.Min.Y + (area.Dy()-h)/2
	return image.Rect(x, y, x+w, y+h)
}

func fallbackTileSize(p *pattern.Pattern) image.Point {
	return image.Point{
		X: max(1, int(math.Round(p.SizeInches.Width*fallbackPPI))),
		Y: max(1, int(math.Round(p.SizeInches.Height*fallbackPPI))),
	}
}

// atOrigin moves img's bounds to start at (0,0) without copying pixels.
func atOrigin(img *image.NRGBA) *image.NRGBA {
	if img.Rect.Min == (image.Point{}) {
		return img
	}
	img.Rect = img.Rect.Sub(img.Rect.Min)
	return img
}
