package render

import (
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/MeKo-Tech/patternpreview/internal/imageio"
	"github.com/MeKo-Tech/patternpreview/internal/palette"
	"github.com/MeKo-Tech/patternpreview/internal/pattern"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	cream = palette.RGB{R: 245, G: 240, B: 225}
	navy  = palette.RGB{R: 20, G: 30, B: 80}
	sage  = palette.RGB{R: 150, G: 170, B: 140}
)

// separation returns a 4x4 white separation with black ink inside rect.
func separation(ink image.Rectangle) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for y := ink.Min.Y; y < ink.Max.Y; y++ {
		for x := ink.Min.X; x < ink.Max.X; x++ {
			img.SetGray(x, y, color.Gray{Y: 0})
		}
	}
	return img
}

func twoLayerPattern(tiling pattern.TilingMode) *pattern.Pattern {
	return &pattern.Pattern{
		Name:       "test",
		SizeInches: pattern.Size{Width: 1, Height: 1},
		Tiling:     tiling,
		Layers: []pattern.Layer{
			{Label: "left", Source: "left.png", Role: pattern.Colorable},
			{Label: "top", Source: "top.png", Role: pattern.Colorable},
		},
	}
}

func testLoader() imageio.MapLoader {
	return imageio.MapLoader{
		"left.png": separation(image.Rect(0, 0, 2, 4)),
		"top.png":  separation(image.Rect(0, 0, 4, 1)),
	}
}

// slowLoader delays the first layer so it finishes decoding last.
type slowLoader struct {
	imageio.MapLoader
	slow string
}

func (s slowLoader) Load(ctx context.Context, path string) (image.Image, error) {
	if path == s.slow {
		time.Sleep(20 * time.Millisecond)
	}
	return s.MapLoader.Load(ctx, path)
}

func TestMismatchedAssignmentWritesNothing(t *testing.T) {
	engine := New(testLoader(), nil, nil)

	dst := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := range dst.Pix {
		dst.Pix[i] = 42
	}
	before := append([]byte(nil), dst.Pix...)

	err := engine.RenderInto(context.Background(), Request{
		Pattern: twoLayerPattern(pattern.Straight),
		Colors:  pattern.ColorAssignment{cream, navy},
		Mode:    ModeSwatch,
	}, dst)

	require.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Equal(t, before, dst.Pix)
}

func TestInvalidRequests(t *testing.T) {
	engine := New(testLoader(), nil, nil)
	colors := pattern.ColorAssignment{cream, navy, sage}

	wall := twoLayerPattern(pattern.WallPanel)

	tests := []struct {
		name string
		req  Request
	}{
		{"wall panel without layout", Request{Pattern: wall, Colors: colors, Mode: ModeRoom, Width: 8, Height: 8}},
		{"unknown mode", Request{Pattern: twoLayerPattern(pattern.Straight), Colors: colors, Mode: "poster", Width: 8, Height: 8}},
		{"bad grid", Request{Pattern: twoLayerPattern(pattern.Straight), Colors: colors, Mode: ModeRoom, Width: 8, Height: 8, Room: RoomOptions{Grid: 7}}},
		{"empty surface", Request{Pattern: twoLayerPattern(pattern.Straight), Colors: colors, Mode: ModeRoom}},
		{"no colors", Request{Pattern: twoLayerPattern(pattern.Straight), Mode: ModeSwatch, Width: 8, Height: 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Render(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestBuildTileSkipsFailedLayer(t *testing.T) {
	loader := imageio.MapLoader{"top.png": separation(image.Rect(0, 0, 4, 1))}
	engine := New(loader, nil, nil)

	tile, err := engine.BuildTile(context.Background(), twoLayerPattern(pattern.Straight),
		pattern.ColorAssignment{cream, navy, sage}, 0)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 4, 4), tile.Bounds())
	assert.Equal(t, sage.NRGBA(), tile.NRGBAAt(3, 0), "surviving layer drawn")
	assert.Equal(t, cream.NRGBA(), tile.NRGBAAt(0, 3), "ground where the missing layer would be")
}

func TestBuildTileAllLayersFailed(t *testing.T) {
	engine := New(imageio.MapLoader{}, nil, nil)

	tile, err := engine.BuildTile(context.Background(), twoLayerPattern(pattern.Straight),
		pattern.ColorAssignment{cream, navy, sage}, 0)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 72, 72), tile.Bounds())
	assert.Equal(t, cream.NRGBA(), tile.NRGBAAt(10, 10))
}

func TestBuildTileKeepsLayerOrder(t *testing.T) {
	engine := New(slowLoader{MapLoader: testLoader(), slow: "left.png"}, nil, nil)

	tile, err := engine.BuildTile(context.Background(), twoLayerPattern(pattern.Straight),
		pattern.ColorAssignment{cream, navy, sage}, 0)
	require.NoError(t, err)

	assert.Equal(t, sage.NRGBA(), tile.NRGBAAt(0, 0), "second layer sits on top even though the first decoded last")
	assert.Equal(t, navy.NRGBA(), tile.NRGBAAt(0, 2))
	assert.Equal(t, cream.NRGBA(), tile.NRGBAAt(3, 3))
}

func TestBuildTileShadowTakesNoColor(t *testing.T) {
	p := &pattern.Pattern{
		SizeInches: pattern.Size{Width: 1, Height: 1},
		Tiling:     pattern.Straight,
		Layers: []pattern.Layer{
			{Label: "shade", Source: "top.png", Role: pattern.Shadow},
			{Label: "ink", Source: "left.png", Role: pattern.Colorable},
		},
	}
	engine := New(testLoader(), nil, nil)

	tile, err := engine.BuildTile(context.Background(), p, pattern.ColorAssignment{palette.White, navy}, 0)
	require.NoError(t, err)

	assert.Equal(t, navy.NRGBA(), tile.NRGBAAt(0, 0), "ink above shadow")
	assert.Equal(t, color.NRGBA{R: 179, G: 179, B: 179, A: 255}, tile.NRGBAAt(3, 0), "shadow multiplied at 30%")
	assert.Equal(t, palette.White.NRGBA(), tile.NRGBAAt(3, 3))
}

func TestBuildTileTintedBase(t *testing.T) {
	base := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	base.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	base.SetNRGBA(1, 0, color.NRGBA{R: 90, G: 40, B: 20, A: 255})

	p := &pattern.Pattern{
		SizeInches: pattern.Size{Width: 1, Height: 1},
		Tiling:     pattern.TintedBase,
		TintedBase: "base.png",
		Layers:     []pattern.Layer{{Source: "ignored.png", Role: pattern.Colorable}},
	}
	engine := New(imageio.MapLoader{"base.png": base}, nil, nil)

	tile, err := engine.BuildTile(context.Background(), p, pattern.ColorAssignment{sage}, 0)
	require.NoError(t, err)
	assert.Equal(t, sage.NRGBA(), tile.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 90, G: 40, B: 20, A: 255}, tile.NRGBAAt(1, 0))
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, base.NRGBAAt(0, 0), "source image is not mutated")
}

func TestRenderRoomHalfDrop(t *testing.T) {
	table := palette.Table{"navy": navy, "sage": sage}
	engine := New(testLoader(), table, nil)

	// 40px wall over 10 inches -> 4 ppi -> 4x4 tiles, same as the source.
	out, err := engine.Render(context.Background(), Request{
		Pattern: twoLayerPattern(pattern.HalfDrop),
		Tokens:  []string{"#F5F0E1", "AB12 Navy", "sage"},
		Mode:    ModeRoom,
		Width:   40,
		Height:  16,
		Room:    RoomOptions{WallWidthInches: 10},
	})
	require.NoError(t, err)

	for y := 0; y < 16; y++ {
		assert.Equal(t, tileRow(y), out.NRGBAAt(0, y), "even column row %d", y)
		assert.Equal(t, tileRow(y+2), out.NRGBAAt(4, y), "odd column row %d", y)
		assert.Equal(t, out.NRGBAAt(0, y), out.NRGBAAt(8, y), "columns repeat every two tiles")
	}
}

func TestRenderRoomClearsSurface(t *testing.T) {
	base := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	base.SetNRGBA(1, 1, color.NRGBA{R: 90, G: 40, B: 20, A: 255})

	p := &pattern.Pattern{
		Name:       "base",
		SizeInches: pattern.Size{Width: 4, Height: 4},
		Tiling:     pattern.TintedBase,
		TintedBase: "base.png",
	}
	engine := New(imageio.MapLoader{"base.png": base}, nil, nil)

	dst := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := range dst.Pix {
		dst.Pix[i] = 77
	}

	// 8px over 8 inches -> 1 ppi -> 4x4 tiles.
	err := engine.RenderInto(context.Background(), Request{
		Pattern: p,
		Colors:  pattern.ColorAssignment{sage},
		Mode:    ModeRoom,
		Room:    RoomOptions{WallWidthInches: 8},
	}, dst)
	require.NoError(t, err)

	assert.Equal(t, sage.NRGBA(), dst.NRGBAAt(0, 0))
	assert.Equal(t, sage.NRGBA(), dst.NRGBAAt(7, 7))
	for i := 3; i < len(dst.Pix); i += 4 {
		require.Equal(t, uint8(255), dst.Pix[i], "every pixel is opaque")
	}
}

// tileRow is the expected color of column 0 of the test tile at row y.
func tileRow(y int) color.NRGBA {
	if y%4 == 0 {
		return sage.NRGBA()
	}
	return navy.NRGBA()
}

func TestRenderRoomGridShrinksRepeat(t *testing.T) {
	engine := New(testLoader(), nil, nil)

	out, err := engine.Render(context.Background(), Request{
		Pattern: twoLayerPattern(pattern.Straight),
		Colors:  pattern.ColorAssignment{cream, navy, sage},
		Mode:    ModeRoom,
		Width:   80,
		Height:  16,
		Room:    RoomOptions{WallWidthInches: 10, Grid: 2},
	})
	require.NoError(t, err)

	// 8 ppi / grid 2 -> 4px tiles.
	assert.Equal(t, out.NRGBAAt(0, 0), out.NRGBAAt(4, 4))
	assert.Equal(t, out.NRGBAAt(3, 3), out.NRGBAAt(7, 7))
}

func TestRenderWallPanels(t *testing.T) {
	p := twoLayerPattern(pattern.WallPanel)
	p.Panels = &pattern.PanelLayout{Count: 3, SpacingPx: 2, VerticalOffsetPx: 1}
	engine := New(testLoader(), nil, nil)

	backdrop := palette.RGB{R: 1, G: 2, B: 3}
	out, err := engine.Render(context.Background(), Request{
		Pattern: p,
		Colors:  pattern.ColorAssignment{cream, navy, sage},
		Mode:    ModeRoom,
		Width:   40,
		Height:  12,
		Room:    RoomOptions{WallWidthInches: 10, Backdrop: &backdrop},
	})
	require.NoError(t, err)

	// panels are 4x4: total = 3*4 + 2*2 = 16, x0 = 12, y0 = (12-4)/2 - 1 = 3
	assert.Equal(t, backdrop.NRGBA(), out.NRGBAAt(0, 0))
	assert.Equal(t, backdrop.NRGBA(), out.NRGBAAt(16, 3), "gap between panels")
	for _, x0 := range []int{12, 18, 24} {
		assert.Equal(t, sage.NRGBA(), out.NRGBAAt(x0, 3), "panel at %d top row", x0)
		assert.Equal(t, navy.NRGBA(), out.NRGBAAt(x0, 5))
		assert.Equal(t, cream.NRGBA(), out.NRGBAAt(x0+3, 6), "ground inside panel")
	}
	assert.Equal(t, backdrop.NRGBA(), out.NRGBAAt(30, 5), "right of the last panel")
}

func TestRenderPrintCentersOnWhite(t *testing.T) {
	engine := New(testLoader(), nil, nil)

	out, err := engine.Render(context.Background(), Request{
		Pattern: twoLayerPattern(pattern.Straight),
		Colors:  pattern.ColorAssignment{cream, navy, sage},
		Mode:    ModePrint,
		Width:   60,
		Height:  40,
		Print:   PrintOptions{MarginPx: 4},
	})
	require.NoError(t, err)

	// fits a 32x32 square centered at x 14..46, y 4..36
	assert.Equal(t, palette.White.NRGBA(), out.NRGBAAt(0, 0))
	assert.Equal(t, palette.White.NRGBA(), out.NRGBAAt(10, 20))
	assert.Equal(t, palette.White.NRGBA(), out.NRGBAAt(50, 20))
	assertNear(t, cream.NRGBA(), out.NRGBAAt(42, 32))
	assertNear(t, navy.NRGBA(), out.NRGBAAt(17, 24))
}

func TestRenderSwatchFillsSurface(t *testing.T) {
	engine := New(testLoader(), nil, nil)
	req := Request{
		Pattern: twoLayerPattern(pattern.Straight),
		Colors:  pattern.ColorAssignment{cream, navy, sage},
		Mode:    ModeSwatch,
		Width:   4,
		Height:  4,
	}

	same, err := engine.Render(context.Background(), req)
	require.NoError(t, err)
	assertNear(t, sage.NRGBA(), same.NRGBAAt(3, 0))
	assertNear(t, navy.NRGBA(), same.NRGBAAt(0, 3))
	assertNear(t, cream.NRGBA(), same.NRGBAAt(3, 3))

	req.Width, req.Height = 40, 40
	big, err := engine.Render(context.Background(), req)
	require.NoError(t, err)
	assertNear(t, cream.NRGBA(), big.NRGBAAt(38, 38))
	assertNear(t, navy.NRGBA(), big.NRGBAAt(2, 30))
}

// assertNear allows for rounding in the resampling kernels.
func assertNear(t *testing.T, want, got color.NRGBA) {
	t.Helper()
	assert.InDelta(t, want.R, got.R, 1, "red of %v", got)
	assert.InDelta(t, want.G, got.G, 1, "green of %v", got)
	assert.InDelta(t, want.B, got.B, 1, "blue of %v", got)
	assert.Equal(t, want.A, got.A)
}

func TestRenderCancelled(t *testing.T) {
	engine := New(testLoader(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Render(ctx, Request{
		Pattern: twoLayerPattern(pattern.Straight),
		Colors:  pattern.ColorAssignment{cream, navy, sage},
		Width:   8,
		Height:  8,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFitRect(t *testing.T) {
	assert.Equal(t, image.Rect(20, 0, 80, 60), fitRect(image.Pt(4, 4), image.Rect(0, 0, 100, 60)))
	assert.Equal(t, image.Rect(0, 15, 100, 65), fitRect(image.Pt(20, 10), image.Rect(0, 0, 100, 80)))
}
