package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/patternpreview/internal/imageio"
	"github.com/MeKo-Tech/patternpreview/internal/palette"
	"github.com/MeKo-Tech/patternpreview/internal/pattern"
	"github.com/MeKo-Tech/patternpreview/internal/render"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render one colorway of a pattern",
	Long: `Render a pattern descriptor with one color assignment to a PNG.

The first color is the ground; the rest go to the colorable layers in order.`,
	Example: `  patternpreview render --pattern ferns.yaml --colors "#F5F0E1,SW7069 Iron Ore,sage" --mode room --out ferns.png`,
	RunE:    runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().String("pattern", "", "Pattern descriptor (.yaml) (required)")
	renderCmd.Flags().String("colors", "", "Comma-separated colors: ground first, then one per colorable layer (required)")
	renderCmd.Flags().StringP("out", "o", "preview.png", "Output PNG path")
	addSurfaceFlags(renderCmd.Flags())

	bindCommandFlags(renderCmd.Flags(), "render", []flagKey{
		{"pattern", "pattern"},
		{"colors", "colors"},
		{"out", "out"},
	})
	bindSurfaceFlags(renderCmd.Flags(), "render")
}

type flagKey struct {
	key  string
	flag string
}

// addSurfaceFlags adds the output size and layout flags shared by render
// and batch.
func addSurfaceFlags(flags *pflag.FlagSet) {
	flags.String("mode", string(render.ModeSwatch), "Output mode (swatch, room, print)")
	flags.Int("width", 1600, "Output width in pixels")
	flags.Int("height", 1000, "Output height in pixels")
	flags.Float64("scale", 1, "Pattern scale factor (room mode)")
	flags.Int("grid", 1, "Show NxN repeats per repeat (room mode, 1..4)")
	flags.Float64("wall-width", render.DefaultWallWidthInches, "Wall width in inches the output represents (room mode)")
	flags.String("backdrop", "", "Wall color around panels as hex (room mode, default white)")
	flags.Int("margin", render.DefaultPrintMarginPx, "Page margin in pixels (print mode)")
	flags.Uint8("white-threshold", 0, "Channel value above which tinted-base pixels count as white (0 = default)")
}

func bindSurfaceFlags(flags *pflag.FlagSet, prefix string) {
	bindCommandFlags(flags, prefix, []flagKey{
		{"mode", "mode"},
		{"width", "width"},
		{"height", "height"},
		{"scale", "scale"},
		{"grid", "grid"},
		{"wall_width", "wall-width"},
		{"backdrop", "backdrop"},
		{"margin", "margin"},
		{"white_threshold", "white-threshold"},
	})
}

func bindCommandFlags(flags *pflag.FlagSet, prefix string, keys []flagKey) {
	for _, bf := range keys {
		if err := viper.BindPFlag(prefix+"."+bf.key, flags.Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

// baseRequest builds a request without colors from the surface flags of a
// command.
func baseRequest(prefix string, p *pattern.Pattern) (render.Request, error) {
	mode, err := render.ParseMode(viper.GetString(prefix + ".mode"))
	if err != nil {
		return render.Request{}, err
	}
	room, err := roomOptions(prefix)
	if err != nil {
		return render.Request{}, err
	}

	return render.Request{
		Pattern:        p,
		Mode:           mode,
		Width:          viper.GetInt(prefix + ".width"),
		Height:         viper.GetInt(prefix + ".height"),
		Room:           room,
		Print:          render.PrintOptions{MarginPx: viper.GetInt(prefix + ".margin")},
		WhiteThreshold: uint8(viper.GetUint(prefix + ".white_threshold")),
	}, nil
}

func runRender(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	patternPath := viper.GetString("render.pattern")
	tokens := palette.SplitTokens(viper.GetString("render.colors"))
	out := viper.GetString("render.out")
	compression := viper.GetString("png-compression")

	if patternPath == "" {
		return fmt.Errorf("--pattern is required")
	}
	if len(tokens) == 0 {
		return fmt.Errorf("--colors is required")
	}
	if _, err := imageio.ParseCompression(compression); err != nil {
		return err
	}

	p, err := pattern.Load(patternPath)
	if err != nil {
		return err
	}
	table, err := loadColorTable()
	if err != nil {
		return err
	}

	req, err := baseRequest("render", p)
	if err != nil {
		return err
	}
	req.Tokens = tokens

	logger.Info("Rendering pattern",
		"pattern", p.Name,
		"tiling", p.Tiling,
		"layers", len(p.Layers),
		"mode", req.Mode,
		"size", fmt.Sprintf("%dx%d", req.Width, req.Height),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := render.New(imageio.FileLoader{}, table, logger)
	img, err := engine.Render(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", p.Name, err)
	}

	if err := imageio.WritePNG(out, img, compression); err != nil {
		return err
	}
	logger.Info("Preview written", "path", out)
	return nil
}
