package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/MeKo-Tech/patternpreview/internal/imageio"
	"github.com/MeKo-Tech/patternpreview/internal/palette"
	"github.com/MeKo-Tech/patternpreview/internal/pattern"
	"github.com/MeKo-Tech/patternpreview/internal/render"
	"github.com/MeKo-Tech/patternpreview/internal/swatchbook"
	"github.com/MeKo-Tech/patternpreview/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Render every colorway of a pattern in parallel",
	Long: `Render all colorways listed in a YAML file. Each result is written as
<pattern>_<colorway>.png to --out-dir and, with --swatchbook, stored in a
SQLite swatch book that "serve" can read.`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().String("pattern", "", "Pattern descriptor (.yaml) (required)")
	batchCmd.Flags().String("colorways", "", "Colorways file (.yaml) (required)")
	batchCmd.Flags().String("out-dir", "./previews", "Output directory for PNGs (empty to skip files)")
	batchCmd.Flags().String("swatchbook", "", "SQLite swatch book to store previews in")
	batchCmd.Flags().IntP("workers", "w", 0, "Number of parallel workers (default: number of CPUs)")
	batchCmd.Flags().Bool("progress", true, "Show progress bar")
	batchCmd.Flags().Bool("allow-failures", false, "Exit successfully even if some colorways fail")
	addSurfaceFlags(batchCmd.Flags())

	bindCommandFlags(batchCmd.Flags(), "batch", []flagKey{
		{"pattern", "pattern"},
		{"colorways", "colorways"},
		{"out_dir", "out-dir"},
		{"swatchbook", "swatchbook"},
		{"workers", "workers"},
		{"progress", "progress"},
		{"allow_failures", "allow-failures"},
	})
	bindSurfaceFlags(batchCmd.Flags(), "batch")
}

// colorwayRenderer renders colorways of one pattern and stores the PNGs.
type colorwayRenderer struct {
	engine      *render.Engine
	table       palette.Lookuper
	base        render.Request
	compression string
	outDir      string
	book        *swatchbook.Writer
}

// RenderColorway implements worker.Renderer.
func (c *colorwayRenderer) RenderColorway(ctx context.Context, cw pattern.Colorway) (string, error) {
	req := c.base
	req.Tokens = cw.Colors

	img, err := c.engine.Render(ctx, req)
	if err != nil {
		return "", err
	}
	data, err := imageio.PNGBytes(img, c.compression)
	if err != nil {
		return "", err
	}

	out := ""
	if c.outDir != "" {
		name := pattern.Slug(req.Pattern.Name) + "_" + cw.Slug() + ".png"
		out = filepath.Join(c.outDir, name)
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", out, err)
		}
	}

	if c.book != nil {
		entry := swatchbook.Entry{
			Pattern:  req.Pattern.Name,
			Colorway: cw.Name,
			Mode:     string(req.Mode),
			Colors:   resolvedHex(cw.Colors, c.table),
			Data:     data,
		}
		if err := c.book.Put(entry); err != nil {
			return "", err
		}
		if out == "" {
			out = entry.Key()
		}
	}
	return out, nil
}

func resolvedHex(tokens []string, table palette.Lookuper) []string {
	colors := pattern.Resolve(tokens, table)
	out := make([]string, len(colors))
	for i, c := range colors {
		out[i] = c.Hex()
	}
	return out
}

func runBatch(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	patternPath := viper.GetString("batch.pattern")
	colorwaysPath := viper.GetString("batch.colorways")
	outDir := viper.GetString("batch.out_dir")
	bookPath := viper.GetString("batch.swatchbook")
	workers := viper.GetInt("batch.workers")
	showProgress := viper.GetBool("batch.progress")
	allowFailures := viper.GetBool("batch.allow_failures")
	compression := viper.GetString("png-compression")

	if patternPath == "" || colorwaysPath == "" {
		return fmt.Errorf("--pattern and --colorways are required")
	}
	if outDir == "" && bookPath == "" {
		return fmt.Errorf("nothing to write: set --out-dir or --swatchbook")
	}
	if _, err := imageio.ParseCompression(compression); err != nil {
		return err
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	p, err := pattern.Load(patternPath)
	if err != nil {
		return err
	}
	colorways, err := pattern.LoadColorways(colorwaysPath)
	if err != nil {
		return err
	}
	table, err := loadColorTable()
	if err != nil {
		return err
	}
	base, err := baseRequest("batch", p)
	if err != nil {
		return err
	}

	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}

	var book *swatchbook.Writer
	if bookPath != "" {
		book, err = swatchbook.New(bookPath, swatchbook.Metadata{
			Name:        p.Name,
			Pattern:     p.Name,
			Description: fmt.Sprintf("%d colorways of %s", len(colorways), p.Name),
			Version:     "1",
			Mode:        string(base.Mode),
			Width:       base.Width,
			Height:      base.Height,
		})
		if err != nil {
			return fmt.Errorf("failed to create swatch book: %w", err)
		}
		defer book.Close()
	}

	logger.Info("Starting batch render",
		"pattern", p.Name,
		"colorways", len(colorways),
		"workers", workers,
		"mode", base.Mode,
		"out_dir", outDir,
		"swatchbook", bookPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	renderer := &colorwayRenderer{
		// separations are shared by every colorway, so decode them once
		engine:      render.New(imageio.NewCachingLoader(imageio.FileLoader{}), table, logger),
		table:       table,
		base:        base,
		compression: compression,
		outDir:      outDir,
		book:        book,
	}

	tasks := worker.Tasks(colorways)
	progress := worker.NewProgress(len(tasks), showProgress)
	pool := worker.New(worker.Config{
		Workers:    workers,
		Renderer:   renderer,
		OnProgress: progress.Callback(),
	})

	results := pool.Run(ctx, tasks)
	progress.Done()

	var failedCount int
	for _, r := range results {
		if r.Err != nil {
			failedCount++
			logger.Error("Colorway failed", "colorway", r.Task.Colorway.Name, "error", r.Err)
			continue
		}
		logger.Debug("Colorway rendered", "colorway", r.Task.Colorway.Name, "output", r.Output, "elapsed", r.Elapsed)
	}
	logger.Info(progress.Summary())

	if book != nil {
		if err := book.Flush(); err != nil {
			return fmt.Errorf("failed to flush swatch book: %w", err)
		}
	}

	if failedCount > 0 {
		if !allowFailures {
			return fmt.Errorf("%d of %d colorways failed", failedCount, len(tasks))
		}
		logger.Warn("Some colorways failed, continuing due to --allow-failures", "failed_count", failedCount)
	}
	return nil
}
