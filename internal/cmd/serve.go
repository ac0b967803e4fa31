package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/MeKo-Tech/patternpreview/internal/imageio"
	"github.com/MeKo-Tech/patternpreview/internal/render"
	"github.com/MeKo-Tech/patternpreview/internal/server"
	"github.com/MeKo-Tech/patternpreview/internal/swatchbook"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve previews over HTTP, rendering them on demand",
	Long: `Serve GET /render?pattern=<name>&colors=<a,b,...>&mode=<mode>&w=<px>&h=<px>
for the patterns in --patterns-dir, and GET /swatches/<key>.png from a swatch
book written by "batch".`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().String("patterns-dir", "./patterns", "Directory of <name>.yaml pattern descriptors")
	serveCmd.Flags().String("swatchbook", "", "Swatch book to serve under /swatches/")
	serveCmd.Flags().Int("max-concurrent-renders", runtime.NumCPU(), "Max concurrent renders (default: number of CPUs)")
	serveCmd.Flags().Duration("render-timeout", 30*time.Second, "Timeout per render")
	serveCmd.Flags().Int("max-size", 4096, "Largest accepted width or height in pixels")
	serveCmd.Flags().Float64("wall-width", render.DefaultWallWidthInches, "Default wall width in inches for room mode")
	serveCmd.Flags().String("cache-control", "no-store", "Cache-Control header for rendered previews")

	bindCommandFlags(serveCmd.Flags(), "serve", []flagKey{
		{"addr", "addr"},
		{"patterns_dir", "patterns-dir"},
		{"swatchbook", "swatchbook"},
		{"max_concurrent_renders", "max-concurrent-renders"},
		{"render_timeout", "render-timeout"},
		{"max_size", "max-size"},
		{"wall_width", "wall-width"},
		{"cache_control", "cache-control"},
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	addr := viper.GetString("serve.addr")
	patternsDir := viper.GetString("serve.patterns_dir")
	bookPath := viper.GetString("serve.swatchbook")
	maxConc := viper.GetInt("serve.max_concurrent_renders")
	timeout := viper.GetDuration("serve.render_timeout")
	maxSize := viper.GetInt("serve.max_size")
	wallWidth := viper.GetFloat64("serve.wall_width")
	cacheControl := viper.GetString("serve.cache_control")
	compression := viper.GetString("png-compression")

	if _, err := imageio.ParseCompression(compression); err != nil {
		return err
	}

	table, err := loadColorTable()
	if err != nil {
		return err
	}

	engine := render.New(imageio.NewCachingLoader(imageio.FileLoader{}), table, logger)
	preview := server.NewPreview(engine, server.NewDirPatterns(patternsDir), server.PreviewConfig{
		PNGCompression:       compression,
		CacheControl:         cacheControl,
		MaxConcurrentRenders: maxConc,
		RenderTimeout:        timeout,
		MaxSurfacePx:         maxSize,
		WallWidthInches:      wallWidth,
	}, logger)

	var swatches http.Handler
	if bookPath != "" {
		reader, err := swatchbook.OpenReader(bookPath)
		if err != nil {
			return fmt.Errorf("failed to open swatch book: %w", err)
		}
		defer reader.Close()
		swatches = server.NewSwatchHandler(reader, "", logger)
	}

	logger.Info("Preview server listening",
		"addr", addr,
		"patterns_dir", patternsDir,
		"swatchbook", bookPath,
		"max_concurrent_renders", maxConc,
	)

	srv := &http.Server{Addr: addr, Handler: server.NewMux(preview, swatches), ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
