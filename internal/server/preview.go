// Package server renders pattern previews over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/patternpreview/internal/imageio"
	"github.com/MeKo-Tech/patternpreview/internal/palette"
	"github.com/MeKo-Tech/patternpreview/internal/render"
)

// PreviewConfig tunes rendering limits and response headers of Preview.
type PreviewConfig struct {
	PNGCompression       string
	CacheControl         string
	MaxConcurrentRenders int
	RenderTimeout        time.Duration
	// MaxSurfacePx caps the requested width and height.
	MaxSurfacePx  int
	DefaultWidth  int
	DefaultHeight int
	// WallWidthInches is used for room mode when the request has no "wall".
	WallWidthInches float64
}

// Preview renders previews on demand for GET /render.
type Preview struct {
	engine   *render.Engine
	patterns PatternSource
	logger   *slog.Logger
	sem      chan struct{}
	cfg      PreviewConfig

	activeRenders  atomic.Int32
	queuedRenders  atomic.Int32
	totalRendered  atomic.Int64
	totalFailed    atomic.Int64
	currentRenders sync.Map // request key -> start time
}

// Status is the JSON body of the status endpoint.
type Status struct {
	ActiveRenders  int      `json:"active_renders"`
	QueuedRenders  int      `json:"queued_renders"`
	TotalRendered  int64    `json:"total_rendered"`
	TotalFailed    int64    `json:"total_failed"`
	MaxConcurrent  int      `json:"max_concurrent"`
	CurrentRenders []string `json:"current_renders"`
}

// NewPreview creates the on-demand handler.
func NewPreview(engine *render.Engine, patterns PatternSource, cfg PreviewConfig, logger *slog.Logger) *Preview {
	if cfg.MaxConcurrentRenders <= 0 {
		cfg.MaxConcurrentRenders = 1
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = 30 * time.Second
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "no-store"
	}
	if cfg.MaxSurfacePx <= 0 {
		cfg.MaxSurfacePx = 4096
	}
	if cfg.DefaultWidth <= 0 {
		cfg.DefaultWidth = 800
	}
	if cfg.DefaultHeight <= 0 {
		cfg.DefaultHeight = 600
	}

	return &Preview{
		engine:   engine,
		patterns: patterns,
		cfg:      cfg,
		logger:   logger,
		sem:      make(chan struct{}, cfg.MaxConcurrentRenders),
	}
}

// Status returns a snapshot of render activity.
func (p *Preview) Status() Status {
	var current []string
	p.currentRenders.Range(func(key, _ any) bool {
		current = append(current, key.(string))
		return true
	})
	sort.Strings(current)

	return Status{
		ActiveRenders:  int(p.activeRenders.Load()),
		QueuedRenders:  int(p.queuedRenders.Load()),
		TotalRendered:  p.totalRendered.Load(),
		TotalFailed:    p.totalFailed.Load(),
		MaxConcurrent:  p.cfg.MaxConcurrentRenders,
		CurrentRenders: current,
	}
}

// StatusHandler serves Status as JSON.
func (p *Preview) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")

		if err := json.NewEncoder(w).Encode(p.Status()); err != nil {
			p.log().Error("failed to encode status", "error", err)
			http.Error(w, "failed to encode status", http.StatusInternalServerError)
		}
	})
}

// Handler returns the /render handler.
func (p *Preview) Handler() http.Handler {
	return http.HandlerFunc(p.serveRender)
}

func (p *Preview) serveRender(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q, err := p.parseQuery(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	pat, err := p.patterns.Pattern(q.pattern)
	if err != nil {
		if errors.Is(err, ErrPatternNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		p.log().Error("failed to load pattern", "pattern", q.pattern, "error", err)
		http.Error(w, "failed to load pattern", http.StatusInternalServerError)
		return
	}

	key := r.URL.RawQuery
	p.queuedRenders.Add(1)
	select {
	case p.sem <- struct{}{}:
		p.queuedRenders.Add(-1)
		defer func() { <-p.sem }()
	case <-r.Context().Done():
		p.queuedRenders.Add(-1)
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), p.cfg.RenderTimeout)
	defer cancel()

	p.activeRenders.Add(1)
	p.currentRenders.Store(key, time.Now())
	start := time.Now()

	img, err := p.engine.Render(ctx, render.Request{
		Pattern: pat,
		Tokens:  q.colors,
		Mode:    q.mode,
		Width:   q.width,
		Height:  q.height,
		Room:    q.room,
	})

	p.activeRenders.Add(-1)
	p.currentRenders.Delete(key)

	if err != nil {
		p.totalFailed.Add(1)
		switch {
		case errors.Is(err, render.ErrInvalidConfiguration):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, context.DeadlineExceeded):
			p.log().Warn("render timed out", "pattern", pat.Name, "timeout", p.cfg.RenderTimeout)
			http.Error(w, "render timed out", http.StatusGatewayTimeout)
		default:
			p.log().Error("failed to render preview", "pattern", pat.Name, "error", err)
			http.Error(w, "failed to render preview", http.StatusInternalServerError)
		}
		return
	}

	data, err := imageio.PNGBytes(img, p.cfg.PNGCompression)
	if err != nil {
		p.totalFailed.Add(1)
		p.log().Error("failed to encode preview", "error", err)
		http.Error(w, "failed to encode preview", http.StatusInternalServerError)
		return
	}
	p.totalRendered.Add(1)
	p.log().Info("preview rendered", "pattern", pat.Name, "mode", q.mode, "ms", time.Since(start).Milliseconds())

	w.Header().Set("Cache-Control", p.cfg.CacheControl)
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(data); err != nil {
		p.log().Error("failed to write response", "error", err)
	}
}

type renderQuery struct {
	pattern string
	colors  []string
	mode    render.Mode
	width   int
	height  int
	room    render.RoomOptions
}

// parseQuery reads pattern, colors, mode, w, h, scale, grid and wall.
func (p *Preview) parseQuery(v url.Values) (renderQuery, error) {
	q := renderQuery{
		pattern: v.Get("pattern"),
		mode:    render.ModeSwatch,
		width:   p.cfg.DefaultWidth,
		height:  p.cfg.DefaultHeight,
		room:    render.RoomOptions{WallWidthInches: p.cfg.WallWidthInches},
	}
	if q.pattern == "" {
		return q, fmt.Errorf("missing pattern")
	}

	q.colors = palette.SplitTokens(v.Get("colors"))
	if len(q.colors) == 0 {
		return q, fmt.Errorf("missing colors")
	}

	if m := v.Get("mode"); m != "" {
		mode, err := render.ParseMode(m)
		if err != nil {
			return q, err
		}
		q.mode = mode
	}

	var err error
	if q.width, err = intParam(v, "w", q.width, 1, p.cfg.MaxSurfacePx); err != nil {
		return q, err
	}
	if q.height, err = intParam(v, "h", q.height, 1, p.cfg.MaxSurfacePx); err != nil {
		return q, err
	}
	if q.room.Grid, err = intParam(v, "grid", 1, 1, 4); err != nil {
		return q, err
	}
	if q.room.Scale, err = floatParam(v, "scale", 1); err != nil {
		return q, err
	}
	if q.room.WallWidthInches, err = floatParam(v, "wall", q.room.WallWidthInches); err != nil {
		return q, err
	}
	return q, nil
}

func intParam(v url.Values, name string, def, lo, hi int) (int, error) {
	s := v.Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%s must be %d..%d, got %d", name, lo, hi, n)
	}
	return n, nil
}

func floatParam(v url.Values, name string, def float64) (float64, error) {
	s := v.Get(name)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return f, nil
}

func (p *Preview) log() *slog.Logger {
	if p.logger != nil {
		return p.logger
	}
	return slog.Default()
}

// WithCORS allows browser pages on other origins to fetch previews.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewMux wires the preview, swatch and health endpoints. swatches may be nil.
func NewMux(preview *Preview, swatches http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/render", WithCORS(preview.Handler()))
	mux.Handle("/status", WithCORS(preview.StatusHandler()))
	if swatches != nil {
		mux.Handle("/swatches/", WithCORS(swatches))
	}
	return mux
}
