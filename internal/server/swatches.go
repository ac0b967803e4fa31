package server

import (
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/MeKo-Tech/patternpreview/internal/swatchbook"
)

// SwatchReader is the part of swatchbook.Reader the handler needs.
type SwatchReader interface {
	Read(key string) ([]byte, error)
}

// SwatchHandler serves pre-rendered previews from a swatch book.
type SwatchHandler struct {
	reader       SwatchReader
	logger       *slog.Logger
	cacheControl string
}

// NewSwatchHandler creates a handler for /swatches/{key}.png.
func NewSwatchHandler(reader SwatchReader, cacheControl string, logger *slog.Logger) *SwatchHandler {
	if cacheControl == "" {
		cacheControl = "public, max-age=3600"
	}
	return &SwatchHandler{
		reader:       reader,
		logger:       logger,
		cacheControl: cacheControl,
	}
}

// ServeHTTP implements http.Handler.
func (h *SwatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key, ok := parseSwatchPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	data, err := h.reader.Read(key)
	if errors.Is(err, swatchbook.ErrNotFound) {
		http.Error(w, "swatch not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log().Error("Failed to read swatch", "key", key, "error", err)
		http.Error(w, "failed to read swatch", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", h.cacheControl)
	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(data); err != nil {
		h.log().Error("Failed to write response", "error", err)
	}
}

func (h *SwatchHandler) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

// parseSwatchPath parses /swatches/ferns--dusk--room.png into its key.
func parseSwatchPath(requestPath string) (string, bool) {
	if !strings.HasPrefix(requestPath, "/swatches/") {
		return "", false
	}
	base := path.Base(requestPath)
	if !strings.HasSuffix(base, ".png") {
		return "", false
	}
	key := strings.TrimSuffix(base, ".png")
	if key == "" || strings.Count(key, "--") != 2 {
		return "", false
	}
	return key, true
}
