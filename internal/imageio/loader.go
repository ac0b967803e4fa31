// Package imageio loads separation images and encodes rendered previews.
package imageio

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder

	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// ErrDecode is wrapped by every load failure.
var ErrDecode = errors.New("image decode failed")

// Loader decodes an image by path.
type Loader interface {
	Load(ctx context.Context, path string) (image.Image, error)
}

// FileLoader reads images from the local filesystem. Relative paths are
// resolved against Root.
type FileLoader struct {
	Root string
}

// Load implements Loader.
func (l FileLoader) Load(ctx context.Context, path string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if l.Root != "" && !filepath.IsAbs(path) {
		path = filepath.Join(l.Root, path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", ErrDecode, path, err)
	}
	defer file.Close()

	img, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Decode decodes any registered image format.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// MapLoader serves preloaded images keyed by path. Missing keys fail like a
// broken file would.
type MapLoader map[string]image.Image

// Load implements Loader.
func (m MapLoader) Load(ctx context.Context, path string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, ok := m[path]
	if !ok || img == nil {
		return nil, fmt.Errorf("%w: no image for %s", ErrDecode, path)
	}
	return img, nil
}
