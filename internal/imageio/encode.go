package imageio

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
)

// ParseCompression maps a compression name (default, speed, best, none) to a
// PNG compression level.
func ParseCompression(name string) (png.CompressionLevel, error) {
	switch name {
	case "", "default":
		return png.DefaultCompression, nil
	case "speed":
		return png.BestSpeed, nil
	case "best":
		return png.BestCompression, nil
	case "none":
		return png.NoCompression, nil
	default:
		return 0, fmt.Errorf("invalid png compression %q: must be default, speed, best or none", name)
	}
}

// EncodePNG writes img to w.
func EncodePNG(w io.Writer, img image.Image, compression string) error {
	level, err := ParseCompression(compression)
	if err != nil {
		return err
	}
	enc := png.Encoder{CompressionLevel: level}
	if err := enc.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

// PNGBytes encodes img into memory.
func PNGBytes(img image.Image, compression string) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img, compression); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WritePNG encodes img to path, creating parent directories.
func WritePNG(path string, img image.Image, compression string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := EncodePNG(file, img, compression); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
