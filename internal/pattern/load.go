package pattern

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML pattern descriptor. Relative layer sources are resolved
// against the descriptor's directory.
func Load(path string) (*Pattern, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pattern %s: %w", path, err)
	}
	defer file.Close()

	p, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode pattern %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i := range p.Layers {
		p.Layers[i].Source = resolvePath(dir, p.Layers[i].Source)
	}
	p.TintedBase = resolvePath(dir, p.TintedBase)
	if p.Name == "" {
		base := filepath.Base(path)
		p.Name = base[:len(base)-len(filepath.Ext(base))]
	}

	return p, nil
}

// Decode parses a descriptor and fills in defaults.
func Decode(r io.Reader) (*Pattern, error) {
	var p Pattern
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}

	if p.Tiling == "" {
		p.Tiling = Straight
	}
	for i := range p.Layers {
		if p.Layers[i].Role == "" {
			p.Layers[i].Role = Colorable
		}
		if p.Layers[i].Mask == "" {
			p.Layers[i].Mask = MaskNormalized
		}
	}
	return &p, nil
}

func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
