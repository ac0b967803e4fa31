package pattern

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Colorway is a named list of color tokens: ground first, then one token per
// colorable layer.
type Colorway struct {
	Name   string   `yaml:"name"`
	Colors []string `yaml:"colors"`
}

type colorwayFile struct {
	Colorways []Colorway `yaml:"colorways"`
}

// LoadColorways reads a YAML file with a top-level "colorways" list.
// Unnamed entries are named after their position.
func LoadColorways(path string) ([]Colorway, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read colorways %s: %w", path, err)
	}

	var f colorwayFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode colorways %s: %w", path, err)
	}

	seen := make(map[string]bool, len(f.Colorways))
	for i := range f.Colorways {
		cw := &f.Colorways[i]
		if cw.Name == "" {
			cw.Name = fmt.Sprintf("colorway-%02d", i+1)
		}
		if len(cw.Colors) == 0 {
			return nil, fmt.Errorf("%w: colorway %q has no colors", ErrInvalid, cw.Name)
		}
		slug := cw.Slug()
		if seen[slug] {
			return nil, fmt.Errorf("%w: duplicate colorway %q", ErrInvalid, cw.Name)
		}
		seen[slug] = true
	}
	return f.Colorways, nil
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug returns a file-name safe form of the colorway name.
func (c Colorway) Slug() string {
	return Slug(c.Name)
}

// Slug lowercases s and collapses everything except letters and digits into
// single dashes.
func Slug(s string) string {
	return strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
