// Package swatchbook stores rendered pattern previews in a SQLite file so
// they can be served without re-rendering.
package swatchbook

import (
	"errors"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/patternpreview/internal/pattern"
)

// ErrNotFound is returned for keys that are not in the book.
var ErrNotFound = errors.New("swatch not found")

// Metadata describes the whole book.
type Metadata struct {
	Name        string
	Pattern     string
	Description string
	Version     string
	Mode        string
	Width       int
	Height      int
}

// Entry is one rendered colorway.
type Entry struct {
	Pattern  string
	Colorway string
	Mode     string
	// Colors are the resolved hex values, ground first.
	Colors []string
	Data   []byte // PNG
}

// Key returns the lookup key of the entry.
func (e Entry) Key() string {
	return Key(e.Pattern, e.Colorway, e.Mode)
}

// Key builds the key under which a preview is stored, e.g.
// "ferns--harbor-night--room".
func Key(patternName, colorway, mode string) string {
	return pattern.Slug(patternName) + "--" + pattern.Slug(colorway) + "--" + pattern.Slug(mode)
}

func (m Metadata) toMap() map[string]string {
	result := make(map[string]string)

	if m.Name != "" {
		result["name"] = m.Name
	}
	if m.Pattern != "" {
		result["pattern"] = m.Pattern
	}
	if m.Description != "" {
		result["description"] = m.Description
	}
	if m.Version != "" {
		result["version"] = m.Version
	}
	if m.Mode != "" {
		result["mode"] = m.Mode
	}
	if m.Width > 0 {
		result["width"] = strconv.Itoa(m.Width)
	}
	if m.Height > 0 {
		result["height"] = strconv.Itoa(m.Height)
	}
	result["format"] = "png"

	return result
}

func metadataFromMap(values map[string]string) Metadata {
	meta := Metadata{
		Name:        values["name"],
		Pattern:     values["pattern"],
		Description: values["description"],
		Version:     values["version"],
		Mode:        values["mode"],
	}
	if i, err := strconv.Atoi(values["width"]); err == nil {
		meta.Width = i
	}
	if i, err := strconv.Atoi(values["height"]); err == nil {
		meta.Height = i
	}
	return meta
}

func joinColors(colors []string) string {
	return strings.Join(colors, ",")
}

