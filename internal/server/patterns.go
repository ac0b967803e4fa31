package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/MeKo-Tech/patternpreview/internal/pattern"
)

// ErrPatternNotFound is returned for unknown pattern names.
var ErrPatternNotFound = errors.New("pattern not found")

// PatternSource looks up pattern descriptors by name.
type PatternSource interface {
	Pattern(name string) (*pattern.Pattern, error)
}

// DirPatterns loads <dir>/<name>.yaml descriptors and keeps them in memory.
type DirPatterns struct {
	dir   string
	cache sync.Map // name -> *pattern.Pattern
}

// NewDirPatterns creates a source reading from dir.
func NewDirPatterns(dir string) *DirPatterns {
	return &DirPatterns{dir: dir}
}

// Pattern implements PatternSource. Names must already be slugs, so a request
// cannot reach outside dir.
func (d *DirPatterns) Pattern(name string) (*pattern.Pattern, error) {
	if name == "" || pattern.Slug(name) != name {
		return nil, fmt.Errorf("%w: %q", ErrPatternNotFound, name)
	}
	if v, ok := d.cache.Load(name); ok {
		return v.(*pattern.Pattern), nil
	}

	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(d.dir, name+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		p, err := pattern.Load(path)
		if err != nil {
			return nil, err
		}
		actual, _ := d.cache.LoadOrStore(name, p)
		return actual.(*pattern.Pattern), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrPatternNotFound, name)
}

// PatternMap is an in-memory PatternSource.
type PatternMap map[string]*pattern.Pattern

// Pattern implements PatternSource.
func (m PatternMap) Pattern(name string) (*pattern.Pattern, error) {
	p, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPatternNotFound, name)
	}
	return p, nil
}
