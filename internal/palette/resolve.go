package palette

import (
	"regexp"
	"strings"
)

// FallbackName is looked up when a token matches nothing in the table.
const FallbackName = "white"

// SplitTokens splits a comma-separated color list, trimming spaces and
// dropping empty entries.
func SplitTokens(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Lookuper finds colors by normalized name.
type Lookuper interface {
	Lookup(name string) (RGB, bool)
}

// Table maps normalized color names to colors. It is read-only once loaded
// and safe to share between concurrent renders.
type Table map[string]RGB

// Lookup implements Lookuper.
func (t Table) Lookup(name string) (RGB, bool) {
	c, ok := t[name]
	return c, ok
}

// Add stores c under the normalized form of name.
func (t Table) Add(name string, c RGB) {
	if key := NormalizeName(name); key != "" {
		t[key] = c
	}
}

// brand codes look like "SW7069 " or "B123".
var brandCodePattern = regexp.MustCompile(`^([A-Z]{1,2}\d+)\s*`)

// NormalizeName turns a display name into a table key.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Resolve turns a token into a color. It never fails: unknown names resolve to
// the table's FallbackName entry, or to White when that is missing too.
func Resolve(token string, table Lookuper) RGB {
	c, _ := Match(token, table)
	return c
}

// Match is Resolve that also reports whether the token itself resolved.
// A false result means the fallback color was returned.
func Match(token string, table Lookuper) (RGB, bool) {
	token = strings.TrimSpace(token)
	if IsHex(token) {
		if c, err := ParseHex(token); err == nil {
			return c, true
		}
	}

	if table != nil {
		code := ""
		name := token
		if m := brandCodePattern.FindStringSubmatch(token); m != nil {
			code = m[1]
			name = token[len(m[0]):]
		}
		key := NormalizeName(name)
		if key == "" {
			key = NormalizeName(code)
		}
		if key != "" {
			if c, ok := table.Lookup(key); ok {
				return c, true
			}
		}
		if c, ok := table.Lookup(FallbackName); ok {
			return c, false
		}
	}

	return White, false
}
