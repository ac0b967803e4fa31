package palette

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadTable reads a color table from disk. Supported formats:
//
//   - .yaml/.yml: a mapping of color name to "#rrggbb"
//   - .csv: rows of code,name,hex with a header row
func LoadTable(path string) (Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open color table %s: %w", path, err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ReadYAML(file)
	case ".csv":
		return ReadCSV(file)
	default:
		return nil, fmt.Errorf("unsupported color table format %q", filepath.Ext(path))
	}
}

// ReadYAML parses a name -> hex mapping.
func ReadYAML(r io.Reader) (Table, error) {
	var raw map[string]string
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, nil
		}
		return nil, fmt.Errorf("failed to decode color table: %w", err)
	}

	table := make(Table, len(raw))
	for name, hex := range raw {
		c, err := ParseHex(strings.TrimSpace(hex))
		if err != nil {
			return nil, fmt.Errorf("color %q: %w", name, err)
		}
		table.Add(name, c)
	}
	return table, nil
}

// ReadCSV parses code,name,hex rows. The first row is treated as a header.
// Both the name and the code are indexed so a bare code token resolves too.
func ReadCSV(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read color table: %w", err)
	}

	table := make(Table, len(records)*2)
	for i, rec := range records {
		if i == 0 {
			continue
		}
		c, err := ParseHex(strings.TrimSpace(rec[2]))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		table.Add(rec[1], c)
		if code := strings.TrimSpace(rec[0]); code != "" {
			table.Add(code, c)
		}
	}
	return table, nil
}
