package swatchbook

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/MeKo-Tech/patternpreview/internal/palette"
)

// Reader reads swatches from a book. It is safe for concurrent use.
type Reader struct {
	db   *sql.DB
	path string
}

// OpenReader opens a book read-only.
func OpenReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='swatches'").Scan(&count)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify schema: %w", err)
	}
	if count == 0 {
		db.Close()
		return nil, fmt.Errorf("database %s does not contain a swatches table", path)
	}

	return &Reader{
		db:   db,
		path: path,
	}, nil
}

// Read returns the PNG stored under key.
func (r *Reader) Read(key string) ([]byte, error) {
	var data []byte
	err := r.db.QueryRow("SELECT image FROM swatches WHERE key=?", key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query swatch: %w", err)
	}
	return data, nil
}

// List returns every entry without image data, ordered by key.
func (r *Reader) List() ([]Entry, error) {
	rows, err := r.db.Query("SELECT pattern, colorway, mode, colors FROM swatches ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to list swatches: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var colors string
		if err := rows.Scan(&e.Pattern, &e.Colorway, &e.Mode, &colors); err != nil {
			return nil, fmt.Errorf("failed to scan swatch row: %w", err)
		}
		e.Colors = palette.SplitTokens(colors)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating swatches: %w", err)
	}
	return entries, nil
}

// Metadata reads the book metadata.
func (r *Reader) Metadata() (Metadata, error) {
	rows, err := r.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return Metadata{}, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		values[name] = value
	}
	if err := rows.Err(); err != nil {
		return Metadata{}, fmt.Errorf("error iterating metadata: %w", err)
	}

	return metadataFromMap(values), nil
}

// Close closes the database connection.
func (r *Reader) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
