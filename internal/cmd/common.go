package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/patternpreview/internal/palette"
	"github.com/MeKo-Tech/patternpreview/internal/render"
	"github.com/spf13/viper"
)

// loadColorTable returns nil when no table is configured, so only hex
// tokens resolve.
func loadColorTable() (palette.Lookuper, error) {
	path := viper.GetString("color-table")
	if path == "" {
		return nil, nil
	}
	table, err := palette.LoadTable(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded color table", "path", path, "colors", len(table))
	return table, nil
}

// roomOptions reads the room flags of a command from viper.
func roomOptions(prefix string) (render.RoomOptions, error) {
	opts := render.RoomOptions{
		WallWidthInches: viper.GetFloat64(prefix + ".wall_width"),
		Scale:           viper.GetFloat64(prefix + ".scale"),
		Grid:            viper.GetInt(prefix + ".grid"),
	}
	if hex := viper.GetString(prefix + ".backdrop"); hex != "" {
		c, err := palette.ParseHex(hex)
		if err != nil {
			return opts, fmt.Errorf("invalid backdrop: %w", err)
		}
		opts.Backdrop = &c
	}
	return opts, nil
}
