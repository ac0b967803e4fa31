package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/MeKo-Tech/patternpreview/internal/imageio"
	"github.com/MeKo-Tech/patternpreview/internal/palette"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var colorsCmd = &cobra.Command{
	Use:   "colors",
	Short: "Inspect color tokens",
}

var colorsResolveCmd = &cobra.Command{
	Use:     "resolve TOKEN...",
	Short:   "Print the hex value each color token resolves to",
	Example: `  patternpreview colors resolve "#F5F0E1" "SW7069 Iron Ore" --color-table paints.csv`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runColorsResolve,
}

var colorsExtractCmd = &cobra.Command{
	Use:   "extract IMAGE",
	Short: "Suggest a colorway from the main colors of an image",
	Long: `Print the main colors of an image, lightest first, as a comma-separated
list that can be passed to "render --colors".`,
	Args: cobra.ExactArgs(1),
	RunE: runColorsExtract,
}

func init() {
	rootCmd.AddCommand(colorsCmd)
	colorsCmd.AddCommand(colorsResolveCmd)
	colorsCmd.AddCommand(colorsExtractCmd)

	colorsExtractCmd.Flags().IntP("count", "n", 3, "Number of colors (ground + inks)")
	colorsExtractCmd.Flags().String("method", string(palette.ExtractDominant), "Extraction method (dominant, kmeans)")

	bindCommandFlags(colorsExtractCmd.Flags(), "colors.extract", []flagKey{
		{"count", "count"},
		{"method", "method"},
	})
}

func runColorsResolve(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	table, err := loadColorTable()
	if err != nil {
		return err
	}
	printResolved(cmd.OutOrStdout(), args, table)
	return nil
}

// printResolved writes one "token<TAB>hex" line per token and marks
// fallbacks.
func printResolved(w io.Writer, tokens []string, table palette.Lookuper) {
	for _, tok := range tokens {
		c, ok := palette.Match(tok, table)
		if ok {
			fmt.Fprintf(w, "%s\t%s\n", tok, c.Hex())
		} else {
			fmt.Fprintf(w, "%s\t%s\t(fallback)\n", tok, c.Hex())
		}
	}
}

func runColorsExtract(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	count := viper.GetInt("colors.extract.count")
	method := palette.ExtractMethod(viper.GetString("colors.extract.method"))

	img, err := imageio.FileLoader{}.Load(context.Background(), args[0])
	if err != nil {
		return err
	}
	colors, err := palette.Extract(img, count, method)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), joinHex(colors))
	return nil
}

func joinHex(colors []palette.RGB) string {
	hex := make([]string, len(colors))
	for i, c := range colors {
		hex[i] = c.Hex()
	}
	return strings.Join(hex, ",")
}
