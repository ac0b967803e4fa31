package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "patternpreview",
	Short: "Recolor layered wallpaper and fabric patterns",
	Long: `PatternPreview recolors layered pattern separations and renders them as
flat swatches, tiled room mockups or print sheets.

Colors are given as hex values or paint names from a color table, e.g.
"#F5F0E1" or "SW7069 Iron Ore".`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("color-table", "", "Color table with paint names (.yaml or .csv)")
	rootCmd.PersistentFlags().String("png-compression", "default", "PNG compression (default, speed, best, none)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")

	for _, key := range []string{"color-table", "png-compression", "verbose"} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("PATTERNPREVIEW")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
