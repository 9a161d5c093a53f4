package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"panelbase/config"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "panelbase",
	Short: "Import, curate, and browse a solar panel product catalog.",
	Long: `panelbase maintains a normalized solar panel catalog in a local SQLite
database. It imports supplier CSV/Excel price lists with automatic column
detection and unit conversion, diffs each batch against the existing catalog,
and serves a local admin UI for browsing, filtering, and moderating
data-quality flags.

Supported input formats:
- Excel: .xlsx, .xlsm, .xls
- CSV: .csv
`,
	Example: `
  # Create configuration file
  panelbase config create

  # Import a supplier price list
  panelbase import -i pricelist.csv

  # Preview an import without writing anything
  panelbase import -i pricelist.csv --dry-run

  # Start the local admin UI
  panelbase serve

  # Export the catalog
  panelbase export --output ./catalog.csv

  # Review pending data-quality flags
  panelbase flags list
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	config.SetDefaults()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "configFile", "", "Config file override (default discovery: $HOME/.panelbase.yaml, then ./.panelbase.yaml)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".panelbase" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".panelbase")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in. Defaults carry the app otherwise.
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintln(os.Stderr, "No config file found, using defaults. Create one with: panelbase config create")
	}
}
