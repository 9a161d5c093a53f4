package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"panelbase/config"
)

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show active configuration values.",
	Long: `Display the currently loaded configuration and the resolved config file path.

This command validates the configuration before printing values.`,
	Example: `
  # Show active configuration
  panelbase config show
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadAndValidate()
		if err != nil {
			fmt.Println("Invalid config:", err)
			return
		}

		if configPath := viper.ConfigFileUsed(); configPath != "" {
			fmt.Println("Config file loaded from:", configPath)
		} else {
			fmt.Println("No config file in use, showing defaults.")
		}
		fmt.Println("Configuration:")
		fmt.Printf("server.host: %s\n", cfg.Server.Host)
		fmt.Printf("server.port: %d\n", cfg.Server.Port)
		fmt.Printf("database.path: %s\n", cfg.Database.Path)
		fmt.Printf("import.default_source: %s\n", cfg.Import.DefaultSource)
		fmt.Printf("import.default_length_unit: %s\n", cfg.Import.DefaultLengthUnit)
		fmt.Printf("import.default_weight_unit: %s\n", cfg.Import.DefaultWeightUnit)
		fmt.Printf("export.default_format: %s\n", cfg.Export.DefaultFormat)
		fmt.Printf("flags.auto_resolve_after_import: %t\n", cfg.Flags.AutoResolveAfterImport)
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
