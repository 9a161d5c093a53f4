package cmd

import "github.com/spf13/cobra"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage panelbase configuration file values.",
	Long: `Create, edit, and display the panelbase configuration file.

The configuration stores application-wide values:
- server.host / server.port
- database.path
- import.default_source / import.default_length_unit / import.default_weight_unit
- export.default_format
- flags.auto_resolve_after_import`,
	Example: `
  # Create default config in $HOME/.panelbase.yaml
  panelbase config create

  # Show active config and source file
  panelbase config show

  # Open active config in editor (creates example if missing)
  panelbase config edit
`,
}

func init() {
	rootCmd.AddCommand(configCmd)
}
