package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"panelbase/config"
	"panelbase/output"
	"panelbase/storage"
)

var (
	exportFormat string
	exportOutput string
	exportDBPath string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the catalog to CSV/Excel",
	Long: `Export every catalog record with derived metrics ($/W, W/kg, W/m²) included.

Output format can be selected explicitly via --format or inferred from the
--output extension.`,
	Example: `
  # Export to CSV
  panelbase export --output ./catalog.csv

  # Export to Excel
  panelbase export --output ./catalog.xlsx

  # Force Excel format independent of extension
  panelbase export --format excel --output ./catalog.out
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}

		format := exportFormat
		if strings.TrimSpace(format) == "" {
			format = detectExportFormat(exportOutput, cfg.Export.DefaultFormat)
		}

		dbPath := cfg.Database.Path
		if strings.TrimSpace(exportDBPath) != "" {
			dbPath = exportDBPath
		}
		store, err := storage.OpenSQLite(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		panels, err := store.ListPanels()
		if err != nil {
			return err
		}

		writer, err := output.WriterForFormat(format)
		if err != nil {
			return err
		}
		if err := writer.Write(exportOutput, panels); err != nil {
			return err
		}

		fmt.Printf("Export completed. Panels: %d, Format: %s, File: %s\n", len(panels), format, exportOutput)
		return nil
	},
}

func detectExportFormat(path, configDefault string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case "csv":
		return "csv"
	case "xlsx", "xlsm", "xls":
		return "excel"
	default:
		if strings.TrimSpace(configDefault) != "" {
			return configDefault
		}
		return "csv"
	}
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportFormat, "format", "", "Output format: csv|excel (optional, inferred from output extension)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path")
	exportCmd.Flags().StringVar(&exportDBPath, "db", "", "Path to local SQLite database (default from config)")

	_ = exportCmd.MarkFlagRequired("output")
}
