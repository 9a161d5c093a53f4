package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"panelbase/config"
	"panelbase/importer"
	"panelbase/session"
	"panelbase/storage"
	"panelbase/units"
)

var (
	importInput  string
	importFormat string
	importDBPath string
	importSource string
	importDryRun bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a CSV/Excel price list into the catalog",
	Long: `Read one source file, auto-detect its column mapping, convert values to
storage units, and reconcile every row against the existing catalog.

New products are inserted; matched products receive only the changed fields,
with manually overridden fields left alone. Rows matching a deleted product
are skipped. When --format is omitted, format is inferred from the file
extension.`,
	Example: `
  # Import a supplier CSV
  panelbase import -i pricelist.csv

  # Preview the batch without writing anything
  panelbase import -i pricelist.csv --dry-run

  # Import an Excel sheet into a custom database
  panelbase import -i catalog.xlsx --db ./panelbase.db
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}

		format, err := importer.InferFormat(importInput, importFormat)
		if err != nil {
			return err
		}
		reader, err := importer.ReaderForFormat(format)
		if err != nil {
			return err
		}
		file, err := reader.Read(importInput)
		if err != nil {
			return err
		}

		dbPath := cfg.Database.Path
		if strings.TrimSpace(importDBPath) != "" {
			dbPath = importDBPath
		}
		store, err := storage.OpenSQLite(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		sess := session.New()
		lengthUnit, _ := units.ParseUnit(cfg.Import.DefaultLengthUnit)
		weightUnit, _ := units.ParseUnit(cfg.Import.DefaultWeightUnit)
		sess.SetDefaultUnits(lengthUnit, weightUnit)

		if err := sess.LoadFile(file); err != nil {
			return err
		}
		if unmet := sess.UnmetRequirements(); len(unmet) > 0 {
			return fmt.Errorf("required columns not detected: %s", strings.Join(unmet, ", "))
		}
		if err := sess.BuildPreview(store.LoadSnapshot); err != nil {
			return err
		}

		summary := sess.Summary()
		fmt.Printf("Rows read: %d, Rows skipped: %d, New: %d, Updated: %d, Unchanged: %d, Skipped (deleted): %d\n",
			summary.RowsRead,
			summary.RowsSkipped,
			summary.New,
			summary.Updated,
			summary.Unchanged,
			summary.SkippedDeleted,
		)
		for _, rowErr := range sess.RowErrors() {
			fmt.Printf("  row %d: %v\n", rowErr.Row, rowErr.Err)
		}
		if plan := sess.Plan(); plan != nil && plan.SnapshotWarning {
			fmt.Println("Warning: catalog snapshot unavailable; every row was classified as new")
		}

		if importDryRun {
			fmt.Println("Dry run: nothing written.")
			return nil
		}

		source := cfg.Import.DefaultSource
		if strings.TrimSpace(importSource) != "" {
			source = importSource
		}
		if err := sess.Commit(store, source); err != nil {
			return err
		}

		summary = sess.Summary()
		fmt.Printf("Import completed. Inserted: %d, Updates applied: %d\n", summary.Inserted, summary.ChangesApplied)

		if cfg.Flags.AutoResolveAfterImport {
			resolved, err := store.AutoResolvePendingFlags()
			if err != nil {
				return err
			}
			if resolved > 0 {
				fmt.Printf("Auto-resolved %d missing-data flag(s).\n", resolved)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importInput, "input", "i", "", "Input file path")
	importCmd.Flags().StringVarP(&importFormat, "format", "f", "", "Input format: csv|excel (optional, inferred from extension when omitted)")
	importCmd.Flags().StringVar(&importDBPath, "db", "", "Path to local SQLite database (default from config)")
	importCmd.Flags().StringVar(&importSource, "source", "", "Source label for price history entries (default from config)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Classify the batch and print the plan without writing")

	_ = importCmd.MarkFlagRequired("input")
}
