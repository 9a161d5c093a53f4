package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"panelbase/config"
	"panelbase/moderation"
	"panelbase/storage"
)

var flagsDBPath string

var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "Review and resolve data-quality flags",
	Long: `List, approve, and reject the moderation queue of data-quality flags:
user-submitted corrections, missing-data markers, parse failures, and
deletion recommendations.`,
	Example: `
  # List pending flags
  panelbase flags list

  # List everything, resolved included
  panelbase flags list --status ""

  # Approve a flag (applies suggested corrections or deletion)
  panelbase flags approve 4f8c... --note "verified against datasheet"

  # Reject a flag
  panelbase flags reject 4f8c... --note "values match the listing"

  # Close missing-data flags whose fields have since been filled
  panelbase flags auto-resolve
`,
}

var flagsListStatus string

var flagsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List flags, pending by default",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openFlagsStore()
		if err != nil {
			return err
		}
		defer store.Close()

		var status moderation.FlagStatus
		if raw := strings.TrimSpace(flagsListStatus); raw != "" {
			status, err = moderation.ParseFlagStatus(raw)
			if err != nil {
				return err
			}
		}

		flags, err := store.ListFlags(status)
		if err != nil {
			return err
		}
		if len(flags) == 0 {
			fmt.Println("No flags found.")
			return nil
		}

		for _, flag := range flags {
			fields := make([]string, 0, len(flag.Fields))
			for _, field := range flag.Fields {
				fields = append(fields, string(field))
			}
			line := fmt.Sprintf("%s  %-22s %-9s panel=%s", flag.ID, flag.Type, flag.Status, flag.PanelID)
			if len(fields) > 0 {
				line += " fields=" + strings.Join(fields, ",")
			}
			if flag.Comment != "" {
				line += fmt.Sprintf(" comment=%q", flag.Comment)
			}
			fmt.Println(line)
		}
		return nil
	},
}

var flagsApproveNote string

var flagsApproveCmd = &cobra.Command{
	Use:   "approve <flag-id>",
	Short: "Approve a pending flag and apply its side effects",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openFlagsStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.ApproveFlag(args[0], strings.TrimSpace(flagsApproveNote)); err != nil {
			return err
		}
		fmt.Printf("Flag %s approved.\n", args[0])
		return nil
	},
}

var flagsRejectNote string

var flagsRejectCmd = &cobra.Command{
	Use:   "reject <flag-id>",
	Short: "Reject a pending flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openFlagsStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.ResolveFlag(args[0], moderation.StatusRejected, strings.TrimSpace(flagsRejectNote)); err != nil {
			return err
		}
		fmt.Printf("Flag %s rejected.\n", args[0])
		return nil
	},
}

var flagsAutoResolveCmd = &cobra.Command{
	Use:   "auto-resolve",
	Short: "Close pending missing-data flags whose fields are now populated",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openFlagsStore()
		if err != nil {
			return err
		}
		defer store.Close()

		resolved, err := store.AutoResolvePendingFlags()
		if err != nil {
			return err
		}
		fmt.Printf("Auto-resolved %d flag(s).\n", resolved)
		return nil
	},
}

func openFlagsStore() (*storage.SQLiteStore, error) {
	cfg, err := config.LoadAndValidate()
	if err != nil {
		return nil, err
	}
	dbPath := cfg.Database.Path
	if strings.TrimSpace(flagsDBPath) != "" {
		dbPath = flagsDBPath
	}
	return storage.OpenSQLite(dbPath)
}

func init() {
	rootCmd.AddCommand(flagsCmd)
	flagsCmd.AddCommand(flagsListCmd)
	flagsCmd.AddCommand(flagsApproveCmd)
	flagsCmd.AddCommand(flagsRejectCmd)
	flagsCmd.AddCommand(flagsAutoResolveCmd)

	flagsCmd.PersistentFlags().StringVar(&flagsDBPath, "db", "", "Path to local SQLite database (default from config)")
	flagsListCmd.Flags().StringVar(&flagsListStatus, "status", "pending", "Filter by status: pending|approved|rejected (empty for all)")
	flagsApproveCmd.Flags().StringVar(&flagsApproveNote, "note", "", "Resolution note stored with the flag")
	flagsRejectCmd.Flags().StringVar(&flagsRejectNote, "note", "", "Resolution note stored with the flag")
}
