package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"panelbase/config"
	"panelbase/storage"
)

var (
	deleteDBPath string
	deleteReason string
)

var (
	deletePromptInput  io.Reader = os.Stdin
	deletePromptOutput io.Writer = os.Stdout
)

var deleteCmd = &cobra.Command{
	Use:   "delete <panel-id|asin>",
	Short: "Delete a panel from the catalog",
	Long: `Remove one panel together with its flags and price history. The panel can
be addressed by catalog id or by marketplace ASIN.

The panel's ASIN is recorded in a deletion audit so later imports of the same
product are skipped instead of re-created. An interactive security prompt
requires typing exactly "Y".`,
	Example: `
  # Delete a panel with a recorded reason
  panelbase delete 4f8c... --reason "discontinued listing"
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}
		dbPath := cfg.Database.Path
		if strings.TrimSpace(deleteDBPath) != "" {
			dbPath = deleteDBPath
		}

		store, err := storage.OpenSQLite(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		p, found, err := store.GetPanelByID(args[0])
		if err != nil {
			return err
		}
		if !found {
			// Allow deleting by marketplace ASIN as well.
			p, found, err = store.GetPanelByASIN(args[0])
			if err != nil {
				return err
			}
		}
		if !found {
			return fmt.Errorf("panel not found: %s", args[0])
		}

		confirmed, err := confirmDeletePrompt(deletePromptInput, deletePromptOutput, p.Name)
		if err != nil {
			return err
		}
		if !confirmed {
			return fmt.Errorf("delete aborted: confirmation was not 'Y'")
		}

		if err := store.DeletePanel(p.ID, strings.TrimSpace(deleteReason)); err != nil {
			return err
		}
		fmt.Printf("Deleted panel %q (%s)\n", p.Name, p.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)

	deleteCmd.Flags().StringVar(&deleteDBPath, "db", "", "Path to local SQLite database (default from config)")
	deleteCmd.Flags().StringVar(&deleteReason, "reason", "", "Reason stored in the deletion audit")
}

func confirmDeletePrompt(input io.Reader, output io.Writer, name string) (bool, error) {
	if input == nil {
		return false, fmt.Errorf("delete confirmation input is not available")
	}

	if output == nil {
		output = io.Discard
	}

	if _, err := fmt.Fprintf(output, "Delete panel %q? Type Y to confirm: ", name); err != nil {
		return false, fmt.Errorf("write delete confirmation prompt: %w", err)
	}

	line, err := bufio.NewReader(input).ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			line = strings.TrimSpace(line)
			return line == "Y", nil
		}
		return false, fmt.Errorf("read delete confirmation: %w", err)
	}
	return strings.TrimSpace(line) == "Y", nil
}
