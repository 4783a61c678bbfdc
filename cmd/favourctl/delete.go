package main

import (
	"fmt"

	"github.com/spf13/cobra"

	favour "github.com/nuomicici/astrbot-plugin-Favour-Ultra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <user-id>",
	Short: "Delete a user's affinity record",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear every record in the selected scope (or everywhere with --all)",
	Long: `Clear every affinity record in the selected scope, or across every
scope with --all. A timestamped backup is written first when backups are
enabled; a failed backup aborts the clear.

Example:
  favourctl clear --scope group-42 --yes
  favourctl clear --all --yes`,
	RunE: runClear,
}

var (
	clearYes bool
	clearAll bool
)

func init() {
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "Skip the confirmation prompt")
	clearCmd.Flags().BoolVar(&clearAll, "all", false, "Clear every scope, not just the selected one")
}

func runDelete(cmd *cobra.Command, args []string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(args[0], targetScope()); err == favour.ErrNotFound {
		return fmt.Errorf("no record for user %s", args[0])
	} else if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	fmt.Printf("Deleted record for user %s\n", args[0])
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	if !clearYes {
		return fmt.Errorf("this deletes affinity data; re-run with --yes to confirm")
	}

	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	var (
		n      int
		backup string
	)
	if clearAll {
		n, backup, err = store.Wipe()
	} else {
		n, backup, err = store.ClearScope(targetScope())
	}
	if err != nil {
		return fmt.Errorf("clear records: %w", err)
	}

	fmt.Printf("Cleared %d records\n", n)
	if backup != "" {
		fmt.Printf("Backup written to %s\n", backup)
	}
	return nil
}
