package main

import (
	"fmt"

	"github.com/spf13/cobra"

	favour "github.com/nuomicici/astrbot-plugin-Favour-Ultra"
)

var getCmd = &cobra.Command{
	Use:   "get <user-id>",
	Short: "Show a user's affinity record",
	Long: `Show a user's affinity record in the selected scope.

Example:
  favourctl get 10001
  favourctl get 10001 --scope group-42`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.Get(args[0], targetScope())
	if err == favour.ErrNotFound {
		return fmt.Errorf("no record for user %s", args[0])
	}
	if err != nil {
		return fmt.Errorf("get record: %w", err)
	}

	printRecord(rec)
	return nil
}

func printRecord(rec *favour.AffinityRecord) {
	scope := rec.ScopeID
	if scope == favour.GlobalScope {
		scope = "(global)"
	}
	fmt.Printf("User:         %s\n", rec.UserID)
	fmt.Printf("Scope:        %s\n", scope)
	fmt.Printf("Affinity:     %d\n", rec.Value)
	if rec.HasRelationship() {
		fmt.Printf("Relationship: %s", rec.Relationship)
		if rec.IsUnique {
			fmt.Printf(" (exclusive)")
		}
		fmt.Println()
	}
	fmt.Printf("Updated:      %s\n", rec.UpdatedAt.Format("2006-01-02 15:04:05"))
}
