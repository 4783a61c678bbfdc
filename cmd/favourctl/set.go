package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var setCmd = &cobra.Command{
	Use:   "set <user-id> <value>",
	Short: "Set a user's affinity value",
	Long: `Set a user's affinity value in the selected scope, creating the
record when missing. The value must lie inside the configured bounds.

Example:
  favourctl set 10001 50
  favourctl set 10001 -20 --scope group-42`,
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

var relationshipCmd = &cobra.Command{
	Use:   "relationship <user-id> [name]",
	Short: "Set or clear a user's relationship",
	Long: `Set a user's relationship in the selected scope, or clear it
with --clear.

Example:
  favourctl relationship 10001 friend
  favourctl relationship 10001 wife --unique
  favourctl relationship 10001 --clear`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRelationship,
}

var (
	relUnique bool
	relClear  bool
)

func init() {
	relationshipCmd.Flags().BoolVar(&relUnique, "unique", false, "Mark the relationship exclusive")
	relationshipCmd.Flags().BoolVar(&relClear, "clear", false, "Clear the relationship instead of setting it")
}

func runSet(cmd *cobra.Command, args []string) error {
	value, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid value %q", args[1])
	}

	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.SetValue(args[0], targetScope(), value)
	if err != nil {
		return fmt.Errorf("set value: %w", err)
	}
	fmt.Printf("Set user %s to %d\n", rec.UserID, rec.Value)
	return nil
}

func runRelationship(cmd *cobra.Command, args []string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if relClear {
		rec, err := store.ClearRelationship(args[0], targetScope())
		if err != nil {
			return fmt.Errorf("clear relationship: %w", err)
		}
		fmt.Printf("Cleared user %s's relationship\n", rec.UserID)
		return nil
	}

	if len(args) < 2 {
		return fmt.Errorf("relationship name required (or pass --clear)")
	}
	rec, err := store.SetRelationship(args[0], targetScope(), args[1], relUnique)
	if err != nil {
		return fmt.Errorf("set relationship: %w", err)
	}
	label := ""
	if rec.IsUnique {
		label = " (exclusive)"
	}
	fmt.Printf("Set user %s's relationship to %q%s\n", rec.UserID, rec.Relationship, label)
	return nil
}
