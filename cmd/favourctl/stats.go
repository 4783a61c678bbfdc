package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats()
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	fmt.Println("Affinity Store Statistics")
	fmt.Println("-------------------------")
	fmt.Printf("Records:        %d\n", stats.Records)
	fmt.Printf("Scopes:         %d\n", stats.Scopes)
	fmt.Printf("Schema version: %s\n", stats.SchemaVersion)
	fmt.Printf("Database:       %s\n", stats.Path)
	return nil
}
