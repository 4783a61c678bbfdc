package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export all affinity data as JSON",
	Long: `Export every affinity record as JSON, to a file or to stdout.

Example:
  favourctl export backup.json
  favourctl export > backup.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	out := os.Stdout
	if len(args) == 1 {
		f, err := os.Create(args[0])
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := store.ExportJSON(context.Background(), out); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if len(args) == 1 {
		fmt.Fprintf(os.Stderr, "Exported to %s\n", args[0])
	}
	return nil
}
