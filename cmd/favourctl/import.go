package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	favour "github.com/nuomicici/astrbot-plugin-Favour-Ultra"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import affinity data from a JSON file",
	Long: `Import affinity data from a JSON file.

By default the file is expected in the export format produced by
"favourctl export". The legacy formats of earlier releases are supported
via --format:

  --format legacy         per-scope record list (userid/favour/session_id)
  --format legacy-global  flat {user_id: favour} map, imported globally

Imports are idempotent: re-running after a partial failure updates
records in place rather than duplicating them.

Example:
  favourctl import backup.json
  favourctl import old_favour_data.json --format legacy --scope group-42`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var importFormat string

func init() {
	importCmd.Flags().StringVar(&importFormat, "format", "export", "Input format: export, legacy, or legacy-global")
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	var result *favour.ImportResult
	switch importFormat {
	case "export":
		result, err = store.ImportJSON(ctx, f)
	case "legacy":
		result, err = store.ImportLegacyScoped(ctx, f, targetScope())
	case "legacy-global":
		result, err = store.ImportLegacyGlobal(ctx, f)
	default:
		return fmt.Errorf("unknown format %q", importFormat)
	}
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	fmt.Printf("Imported %d records (%d created, %d updated, %d skipped)\n",
		result.Total, result.Created, result.Updated, result.Skipped)
	for _, e := range result.Errors {
		fmt.Printf("  warning: %s\n", e)
	}
	return nil
}
