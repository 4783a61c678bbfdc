package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	favour "github.com/nuomicici/astrbot-plugin-Favour-Ultra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List affinity records",
	Long: `List affinity records in the selected scope, or across every
scope with --all.

Example:
  favourctl list --scope group-42
  favourctl list --all --limit 100`,
	RunE: runList,
}

var (
	listAll   bool
	listLimit int
)

func init() {
	listCmd.Flags().BoolVar(&listAll, "all", false, "List records across every scope")
	listCmd.Flags().IntVar(&listLimit, "limit", favour.DefaultListPageSize, "Maximum records to show with --all")
}

func runList(cmd *cobra.Command, args []string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	var (
		records []favour.AffinityRecord
		total   int
	)
	if listAll {
		records, total, err = store.ListAll(listLimit)
	} else {
		records, err = store.List(targetScope())
		total = len(records)
	}
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No records.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCOPE\tUSER\tAFFINITY\tRELATIONSHIP\tEXCLUSIVE")
	for _, rec := range records {
		scope := rec.ScopeID
		if scope == favour.GlobalScope {
			scope = "(global)"
		}
		unique := ""
		if rec.IsUnique {
			unique = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", scope, rec.UserID, rec.Value, rec.Relationship, unique)
	}
	w.Flush()

	if total > len(records) {
		fmt.Printf("\nShowing %d of %d records.\n", len(records), total)
	}
	return nil
}
