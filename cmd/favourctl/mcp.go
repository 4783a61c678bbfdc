package main

import (
	"github.com/spf13/cobra"

	favourmcp "github.com/nuomicici/astrbot-plugin-Favour-Ultra/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for agent tooling integration",
	Long: `Start a Model Context Protocol (MCP) server over stdio.

This exposes the affinity store to local agent tooling for out-of-band
inspection and maintenance.

Environment variables:
  FAVOUR_DATA_DIR  Path to the data directory (default: ./data/favour)`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	server := favourmcp.NewServer(store, nil)
	return server.Run()
}
