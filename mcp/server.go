// Package mcp exposes the affinity store over the Model Context Protocol so
// local agent tooling can inspect and adjust favour data out of band.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	favour "github.com/nuomicici/astrbot-plugin-Favour-Ultra"
)

// Server wraps the MCP server with affinity tools.
type Server struct {
	store     *favour.Store
	cold      *favour.ColdViolence
	mcpServer *server.MCPServer
}

// ToolResult represents the result of a tool call.
type ToolResult struct {
	Content string
	IsError bool
}

// ToolInfo represents a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates a new MCP server with affinity tools registered.
// cold may be nil when no pipeline is running; the cooldown tool then
// reports that no cooldowns exist.
func NewServer(store *favour.Store, cold *favour.ColdViolence) *Server {
	s := &Server{
		store: store,
		cold:  cold,
	}

	s.mcpServer = server.NewMCPServer(
		"favour",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools()
	return s
}

// Run starts the MCP server, reading from stdin and writing to stdout.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// HandleMessage processes a raw JSON-RPC message and returns a response.
// This is primarily for testing the MCP protocol layer.
func (s *Server) HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage {
	return s.mcpServer.HandleMessage(ctx, message)
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{Name: "favour_get", Description: "Get a user's affinity record in a scope"},
		{Name: "favour_set", Description: "Set a user's affinity value in a scope"},
		{Name: "favour_list", Description: "List affinity records in a scope"},
		{Name: "favour_delete", Description: "Delete a user's affinity record in a scope"},
		{Name: "favour_cooldown_clear", Description: "Lift an active cold-violence cooldown"},
		{Name: "favour_stats", Description: "Report store statistics"},
	}
}

// CallTool executes a tool by name with the given arguments.
// This is used for testing and direct invocation.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	switch name {
	case "favour_get":
		return s.handleGet(ctx, args)
	case "favour_set":
		return s.handleSet(ctx, args)
	case "favour_list":
		return s.handleList(ctx, args)
	case "favour_delete":
		return s.handleDelete(ctx, args)
	case "favour_cooldown_clear":
		return s.handleCooldownClear(ctx, args)
	case "favour_stats":
		return s.handleStats(ctx, args)
	default:
		return &ToolResult{Content: fmt.Sprintf("unknown tool: %s", name), IsError: true}, nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("favour_get",
		mcp.WithDescription("Get a user's affinity record in a scope. Omit scope for the global ledger."),
		mcp.WithString("user",
			mcp.Description("Platform user ID"),
			mcp.Required(),
		),
		mcp.WithString("scope",
			mcp.Description("Conversation scope ID (default: global)"),
		),
	), s.mcpHandleGet)

	s.mcpServer.AddTool(mcp.NewTool("favour_set",
		mcp.WithDescription("Set a user's affinity value in a scope, creating the record if needed. The value must lie inside the configured bounds."),
		mcp.WithString("user",
			mcp.Description("Platform user ID"),
			mcp.Required(),
		),
		mcp.WithNumber("value",
			mcp.Description("New affinity value"),
			mcp.Required(),
		),
		mcp.WithString("scope",
			mcp.Description("Conversation scope ID (default: global)"),
		),
	), s.mcpHandleSet)

	s.mcpServer.AddTool(mcp.NewTool("favour_list",
		mcp.WithDescription("List affinity records in a scope ordered by user ID."),
		mcp.WithString("scope",
			mcp.Description("Conversation scope ID (default: global)"),
		),
	), s.mcpHandleList)

	s.mcpServer.AddTool(mcp.NewTool("favour_delete",
		mcp.WithDescription("Delete a user's affinity record in a scope."),
		mcp.WithString("user",
			mcp.Description("Platform user ID"),
			mcp.Required(),
		),
		mcp.WithString("scope",
			mcp.Description("Conversation scope ID (default: global)"),
		),
	), s.mcpHandleDelete)

	s.mcpServer.AddTool(mcp.NewTool("favour_cooldown_clear",
		mcp.WithDescription("Lift an active cold-violence cooldown for a user."),
		mcp.WithString("user",
			mcp.Description("Platform user ID"),
			mcp.Required(),
		),
		mcp.WithString("scope",
			mcp.Description("Conversation scope ID (default: global)"),
		),
	), s.mcpHandleCooldownClear)

	s.mcpServer.AddTool(mcp.NewTool("favour_stats",
		mcp.WithDescription("Report record and scope counts plus the database path."),
	), s.mcpHandleStats)
}

// MCP handlers that wrap internal handlers

func (s *Server) mcpHandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.handleGet(ctx, req.GetArguments())
	if err != nil {
		return nil, err
	}
	return toMCPResult(result), nil
}

func (s *Server) mcpHandleSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.handleSet(ctx, req.GetArguments())
	if err != nil {
		return nil, err
	}
	return toMCPResult(result), nil
}

func (s *Server) mcpHandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.handleList(ctx, req.GetArguments())
	if err != nil {
		return nil, err
	}
	return toMCPResult(result), nil
}

func (s *Server) mcpHandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.handleDelete(ctx, req.GetArguments())
	if err != nil {
		return nil, err
	}
	return toMCPResult(result), nil
}

func (s *Server) mcpHandleCooldownClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.handleCooldownClear(ctx, req.GetArguments())
	if err != nil {
		return nil, err
	}
	return toMCPResult(result), nil
}

func (s *Server) mcpHandleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.handleStats(ctx, req.GetArguments())
	if err != nil {
		return nil, err
	}
	return toMCPResult(result), nil
}

func toMCPResult(r *ToolResult) *mcp.CallToolResult {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: r.Content,
			},
		},
	}
	if r.IsError {
		result.IsError = true
	}
	return result
}

// Internal handlers

func scopeArg(args map[string]any) string {
	if scope, ok := args["scope"].(string); ok {
		return scope
	}
	return favour.GlobalScope
}

func (s *Server) handleGet(ctx context.Context, args map[string]any) (*ToolResult, error) {
	user, ok := args["user"].(string)
	if !ok || user == "" {
		return &ToolResult{Content: "user is required", IsError: true}, nil
	}

	rec, err := s.store.Get(user, scopeArg(args))
	if err == favour.ErrNotFound {
		return &ToolResult{Content: fmt.Sprintf("no record for user %s", user), IsError: true}, nil
	}
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("get failed: %v", err), IsError: true}, nil
	}
	return &ToolResult{Content: formatRecord(rec)}, nil
}

func (s *Server) handleSet(ctx context.Context, args map[string]any) (*ToolResult, error) {
	user, ok := args["user"].(string)
	if !ok || user == "" {
		return &ToolResult{Content: "user is required", IsError: true}, nil
	}
	value, ok := args["value"].(float64)
	if !ok {
		return &ToolResult{Content: "value is required", IsError: true}, nil
	}

	rec, err := s.store.SetValue(user, scopeArg(args), int(value))
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("set failed: %v", err), IsError: true}, nil
	}
	return &ToolResult{Content: fmt.Sprintf("set user %s to %d\n%s", rec.UserID, rec.Value, formatRecord(rec))}, nil
}

func (s *Server) handleList(ctx context.Context, args map[string]any) (*ToolResult, error) {
	scope := scopeArg(args)
	records, err := s.store.List(scope)
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("list failed: %v", err), IsError: true}, nil
	}
	if len(records) == 0 {
		return &ToolResult{Content: "no records in scope"}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d records:\n\n", len(records))
	for i := range records {
		sb.WriteString(formatRecord(&records[i]))
		sb.WriteString("\n")
	}
	return &ToolResult{Content: sb.String()}, nil
}

func (s *Server) handleDelete(ctx context.Context, args map[string]any) (*ToolResult, error) {
	user, ok := args["user"].(string)
	if !ok || user == "" {
		return &ToolResult{Content: "user is required", IsError: true}, nil
	}

	err := s.store.Delete(user, scopeArg(args))
	if err == favour.ErrNotFound {
		return &ToolResult{Content: fmt.Sprintf("no record for user %s", user), IsError: true}, nil
	}
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("delete failed: %v", err), IsError: true}, nil
	}
	return &ToolResult{Content: fmt.Sprintf("deleted record for user %s", user)}, nil
}

func (s *Server) handleCooldownClear(ctx context.Context, args map[string]any) (*ToolResult, error) {
	user, ok := args["user"].(string)
	if !ok || user == "" {
		return &ToolResult{Content: "user is required", IsError: true}, nil
	}

	if s.cold == nil || !s.cold.Clear(user, scopeArg(args)) {
		return &ToolResult{Content: fmt.Sprintf("no active cooldown for user %s", user), IsError: true}, nil
	}
	return &ToolResult{Content: fmt.Sprintf("cooldown lifted for user %s", user)}, nil
}

func (s *Server) handleStats(ctx context.Context, args map[string]any) (*ToolResult, error) {
	stats, err := s.store.Stats()
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("stats failed: %v", err), IsError: true}, nil
	}
	return &ToolResult{Content: fmt.Sprintf(
		"records: %d\nscopes: %d\nschema: %s\npath: %s",
		stats.Records, stats.Scopes, stats.SchemaVersion, stats.Path,
	)}, nil
}

func formatRecord(rec *favour.AffinityRecord) string {
	scope := rec.ScopeID
	if scope == favour.GlobalScope {
		scope = "(global)"
	}
	line := fmt.Sprintf("user %s  scope %s  favour %d", rec.UserID, scope, rec.Value)
	if rec.HasRelationship() {
		line += fmt.Sprintf("  relationship %q", rec.Relationship)
		if rec.IsUnique {
			line += " (exclusive)"
		}
	}
	return line
}
