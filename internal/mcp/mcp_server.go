// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/shellcache/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the shellcache MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.CacheManager) *server.MCPServer {
	s := server.NewMCPServer(
		"Shellcache Inspection Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
	}

	// --- 1. Tool: cache_status ---
	s.AddTool(mcp.NewTool("cache_status",
		mcp.WithDescription("Report backend, entry counts and sizes of the offline cache store."),
	), h.handleCacheStatus)

	// --- 2. Tool: list_partitions ---
	s.AddTool(mcp.NewTool("list_partitions",
		mcp.WithDescription("List cache partitions in creation order with their kind and version."),
		mcp.WithString("kind", mcp.Description("Only list partitions of this kind."), mcp.Enum("precache", "runtime", "unknown")),
	), h.handleListPartitions)

	// --- 3. Tool: match_entry ---
	s.AddTool(mcp.NewTool("match_entry",
		mcp.WithDescription("Look up the stored response for a site path."),
		mcp.WithString("path", mcp.Description("Site-relative path including any query string, e.g. '/index.html'."), mcp.Required()),
		mcp.WithString("method", mcp.Description("Request method. Defaults to GET.")),
		mcp.WithString("partition", mcp.Description("Search only this partition. Defaults to all, in creation order.")),
		mcp.WithBoolean("include_body", mcp.Description("Include a preview of a textual body.")),
	), h.handleMatchEntry)

	// --- 4. Tool: clear_cache ---
	s.AddTool(mcp.NewTool("clear_cache",
		mcp.WithDescription("Delete every cache partition. The site is refetched on the next install or miss."),
		mcp.WithBoolean("confirm", mcp.Description("Must be true to delete anything."), mcp.Required()),
	), h.handleClearCache)

	return s
}

// StartMCPServer starts the shellcache MCP server over stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.CacheManager) error {
	s := NewMCPServer(baseCfg, mgr)
	return server.ServeStdio(s)
}
