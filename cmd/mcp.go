package cmd

import (
	"github.com/huangsam/shellcache/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the shellcache MCP server",
	Long: `Launch an MCP server over stdio that lets AI agents inspect the cache store.

Tools: cache_status, list_partitions, match_entry, clear_cache.`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, cfg, cacheManager)
	},
}
