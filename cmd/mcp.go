package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/joescharf/civic/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an MCP client query civic for issues, zones and officials.
Configure it with:

  {
    "mcpServers": {
      "civic": { "command": "civic", "args": ["mcp"] }
    }
  }

Tools run as the --as user, or as the local operator.

Available tools: civic_classify_zone, civic_list_issues, civic_get_issue,
civic_update_issue_status, civic_zone_stats, civic_list_officials,
civic_suggest_category`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		actor, err := a.actor(ctx)
		if err != nil {
			return err
		}
		return mcp.NewServer(a.issues, a.accounts, a.suggester, actor).ServeStdio(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
