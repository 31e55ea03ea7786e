package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hackreview/judge/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an MCP-capable assistant query judge verdicts and queue reviews.
Configure it with:

  {
    "mcpServers": {
      "judge": { "command": "judge", "args": ["mcp"] }
    }
  }

Available tools: judge_list_projects, judge_get_verdict, judge_queue_review,
judge_list_prizes

Queued reviews run in whichever 'judge serve' worker is watching the same
database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		return mcp.NewServer(s, nil, buildVersion).ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
