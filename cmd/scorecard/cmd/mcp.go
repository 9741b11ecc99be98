package cmd

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
	"github.com/hugo-lorenzo-mato/scorecard/internal/mcptools"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve template tools over MCP on stdio",
	Long: `Run an MCP server on stdin/stdout exposing list_templates,
get_published_version, validate_template and evaluate_scores for one
organization. Logs go to stderr.`,
	RunE: runMCP,
}

var mcpCaller callerFlags

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCaller.register(mcpCmd, core.RoleMember)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	caller, err := mcpCaller.caller()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, os.Stderr, false)
	if err != nil {
		return err
	}
	defer a.Close()

	a.logger.Info("mcp server starting", "org", caller.OrganizationID, "role", string(caller.Role))
	return server.ServeStdio(mcptools.NewServer(a.service, caller, appVersion))
}
