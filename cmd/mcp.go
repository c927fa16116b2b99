package cmd

import (
	"github.com/spf13/cobra"

	"paypiece/internal/server"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP (Model Context Protocol) server on stdin/stdout",
	Long:  "Exposes every piece action as an MCP tool named <piece>_<action>. AI agents can discover and call them via the MCP protocol.",
	Args:  cobra.NoArgs,
	RunE:  serveMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func serveMCP(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.log.Sync()

	return server.NewMCPServer(a.engine, a.log).ServeStdio(cmd.Context())
}
