package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dugoutlabs/dugout/internal/cli"
	mcpadapter "github.com/dugoutlabs/dugout/pkg/adapters/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the assistant as an MCP server over stdio, so AI agent hosts can
ask baseball questions and settle interrupts as tool calls.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger, err := setup(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		// Ensure logs don't corrupt JSON-RPC on Stdout.
		log.SetOutput(os.Stderr)
		slog.SetDefault(logger)

		agent, closer, err := cli.BuildAgent(cmd.Context(), cfg, logger)
		if err != nil {
			logger.Error("agent init failed", "err", err)
			os.Exit(1)
		}
		defer closer()

		logger.Info("starting MCP server (stdio)")
		if err := mcpadapter.NewServer(agent).ServeStdio(); err != nil {
			logger.Error("MCP server execution failed", "err", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
