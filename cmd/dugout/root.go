package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dugoutlabs/dugout/internal/config"
	"github.com/dugoutlabs/dugout/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "dugout",
	Short: "Dugout is a checkpointed baseball question-answering agent",
	Long: `Dugout routes natural-language baseball questions through stats lookups,
grounded document search, and transaction history, pausing for human input
whenever a player is ambiguous or a sensitive lookup needs approval.
Every step is checkpointed, so a paused conversation survives a restart.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}

// setup loads configuration from the environment and builds the application
// logger, honoring the --debug flag.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	level := logging.ParseLevel(cfg.LogLevel)
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = slog.LevelDebug
	}

	return cfg, logging.New(level), nil
}
