package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dugoutlabs/dugout/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of dugout",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dugout version %s\n", strings.TrimSpace(version.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
