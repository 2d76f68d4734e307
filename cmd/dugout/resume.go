package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dugoutlabs/dugout/internal/cli"
	"github.com/dugoutlabs/dugout/internal/tui"
)

// resumeCmd represents the resume command
var resumeCmd = &cobra.Command{
	Use:   "resume <session-id> <value>",
	Short: "Answer a session's pending interrupt",
	Long: `Delivers a value to a paused session: a player ID for disambiguation, or
true/false for approvals. The value is parsed as JSON when possible and
passed as a plain string otherwise.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger, err := setup(cmd)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		agent, closer, err := cli.BuildAgent(cmd.Context(), cfg, logger)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer closer()

		sessionID := args[0]
		var value any
		if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
			value = args[1]
		}

		res, err := agent.Resume(cmd.Context(), sessionID, value)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		if res.Interrupt != nil {
			fmt.Println("Session paused again:")
			fmt.Println(res.Interrupt.Prompt)
			for _, c := range res.Interrupt.Candidates {
				fmt.Printf("  %d: %s (%s)\n", c.ID, c.Name, c.Team)
			}
			return
		}

		render := tui.NewRenderer()
		out, err := render(res.Answer)
		if err != nil {
			out = res.Answer
		}
		fmt.Println(out)
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}
