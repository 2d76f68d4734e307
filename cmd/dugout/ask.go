package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dugoutlabs/dugout"
	"github.com/dugoutlabs/dugout/internal/cli"
	"github.com/dugoutlabs/dugout/internal/tui"
	"github.com/dugoutlabs/dugout/internal/version"
	"github.com/dugoutlabs/dugout/pkg/domain"
)

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask [query]",
	Short: "Ask a baseball question",
	Long: `Asks a question in an interactive session. With a query argument the answer
is printed and the command exits; without one an interactive prompt starts.
Pass --session to continue an earlier conversation.`,
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

		sessionID, _ := cmd.Flags().GetString("session")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		render := tui.NewRenderer()
		reader := bufio.NewReader(os.Stdin)

		if len(args) > 0 {
			if err := runQuery(cmd.Context(), agent, sessionID, strings.Join(args, " "), reader, render); err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}
			return
		}

		tui.PrintBanner(version.Version)
		fmt.Printf("session %s (type 'exit' to quit)\n\n", sessionID)

		for {
			fmt.Print("> ")
			line, err := reader.ReadString('\n')
			if err != nil {
				fmt.Println()
				return
			}
			query := strings.TrimSpace(line)
			if query == "" {
				continue
			}
			if query == "exit" || query == "quit" {
				fmt.Println("Bye!")
				return
			}
			if err := runQuery(cmd.Context(), agent, sessionID, query, reader, render); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringP("session", "s", "", "Session to continue (default: a fresh session)")
}

// runQuery submits one query and drives any interrupts to completion at the
// terminal before printing the answer.
func runQuery(ctx context.Context, agent *dugout.Agent, sessionID, query string, reader *bufio.Reader, render func(string) (string, error)) error {
	res, err := agent.Ask(ctx, sessionID, query)
	if err != nil {
		return err
	}

	for res.Interrupt != nil {
		value, err := promptInterrupt(reader, res.Interrupt)
		if err != nil {
			return err
		}
		next, err := agent.Resume(ctx, sessionID, value)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidResume) {
				fmt.Println("That didn't match any of the options. Try again.")
				continue
			}
			return err
		}
		res = next
	}

	out, err := render(res.Answer)
	if err != nil {
		out = res.Answer
	}
	fmt.Println(out)
	return nil
}

// promptInterrupt asks the user to settle a pending interrupt and returns the
// resume value in the shape the paused step expects.
func promptInterrupt(reader *bufio.Reader, intr *domain.Interrupt) (any, error) {
	fmt.Println()
	fmt.Println(intr.Prompt)

	switch intr.Kind {
	case domain.InterruptDisambiguation:
		for i, c := range intr.Candidates {
			if c.Team != "" {
				fmt.Printf("  %d. %s (%s)\n", i+1, c.Name, c.Team)
			} else {
				fmt.Printf("  %d. %s\n", i+1, c.Name)
			}
		}
		fmt.Print("choice> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		choice := strings.TrimSpace(line)
		if n, convErr := strconv.Atoi(choice); convErr == nil {
			if n >= 1 && n <= len(intr.Candidates) {
				return intr.Candidates[n-1].ID, nil
			}
			// Out of range: treat it as a raw player ID.
			return n, nil
		}
		return choice, nil

	case domain.InterruptApproval:
		if intr.Action != "" {
			fmt.Printf("  action: %s\n", intr.Action)
		}
		fmt.Print("approve? [y/N] ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil

	default:
		fmt.Print("reply> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		return strings.TrimSpace(line), nil
	}
}
