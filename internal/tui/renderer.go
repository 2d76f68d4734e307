package tui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// NewRenderer returns a function that renders markdown for the terminal.
// When stdout is not a TTY the markdown passes through unchanged so output
// stays pipe-friendly.
func NewRenderer() func(string) (string, error) {
	passthrough := func(markdown string) (string, error) {
		return markdown, nil
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return passthrough
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return passthrough
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}
