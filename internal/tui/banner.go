package tui

import (
	"fmt"
	"strings"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner shown at the start of an
// interactive session.
func PrintBanner(version string) {
	p := termenv.ColorProfile()
	// Diamond-dirt gradient (amber into green).
	lines := []struct {
		text  string
		color string
	}{
		{`     _                         _   `, "#fbbf24"},
		{`  __| |_   _  __ _  ___  _   _| |_ `, "#facc15"},
		{` / _' | | | |/ _' |/ _ \| | | | __|`, "#a3e635"},
		{`| (_| | |_| | (_| | (_) | |_| | |_ `, "#4ade80"},
		{` \__,_|\__,_|\__, |\___/ \__,_|\__|`, "#34d399"},
		{`             |___/                 `, "#2dd4bf"},
	}

	fmt.Println()
	for _, l := range lines {
		fmt.Println(termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Println(termenv.String("  baseball answers, checkpointed  v" + strings.TrimSpace(version)).Faint())
	fmt.Println()
}
