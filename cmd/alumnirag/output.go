package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kalambet/alumnirag/internal/composer"
	"github.com/kalambet/alumnirag/internal/pipeline"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

// printResponse renders an answered turn for the terminal: the answer first,
// then the backing profiles with their links.
func printResponse(w io.Writer, resp pipeline.Response) {
	ans, err := composer.ParseAnswer(resp.Response)
	switch {
	case err != nil:
		fmt.Fprintln(w, resp.Response)
	case len(ans.Alumni) == 0:
		fmt.Fprintln(w, "No matching alumni.")
	default:
		for _, a := range ans.Alumni {
			fmt.Fprintf(w, "• %s: %s\n", colorize(colorBold, a.Name), a.Summary)
		}
	}

	if len(resp.Profiles) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", colorize(colorBold, fmt.Sprintf("Profiles (%d)", len(resp.Profiles))))
	for i, p := range resp.Profiles {
		line := fmt.Sprintf("  %d. %s", i+1, p.Name)
		if p.Headline != nil {
			line += " (" + *p.Headline + ")"
		}
		fmt.Fprintln(w, line)
		if p.LinkedInURL != nil {
			fmt.Fprintf(w, "     %s\n", colorize(colorCyan, *p.LinkedInURL))
		}
	}
}
