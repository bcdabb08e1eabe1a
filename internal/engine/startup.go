package engine

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
)

// EnsureReady fails when e is unreachable and pulls every model in models
// that is not installed yet. Empty and repeated names are ignored. Progress
// goes to w.
func EnsureReady(ctx context.Context, e Engine, w io.Writer, models ...string) error {
	if !e.IsRunning(ctx) {
		return fmt.Errorf("ollama is not running; start it with: ollama serve")
	}

	installed, err := e.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("listing models: %w", err)
	}

	var seen []string
	for _, model := range models {
		if model == "" || slices.Contains(seen, model) {
			continue
		}
		seen = append(seen, model)

		if hasModel(installed, model) {
			fmt.Fprintf(w, "model %s: ready\n", model)
			continue
		}

		fmt.Fprintf(w, "model %s: pulling...\n", model)
		if err := e.PullModel(ctx, model, progressPrinter(w)); err != nil {
			return fmt.Errorf("pulling model %s: %w", model, err)
		}
		fmt.Fprintf(w, "model %s: ready\n", model)
	}
	return nil
}

// hasModel matches model against installed names with or without a tag.
func hasModel(installed []string, model string) bool {
	for _, name := range installed {
		if name == model || strings.HasPrefix(name, model+":") {
			return true
		}
	}
	return false
}

// progressPrinter writes a line per status change and per whole-percent
// step of a layer download.
func progressPrinter(w io.Writer) func(PullProgress) {
	lastStatus, lastPct := "", -1
	return func(p PullProgress) {
		pct := -1
		if p.Total > 0 {
			pct = int(p.Completed * 100 / p.Total)
		}
		if p.Status == lastStatus && pct == lastPct {
			return
		}
		lastStatus, lastPct = p.Status, pct
		if pct >= 0 {
			fmt.Fprintf(w, "  %s %d%%\n", p.Status, pct)
		} else {
			fmt.Fprintf(w, "  %s\n", p.Status)
		}
	}
}
