package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/alumnirag/internal/api"
	"github.com/kalambet/alumnirag/internal/config"
	"github.com/kalambet/alumnirag/internal/ingest"
	"github.com/kalambet/alumnirag/internal/pipeline"
	"github.com/kalambet/alumnirag/internal/storage"
	"github.com/kalambet/alumnirag/internal/tui"
)

// loadConfig loads configuration and installs the logger on stderr.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	setupLogging(os.Stderr, cfg.Log.Level)
	return cfg, nil
}

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest <profiles.json>",
	Short: "Load a JSON array of alumni profiles into the index",
	Long: `Load a JSON array of alumni profiles into the index.

The run is skipped when the collection already exists. Use --reset to drop
and rebuild it.

Examples:
  alumnirag ingest ./profiles.json
  alumnirag ingest --reset ./profiles.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reset, _ := cmd.Flags().GetBool("reset")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg, os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()

		_, err = ingestFile(cmd.Context(), a.ingester(), args[0], reset, cmd.OutOrStdout())
		return err
	},
}

func init() {
	ingestCmd.Flags().Bool("reset", false, "drop the existing collection before loading")
}

// ingestFile runs one ingestion of the file at path and reports the outcome.
func ingestFile(ctx context.Context, in *ingest.Ingester, path string, reset bool, w io.Writer) (ingest.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ingest.Report{}, fmt.Errorf("reading %s: %w", path, err)
	}

	printStep("Ingesting %s", path)
	rep, err := in.Run(ctx, data, ingest.Options{Reset: reset, Source: filepath.Base(path)})
	for _, m := range rep.Malformed {
		printWarning("skipped profile %d: %s", m.Index, m.Reason)
	}
	if err != nil {
		return rep, err
	}

	switch rep.Status {
	case storage.RunSkipped:
		printWarning("collection already exists; nothing loaded (use --reset to rebuild)")
	default:
		printSuccess("Loaded %d profiles as %d chunks", rep.Profiles, rep.Chunks)
	}
	fmt.Fprintf(w, "run %s: %s\n", rep.RunID, rep.Status)
	return rep, nil
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about alumni",
	Long: `Ask a question about alumni.

By default the question is sent to a running server. With --local the
question is answered in-process.

Examples:
  alumnirag ask "Who currently works at Acme as a Data Analyst?"
  alumnirag ask --local --json "Who worked at Globex in 2021?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		local, _ := cmd.Flags().GetBool("local")
		asJSON, _ := cmd.Flags().GetBool("json")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var resp pipeline.Response
		if local {
			resp, err = askLocal(cmd.Context(), cfg, question)
		} else {
			resp, err = newAPIClient(cfg).chat(cmd.Context(), question)
		}
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}
		printResponse(cmd.OutOrStdout(), resp)
		return nil
	},
}

func init() {
	askCmd.Flags().Bool("local", false, "answer in-process instead of calling the server")
	askCmd.Flags().Bool("json", false, "print the raw JSON response")
}

func askLocal(ctx context.Context, cfg config.Config, question string) (pipeline.Response, error) {
	a, err := newApp(ctx, cfg, os.Stderr)
	if err != nil {
		return pipeline.Response{}, err
	}
	defer a.Close()

	turn, err := a.controller.Run(ctx, question, nil)
	if err != nil {
		return pipeline.Response{}, err
	}
	return pipeline.Assemble(turn, a.controller.Filter()), nil
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Print the raw retrieval payload for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg, os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.gateway.Retrieve(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Payload)
		return nil
	},
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive alumni chat in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		// The TUI owns the terminal, so logs go to a file in the data dir.
		if err := os.MkdirAll(cfg.Storage.DataDir, 0o700); err != nil {
			return fmt.Errorf("creating data dir: %w", err)
		}
		logFile, err := os.OpenFile(filepath.Join(cfg.Storage.DataDir, "chat.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("opening chat log: %w", err)
		}
		defer logFile.Close()
		setupLogging(logFile, cfg.Log.Level)

		a, err := newApp(cmd.Context(), cfg, os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()

		timeout := cfg.LLM.CanonicalizeTimeout + cfg.LLM.GenerateTimeout
		_, err = tea.NewProgram(tui.New(a.controller, timeout), tea.WithAltScreen()).Run()
		return err
	},
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the alumni tools over MCP on stdin/stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg, os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()

		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Turns:    a.controller,
			Searcher: a.gateway,
			Runs:     a.store,
			Version:  version,
		})
		err = server.NewStdioServer(mcpSrv).Listen(cmd.Context(), os.Stdin, os.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp stdio server: %w", err)
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value in the config file. Valid keys:\n  " +
		strings.Join(config.ValidKeys(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
