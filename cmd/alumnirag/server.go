package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/alumnirag/internal/api"
	"github.com/kalambet/alumnirag/internal/config"
	"github.com/kalambet/alumnirag/internal/proxy"
	"github.com/kalambet/alumnirag/internal/retrieval"
	"github.com/kalambet/alumnirag/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the alumnirag HTTP server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running alumnirag server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server, backend and index status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context(), cmd.OutOrStdout())
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "alumnirag.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "alumnirag version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(os.Stderr, cfg.Log.Level)

	pidPath := pidFilePath(cfg.Storage.DataDir)
	probe := &http.Client{Timeout: 2 * time.Second}
	if resp, err := probe.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	if cfg.Server.Token == "" {
		slog.Warn("server.token is not set; /chat accepts unauthenticated requests")
	}

	servers := []*http.Server{{
		Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port),
		Handler:           api.NewChatHandler(a.controller, cfg.Server.Token),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}}

	if cfg.Server.MCPPort > 0 {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Turns:    a.controller,
			Searcher: a.gateway,
			Runs:     a.store,
			Version:  version,
		})
		mux := http.NewServeMux()
		mux.Handle("/mcp", server.NewStreamableHTTPServer(mcpSrv))
		servers = append(servers, &http.Server{
			Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Server.MCPPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		})
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func() {
			slog.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("server %s: %w", srv.Addr, err)
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutdown", "addr", srv.Addr, "error", err)
		}
	}
	return serveErr
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("alumnirag is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop alumnirag (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to alumnirag (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context, w io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	probe := newAPIClient(cfg)
	probe.httpClient = &http.Client{Timeout: 2 * time.Second}
	if probe.healthy(ctx) {
		printStatus("Server", "running on port %d", cfg.Server.Port)
	} else {
		printStatus("Server", "stopped")
	}

	if cfg.LLM.Backend == "ollama" || cfg.Embedding.Backend == "ollama" {
		resp, err := probe.httpClient.Get(cfg.Ollama.BaseURL + "/api/version")
		if err != nil {
			printStatus("Ollama", "not running")
		} else {
			resp.Body.Close()
			printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
		}
	}

	if cfg.LLM.Backend == "openrouter" {
		models, err := proxy.NewClientWithBaseURL(cfg.OpenRouter.APIKey, cfg.OpenRouter.BaseURL).ListModels(ctx)
		if err != nil {
			printStatus("OpenRouter", "unreachable: %v", err)
		} else {
			printStatus("OpenRouter", "reachable, %d models", len(models))
		}
	}

	printStatus("LLM", "%s (%s)", cfg.LLM.Backend, cfg.ChatModel())
	printStatus("Embeddings", "%s (%s)", cfg.Embedding.Backend, cfg.EmbedModel())

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		printStatus("Storage", "error: %v", err)
		return nil
	}
	defer store.Close()

	if versions, err := store.AppliedMigrations(); err == nil && len(versions) > 0 {
		printStatus("Schema", "v%d", versions[len(versions)-1])
	}

	index := newIndex(cfg, store)
	printStatus("Index", "%s", describeIndex(ctx, index, cfg.Index.Backend, cfg.Index.Collection))

	last, err := store.LatestIngestRun(ctx, cfg.Index.Collection)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		printStatus("Last ingest", "never")
	case err != nil:
		printStatus("Last ingest", "error: %v", err)
	default:
		printStatus("Last ingest", "%s", describeRun(last))
	}

	runs, err := store.ListIngestRuns(ctx, 5)
	if err != nil {
		printStatus("Ingest runs", "error: %v", err)
	} else {
		printStatus("Ingest runs", "%d recent", len(runs))
		for _, r := range runs {
			fmt.Fprintf(w, "    %s\n", describeRun(r))
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

// describeIndex summarizes one collection of the index.
func describeIndex(ctx context.Context, index retrieval.Index, backend, collection string) string {
	n, err := index.Count(ctx, collection)
	switch {
	case errors.Is(err, retrieval.ErrCollectionNotFound):
		return fmt.Sprintf("%s/%s not ingested", backend, collection)
	case err != nil:
		return fmt.Sprintf("%s/%s unavailable: %v", backend, collection, err)
	default:
		return fmt.Sprintf("%s/%s, %d chunks", backend, collection, n)
	}
}

// describeRun renders one ingestion run on a single line.
func describeRun(r storage.IngestRun) string {
	line := fmt.Sprintf("%s  %-9s %s  profiles=%d chunks=%d skipped=%d",
		r.StartedAt.Local().Format("2006-01-02 15:04"), r.Status, r.Collection, r.Profiles, r.Chunks, r.Skipped)
	if r.Error != "" {
		line += "  error=" + r.Error
	}
	return line
}
