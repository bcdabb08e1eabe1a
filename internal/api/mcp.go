package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/alumnirag/internal/pipeline"
	"github.com/kalambet/alumnirag/internal/retrieval"
	"github.com/kalambet/alumnirag/internal/storage"
)

// Searcher returns the raw retrieval payload for a query.
type Searcher interface {
	Retrieve(ctx context.Context, query string) (retrieval.Result, error)
}

// RunLister lists recorded ingestion runs.
type RunLister interface {
	ListIngestRuns(ctx context.Context, limit int) ([]storage.IngestRun, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Turns    TurnRunner
	Searcher Searcher
	Runs     RunLister // optional; if nil, the ingest-runs resource is not registered
	Version  string
}

// NewMCPServer creates an MCP server exposing the alumni tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"alumnirag",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("alumnirag answers questions about alumni: who works where, in which role, location or period."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_alumni",
			mcp.WithDescription("Answer a question about alumni. Returns the answer and the matching profiles as JSON."),
			mcp.WithString("question", mcp.Description("Question, e.g. 'Who currently works at Acme as a Data Analyst?'"), mcp.Required()),
		),
		mcpAskAlumni(deps),
	)

	s.AddTool(
		mcp.NewTool("search_alumni",
			mcp.WithDescription("Search the alumni index and return the ranked profile chunks as text, without generating an answer."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
		),
		mcpSearchAlumni(deps),
	)

	if deps.Runs != nil {
		s.AddResource(
			mcp.NewResource(
				"alumni://ingest-runs",
				"Ingestion Runs",
				mcp.WithResourceDescription("Last 10 ingestion runs"),
				mcp.WithMIMEType("application/json"),
			),
			mcpResourceIngestRuns(deps),
		)
	}

	return s
}

func mcpAskAlumni(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil || question == "" {
			return mcpError("question is required"), nil
		}

		turn, err := deps.Turns.Run(ctx, question, nil)
		if err != nil {
			return mcpError(fmt.Sprintf("answering failed: %v", err)), nil
		}

		b, err := json.Marshal(pipeline.Assemble(turn, deps.Turns.Filter()))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal response: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSearchAlumni(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil || query == "" {
			return mcpError("query is required"), nil
		}

		res, err := deps.Searcher.Retrieve(ctx, query)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcpText(res.Payload), nil
	}
}

func mcpResourceIngestRuns(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		runs, err := deps.Runs.ListIngestRuns(ctx, 10)
		if err != nil {
			return nil, fmt.Errorf("failed to list ingest runs: %w", err)
		}

		type runSummary struct {
			ID         string `json:"id"`
			Collection string `json:"collection"`
			Status     string `json:"status"`
			Profiles   int    `json:"profiles"`
			Chunks     int    `json:"chunks"`
			Skipped    int    `json:"skipped"`
			StartedAt  string `json:"started_at"`
		}

		summaries := make([]runSummary, len(runs))
		for i, r := range runs {
			summaries[i] = runSummary{
				ID:         r.ID,
				Collection: r.Collection,
				Status:     r.Status,
				Profiles:   r.Profiles,
				Chunks:     r.Chunks,
				Skipped:    r.Skipped,
				StartedAt:  r.StartedAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal ingest runs: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
