package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/alumnirag/internal/config"
	"github.com/kalambet/alumnirag/internal/ingest"
	"github.com/kalambet/alumnirag/internal/pipeline"
	"github.com/kalambet/alumnirag/internal/retrieval"
	"github.com/kalambet/alumnirag/internal/storage"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client(token string) *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      token,
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type constEmbedder struct{}

func (constEmbedder) Embed(ctx context.Context, model, text string) ([]float32, error) {
	return []float32{1, float32(len(text) % 7), 0.5}, nil
}

// --- client ---

func TestAPIClientChat(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /chat": `{"response":"{\"alumni\":[]}","profiles":[{"id":"https://www.linkedin.com/in/ann","name":"Ann","profile_pic":"","headline":null,"summary":"s","linkedin_url":"https://www.linkedin.com/in/ann"}]}`,
	})

	resp, err := ts.client("test-token").chat(ctx, "who works at Acme?")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if len(resp.Profiles) != 1 || resp.Profiles[0].Name != "Ann" {
		t.Errorf("profiles = %+v", resp.Profiles)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Method != http.MethodPost || r.Path != "/chat" {
		t.Errorf("request = %s %s, want POST /chat", r.Method, r.Path)
	}
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["message"] != "who works at Acme?" {
		t.Errorf("body.message = %q", body["message"])
	}
}

func TestAPIClient_NoTokenOmitsHeader(t *testing.T) {
	ts := newTestServer(t, map[string]string{"GET /health": `{"status":"ok"}`})

	if !ts.client("").healthy(ctx) {
		t.Fatal("healthy = false, want true")
	}
	if got := ts.requests[0].Auth; got != "" {
		t.Errorf("auth = %q, want no header", got)
	}
}

func TestAPIClient_Unreachable(t *testing.T) {
	c := &apiClient{baseURL: "http://127.0.0.1:1", httpClient: &http.Client{Timeout: time.Second}}
	if c.healthy(ctx) {
		t.Error("healthy = true for unreachable server")
	}
	_, err := c.chat(ctx, "q")
	if err == nil || !strings.Contains(err.Error(), "server not reachable") {
		t.Errorf("err = %v, want server not reachable", err)
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusUnauthorized,
		Body:       io.NopCloser(strings.NewReader(`{"error":{"message":"unauthorized"}}` + "\n")),
	}
	var out map[string]any
	err := decodeJSON(resp, &out)
	if err == nil {
		t.Fatal("expected error for 401")
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "unauthorized") {
		t.Errorf("error = %q", err.Error())
	}
}

// --- output ---

func TestPrintResponse(t *testing.T) {
	noColor = true
	defer func() { noColor = false }()

	headline := "Data Analyst at Acme"
	link := "https://www.linkedin.com/in/ann"
	var buf bytes.Buffer
	printResponse(&buf, pipeline.Response{
		Response: `{"alumni":[{"id":"https://www.linkedin.com/in/ann","name":"Ann","pic":"","summary":"Data Analyst at Acme since 2020"}]}`,
		Profiles: []pipeline.Profile{{ID: link, Name: "Ann", Headline: &headline, LinkedInURL: &link}},
	})

	out := buf.String()
	for _, want := range []string{
		"• Ann: Data Analyst at Acme since 2020",
		"Profiles (1)",
		"1. Ann (Data Analyst at Acme)",
		link,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintResponse_DirectReply(t *testing.T) {
	noColor = true
	defer func() { noColor = false }()

	var buf bytes.Buffer
	printResponse(&buf, pipeline.Response{Response: "Please name a company or a role.", Profiles: []pipeline.Profile{}})
	if got := strings.TrimSpace(buf.String()); got != "Please name a company or a role." {
		t.Errorf("output = %q", got)
	}

	buf.Reset()
	printResponse(&buf, pipeline.Response{Response: `{"alumni":[]}`})
	if got := strings.TrimSpace(buf.String()); got != "No matching alumni." {
		t.Errorf("output = %q", got)
	}
}

// --- ingest ---

const profilesJSON = `[
	{"id": "https://www.linkedin.com/in/ann", "name": "Ann", "headline": "Analyst",
	 "experiences": [{"title": "Data Analyst", "company": "Acme", "start_date": "Jan 2020", "end_date": "Present"}],
	 "educations": [{"school": "GT", "degree": "BS"}]},
	"not a profile",
	{"id": "https://www.linkedin.com/in/bob", "name": "Bob"}
]`

func TestIngestFile(t *testing.T) {
	store := openTestStore(t)
	index := retrieval.NewSQLiteIndex(store.DB())
	in := ingest.New(ingest.Config{
		Index:      index,
		Embedder:   retrieval.NewEmbedder(constEmbedder{}, "embed"),
		Runs:       store,
		Collection: "alumni",
		Backend:    "sqlite",
	})

	path := filepath.Join(t.TempDir(), "profiles.json")
	if err := os.WriteFile(path, []byte(profilesJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	rep, err := ingestFile(ctx, in, path, false, &out)
	if err != nil {
		t.Fatalf("ingestFile: %v", err)
	}
	if rep.Status != storage.RunCompleted || rep.Profiles != 2 || rep.Chunks != 4 {
		t.Errorf("report = %+v, want completed with 2 profiles and 4 chunks", rep)
	}
	if len(rep.Malformed) != 1 {
		t.Errorf("malformed = %d, want 1", len(rep.Malformed))
	}
	if !strings.Contains(out.String(), rep.RunID) {
		t.Errorf("output %q does not mention run id", out.String())
	}
	if got := describeIndex(ctx, index, "sqlite", "alumni"); got != "sqlite/alumni, 4 chunks" {
		t.Errorf("describeIndex = %q", got)
	}

	rep, err = ingestFile(ctx, in, path, false, &out)
	if err != nil {
		t.Fatalf("second ingestFile: %v", err)
	}
	if rep.Status != storage.RunSkipped {
		t.Errorf("second run status = %q, want skipped", rep.Status)
	}

	runs, err := store.ListIngestRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListIngestRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("runs = %d, want 2", len(runs))
	}
}

func TestIngestFile_MissingFile(t *testing.T) {
	in := ingest.New(ingest.Config{})
	_, err := ingestFile(ctx, in, filepath.Join(t.TempDir(), "absent.json"), false, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "reading") {
		t.Errorf("err = %v, want read error", err)
	}
}

func TestIngestCommand_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"ingest"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing file argument")
	}
	if !strings.Contains(err.Error(), "accepts 1 arg") {
		t.Errorf("error = %q, want arg count error", err.Error())
	}
}

// --- status ---

func TestDescribeIndex_NotIngested(t *testing.T) {
	index := retrieval.NewSQLiteIndex(openTestStore(t).DB())
	if got := describeIndex(ctx, index, "sqlite", "alumni"); got != "sqlite/alumni not ingested" {
		t.Errorf("describeIndex = %q", got)
	}
}

func TestDescribeRun(t *testing.T) {
	line := describeRun(storage.IngestRun{
		Collection: "alumni",
		Status:     storage.RunFailed,
		Profiles:   3,
		Skipped:    1,
		Error:      "embedding: connection refused",
		StartedAt:  time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	})
	for _, want := range []string{"failed", "alumni", "profiles=3", "chunks=0", "skipped=1", "error=embedding: connection refused"} {
		if !strings.Contains(line, want) {
			t.Errorf("describeRun = %q, missing %q", line, want)
		}
	}
}

func TestNewIndex(t *testing.T) {
	store := openTestStore(t)

	cfg := config.Config{Index: config.IndexConfig{Backend: "sqlite"}}
	if _, ok := newIndex(cfg, store).(*retrieval.SQLiteIndex); !ok {
		t.Error("sqlite backend did not select SQLiteIndex")
	}

	cfg.Index.Backend = "qdrant"
	cfg.Qdrant.URL = "http://localhost:6333"
	if _, ok := newIndex(cfg, store).(*retrieval.QdrantIndex); !ok {
		t.Error("qdrant backend did not select QdrantIndex")
	}
}

// --- config ---

func TestConfigSetCommand(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("ALUMNIRAG_RETRIEVAL_TOP_K", "")
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"config", "set", "retrieval.top_k", "9"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("config set: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Retrieval.TopK != 9 {
		t.Errorf("Retrieval.TopK = %d, want 9", cfg.Retrieval.TopK)
	}

	rootCmd.SetArgs([]string{"config", "set", "openrouter.api_key", "sk-secret"})
	if err := rootCmd.Execute(); err == nil {
		t.Error("expected error setting a secret via config")
	}
}

func TestLoadDotEnv(t *testing.T) {
	const key = "ALUMNIRAG_DOTENV_PROBE"
	t.Setenv(key, "")
	os.Unsetenv(key)

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(key+"=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	loadDotEnv(path)
	if got := os.Getenv(key); got != "from-file" {
		t.Errorf("%s = %q, want from-file", key, got)
	}

	loadDotEnv(filepath.Join(t.TempDir(), "missing.env"))
}
