package engine

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

type mockEngine struct {
	isRunning bool
	models    map[string]bool
	pulled    []string
	pullErr   error
	progress  []PullProgress
}

func (m *mockEngine) Chat(_ context.Context, _ string, _ []Message, _ *Schema) (string, error) {
	return "", nil
}
func (m *mockEngine) Embed(_ context.Context, _ string, _ string) ([]float32, error) {
	return nil, nil
}
func (m *mockEngine) IsRunning(_ context.Context) bool { return m.isRunning }
func (m *mockEngine) ListModels(_ context.Context) ([]string, error) {
	var names []string
	for n := range m.models {
		names = append(names, n)
	}
	return names, nil
}
func (m *mockEngine) PullModel(_ context.Context, name string, cb func(PullProgress)) error {
	m.pulled = append(m.pulled, name)
	if m.pullErr != nil {
		return m.pullErr
	}
	for _, p := range m.progress {
		cb(p)
	}
	cb(PullProgress{Status: "success"})
	return nil
}

func TestEnsureReady_AllModelsPresent(t *testing.T) {
	m := &mockEngine{
		isRunning: true,
		models:    map[string]bool{"llama3.1": true, "nomic-embed-text": true},
	}
	err := EnsureReady(context.Background(), m, io.Discard, "llama3.1", "nomic-embed-text")
	if err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if len(m.pulled) != 0 {
		t.Errorf("expected no pulls, got %v", m.pulled)
	}
}

func TestEnsureReady_PullsMissing(t *testing.T) {
	m := &mockEngine{
		isRunning: true,
		models:    map[string]bool{"llama3.1": true},
	}
	err := EnsureReady(context.Background(), m, io.Discard, "llama3.1", "nomic-embed-text")
	if err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if len(m.pulled) != 1 || m.pulled[0] != "nomic-embed-text" {
		t.Errorf("expected pull of nomic-embed-text, got %v", m.pulled)
	}
}

func TestEnsureReady_EngineDown(t *testing.T) {
	m := &mockEngine{isRunning: false, models: map[string]bool{}}
	err := EnsureReady(context.Background(), m, io.Discard, "llama3.1", "nomic-embed-text")
	if err == nil {
		t.Fatal("expected error when engine is down")
	}
	if !strings.Contains(err.Error(), "ollama serve") {
		t.Errorf("error = %q, want start hint", err)
	}
}

func TestEnsureReady_SkipsEmptyModel(t *testing.T) {
	m := &mockEngine{isRunning: true, models: map[string]bool{}}
	var out strings.Builder
	if err := EnsureReady(context.Background(), m, &out, "", "nomic-embed-text"); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if len(m.pulled) != 1 || m.pulled[0] != "nomic-embed-text" {
		t.Errorf("pulled = %v", m.pulled)
	}
	if !strings.Contains(out.String(), "model nomic-embed-text: ready") {
		t.Errorf("output = %q", out.String())
	}
}

func TestEnsureReady_PullFailure(t *testing.T) {
	m := &mockEngine{isRunning: true, models: map[string]bool{}, pullErr: errors.New("disk full")}
	err := EnsureReady(context.Background(), m, io.Discard, "llama3.1", "")
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("err = %v, want pull failure", err)
	}
}

func TestEnsureReady_TaggedAndDuplicateNames(t *testing.T) {
	m := &mockEngine{isRunning: true, models: map[string]bool{"nomic-embed-text:latest": true}}
	if err := EnsureReady(context.Background(), m, io.Discard, "llama3.1", "llama3.1", "nomic-embed-text"); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if len(m.pulled) != 1 || m.pulled[0] != "llama3.1" {
		t.Errorf("pulled = %v, want [llama3.1]", m.pulled)
	}
}

func TestEnsureReady_ProgressCollapsesRepeats(t *testing.T) {
	m := &mockEngine{
		isRunning: true,
		models:    map[string]bool{},
		progress: []PullProgress{
			{Status: "pulling manifest"},
			{Status: "downloading", Total: 200, Completed: 1},
			{Status: "downloading", Total: 200, Completed: 2},
			{Status: "downloading", Total: 200, Completed: 100},
		},
	}
	var out strings.Builder
	if err := EnsureReady(context.Background(), m, &out, "llama3.1"); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	got := out.String()
	if n := strings.Count(got, "downloading 0%"); n != 1 {
		t.Errorf("\"downloading 0%%\" printed %d times:\n%s", n, got)
	}
	for _, want := range []string{"pulling manifest", "downloading 50%", "success", "model llama3.1: ready"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}
