package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// mockEmbedder implements engine.Embedder for testing.
type mockEmbedder struct {
	embedFn func(ctx context.Context, model string, text string) ([]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	return m.embedFn(ctx, model, text)
}

func makeVector(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(i+1) * 0.001
	}
	return v
}

func TestEmbed_ReturnsDimension(t *testing.T) {
	var gotModel string
	mock := &mockEmbedder{
		embedFn: func(_ context.Context, model string, _ string) ([]float32, error) {
			gotModel = model
			return makeVector(384), nil
		},
	}
	e := NewEmbedder(mock, "nomic-embed-text")

	vec, err := e.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 384 {
		t.Errorf("got %d dimensions, want 384", len(vec))
	}
	if gotModel != "nomic-embed-text" {
		t.Errorf("model = %q, want nomic-embed-text", gotModel)
	}
}

func TestEmbed_BackendError(t *testing.T) {
	mock := &mockEmbedder{
		embedFn: func(_ context.Context, _ string, _ string) ([]float32, error) {
			return nil, errors.New("connection refused")
		},
	}
	e := NewEmbedder(mock, "nomic-embed-text")

	if _, err := e.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestEmbed_EmptyVector(t *testing.T) {
	mock := &mockEmbedder{
		embedFn: func(_ context.Context, _ string, _ string) ([]float32, error) {
			return []float32{}, nil
		},
	}
	e := NewEmbedder(mock, "m")

	if _, err := e.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for empty vector")
	}
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	mock := &mockEmbedder{
		embedFn: func(_ context.Context, _ string, text string) ([]float32, error) {
			return []float32{float32(len(text))}, nil
		},
	}
	e := NewEmbedder(mock, "m")

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vecs))
	}
	for i, v := range vecs {
		if v[0] != float32(i+1) {
			t.Errorf("vecs[%d] = %v, want [%d]", i, v, i+1)
		}
	}
}

func TestEmbedBatch_BoundedConcurrency(t *testing.T) {
	var inflight, peak atomic.Int32
	var mu sync.Mutex
	mock := &mockEmbedder{
		embedFn: func(_ context.Context, _ string, _ string) ([]float32, error) {
			n := inflight.Add(1)
			mu.Lock()
			if n > peak.Load() {
				peak.Store(n)
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			inflight.Add(-1)
			return makeVector(8), nil
		},
	}
	e := NewEmbedder(mock, "m")

	texts := make([]string, 20)
	for i := range texts {
		texts[i] = "t"
	}
	if _, err := e.EmbedBatch(context.Background(), texts); err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if got := peak.Load(); got > embedConcurrency {
		t.Errorf("peak concurrency = %d, want <= %d", got, embedConcurrency)
	}
}

func TestEmbedBatch_BackendError(t *testing.T) {
	mock := &mockEmbedder{
		embedFn: func(_ context.Context, _ string, text string) ([]float32, error) {
			if text == "b" {
				return nil, errors.New("embedding failed")
			}
			return makeVector(384), nil
		},
	}
	e := NewEmbedder(mock, "nomic-embed-text")

	_, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "embedding failed") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	mock := &mockEmbedder{
		embedFn: func(_ context.Context, _ string, _ string) ([]float32, error) {
			t.Fatal("should not be called for empty input")
			return nil, nil
		},
	}
	e := NewEmbedder(mock, "nomic-embed-text")

	vecs, err := e.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if vecs != nil {
		t.Errorf("got %v, want nil", vecs)
	}
}
