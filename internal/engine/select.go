package engine

import (
	"context"
	"fmt"

	"github.com/kalambet/alumnirag/internal/proxy"
)

// SelectConfig names the backends to use for completions and embeddings.
type SelectConfig struct {
	LLMBackend       string // "ollama" or "openrouter"
	EmbeddingBackend string // "ollama" or "genai"
	OllamaBaseURL    string
	OpenRouterAPIKey string
	OpenRouterURL    string
	GenAIAPIKey      string
	GenAIModel       string
}

// Backends is the result of Select. Local is non-nil when any role is served
// by Ollama, so callers can check readiness and pull models.
type Backends struct {
	Chatter  Chatter
	Embedder Embedder
	Local    Engine
}

// Select builds the completion and embedding collaborators.
func Select(ctx context.Context, cfg SelectConfig) (Backends, error) {
	var b Backends
	local := func() Engine {
		if b.Local == nil {
			b.Local = NewOllamaEngine(cfg.OllamaBaseURL)
		}
		return b.Local
	}

	switch cfg.LLMBackend {
	case "", "ollama":
		b.Chatter = local()
	case "openrouter":
		if cfg.OpenRouterAPIKey == "" {
			return Backends{}, fmt.Errorf("llm backend openrouter requires openrouter.api_key")
		}
		client := proxy.NewClient(cfg.OpenRouterAPIKey)
		if cfg.OpenRouterURL != "" {
			client = proxy.NewClientWithBaseURL(cfg.OpenRouterAPIKey, cfg.OpenRouterURL)
		}
		b.Chatter = NewOpenRouterChatter(client)
	default:
		return Backends{}, fmt.Errorf("unknown llm backend %q", cfg.LLMBackend)
	}

	switch cfg.EmbeddingBackend {
	case "", "ollama":
		b.Embedder = local()
	case "genai":
		emb, err := NewGenAIEmbedder(ctx, cfg.GenAIAPIKey, cfg.GenAIModel)
		if err != nil {
			return Backends{}, err
		}
		b.Embedder = emb
	default:
		return Backends{}, fmt.Errorf("unknown embedding backend %q", cfg.EmbeddingBackend)
	}

	return b, nil
}
