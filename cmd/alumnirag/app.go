package main

import (
	"context"
	"fmt"
	"io"

	"github.com/kalambet/alumnirag/internal/composer"
	"github.com/kalambet/alumnirag/internal/config"
	"github.com/kalambet/alumnirag/internal/engine"
	"github.com/kalambet/alumnirag/internal/ingest"
	"github.com/kalambet/alumnirag/internal/intent"
	"github.com/kalambet/alumnirag/internal/pipeline"
	"github.com/kalambet/alumnirag/internal/reranking"
	"github.com/kalambet/alumnirag/internal/retrieval"
	"github.com/kalambet/alumnirag/internal/storage"
	"github.com/kalambet/alumnirag/internal/temporal"
)

// app holds the wired collaborators shared by the commands.
type app struct {
	cfg        config.Config
	store      *storage.Store
	index      retrieval.Index
	embedder   *retrieval.Embedder
	gateway    *retrieval.Gateway
	controller *pipeline.Controller
}

// newApp opens storage and builds the question-answering stack. When
// readyOut is non-nil, local Ollama models are checked and pulled with
// progress written to it.
func newApp(ctx context.Context, cfg config.Config, readyOut io.Writer) (*app, error) {
	backends, err := engine.Select(ctx, engine.SelectConfig{
		LLMBackend:       cfg.LLM.Backend,
		EmbeddingBackend: cfg.Embedding.Backend,
		OllamaBaseURL:    cfg.Ollama.BaseURL,
		OpenRouterAPIKey: cfg.OpenRouter.APIKey,
		OpenRouterURL:    cfg.OpenRouter.BaseURL,
		GenAIAPIKey:      cfg.GenAI.APIKey,
		GenAIModel:       cfg.GenAI.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("selecting backends: %w", err)
	}

	if backends.Local != nil && readyOut != nil {
		var chatModel, embedModel string
		if cfg.LLM.Backend == "ollama" {
			chatModel = cfg.Ollama.ChatModel
		}
		if cfg.Embedding.Backend == "ollama" {
			embedModel = cfg.Ollama.EmbedModel
		}
		if err := engine.EnsureReady(ctx, backends.Local, readyOut, chatModel, embedModel); err != nil {
			return nil, err
		}
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	index := newIndex(cfg, store)
	embedder := retrieval.NewEmbedder(backends.Embedder, cfg.EmbedModel())
	gateway := retrieval.NewGateway(embedder, index, cfg.Index.Collection, cfg.Retrieval.TopK)
	if cfg.Retrieval.Rerank {
		gateway.WithReranker(reranking.NewReranker(
			backends.Chatter,
			cfg.ChatModel(),
			true,
			cfg.Retrieval.RerankTimeout,
			cfg.Retrieval.RerankThreshold,
		))
	}

	controller := pipeline.NewController(pipeline.Config{
		Canonicalizer:   intent.New(backends.Chatter, cfg.ChatModel(), cfg.LLM.CanonicalizeTimeout),
		Retriever:       gateway,
		Chatter:         backends.Chatter,
		Model:           cfg.ChatModel(),
		Composer:        composer.New(0),
		Filter:          temporal.Filter{FailOpen: cfg.Temporal.FailOpen},
		GenerateTimeout: cfg.LLM.GenerateTimeout,
	})

	return &app{
		cfg:        cfg,
		store:      store,
		index:      index,
		embedder:   embedder,
		gateway:    gateway,
		controller: controller,
	}, nil
}

// newIndex returns the chunk index selected by index.backend.
func newIndex(cfg config.Config, store *storage.Store) retrieval.Index {
	if cfg.Index.Backend == "qdrant" {
		return retrieval.NewQdrantIndex(cfg.Qdrant.URL, cfg.Qdrant.APIKey)
	}
	return retrieval.NewSQLiteIndex(store.DB())
}

func (a *app) ingester() *ingest.Ingester {
	return ingest.New(ingest.Config{
		Index:      a.index,
		Embedder:   a.embedder,
		Runs:       a.store,
		Collection: a.cfg.Index.Collection,
		Backend:    a.cfg.Index.Backend,
	})
}

func (a *app) Close() error {
	return a.store.Close()
}
