package engine

import "context"

// Chatter is the completion collaborator. When jsonSchema is non-nil the
// reply must be a single JSON object.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, model string, text string) ([]float32, error)
}

// Engine abstracts a local inference backend that serves both chat and
// embeddings and manages its own models.
type Engine interface {
	Chatter
	Embedder

	// IsRunning reports whether the inference backend is reachable.
	IsRunning(ctx context.Context) bool

	// ListModels returns the names of all locally available models.
	ListModels(ctx context.Context) ([]string, error)

	// PullModel downloads a model. The optional callback receives progress updates.
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}
