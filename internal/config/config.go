package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	LLM        LLMConfig
	Ollama     OllamaConfig
	OpenRouter OpenRouterConfig
	Embedding  EmbeddingConfig
	GenAI      GenAIConfig
	Index      IndexConfig
	Qdrant     QdrantConfig
	Storage    StorageConfig
	Retrieval  RetrievalConfig
	Temporal   TemporalConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port    int
	MCPPort int
	Token   string
}

type LLMConfig struct {
	Backend             string
	CanonicalizeTimeout time.Duration
	GenerateTimeout     time.Duration
}

type OllamaConfig struct {
	BaseURL    string
	ChatModel  string
	EmbedModel string
}

type OpenRouterConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type EmbeddingConfig struct {
	Backend string
}

type GenAIConfig struct {
	APIKey string
	Model  string
}

type IndexConfig struct {
	Backend    string
	Collection string
}

type QdrantConfig struct {
	URL    string
	APIKey string
}

type StorageConfig struct {
	DataDir string
}

type RetrievalConfig struct {
	TopK            int
	Rerank          bool
	RerankThreshold float64
	RerankTimeout   time.Duration
}

type TemporalConfig struct {
	// FailOpen keeps chunks whose start date is unknown.
	FailOpen bool
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:    4000,
			MCPPort: 0,
		},
		LLM: LLMConfig{
			Backend:             "ollama",
			CanonicalizeTimeout: 10 * time.Second,
			GenerateTimeout:     60 * time.Second,
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			ChatModel:  "llama3.1",
			EmbedModel: "nomic-embed-text",
		},
		OpenRouter: OpenRouterConfig{
			Model: "openai/gpt-4o-mini",
		},
		Embedding: EmbeddingConfig{
			Backend: "ollama",
		},
		GenAI: GenAIConfig{
			Model: "text-embedding-004",
		},
		Index: IndexConfig{
			Backend:    "sqlite",
			Collection: "alumni_profiles",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Retrieval: RetrievalConfig{
			TopK:            15,
			RerankThreshold: 0.3,
			RerankTimeout:   5 * time.Second,
		},
		Temporal: TemporalConfig{
			FailOpen: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ChatModel returns the completion model for the configured LLM backend.
func (c Config) ChatModel() string {
	if c.LLM.Backend == "openrouter" {
		return c.OpenRouter.Model
	}
	return c.Ollama.ChatModel
}

// EmbedModel returns the embedding model for the configured embedding backend.
func (c Config) EmbedModel() string {
	if c.Embedding.Backend == "genai" {
		return c.GenAI.Model
	}
	return c.Ollama.EmbedModel
}

// Load reads configuration from the YAML file at
// $XDG_CONFIG_HOME/alumnirag/config.yaml and then applies ALUMNIRAG_*
// environment overrides. Secrets are only read from the environment.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.LLM.Backend {
	case "ollama":
	case "openrouter":
		if c.OpenRouter.APIKey == "" {
			return missing("openrouter.api_key")
		}
	default:
		return fmt.Errorf("invalid llm.backend %q: want ollama or openrouter", c.LLM.Backend)
	}

	switch c.Embedding.Backend {
	case "ollama":
	case "genai":
		if c.GenAI.APIKey == "" {
			return missing("genai.api_key")
		}
	default:
		return fmt.Errorf("invalid embedding.backend %q: want ollama or genai", c.Embedding.Backend)
	}

	switch c.Index.Backend {
	case "sqlite":
	case "qdrant":
		if c.Qdrant.URL == "" {
			return fmt.Errorf("missing required config: qdrant.url (index.backend is qdrant)")
		}
	default:
		return fmt.Errorf("invalid index.backend %q: want sqlite or qdrant", c.Index.Backend)
	}

	if strings.TrimSpace(c.Index.Collection) == "" {
		return fmt.Errorf("index.collection must not be empty")
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.RerankThreshold < 0 || c.Retrieval.RerankThreshold > 1 {
		return fmt.Errorf("retrieval.rerank_threshold must be within [0, 1], got %g", c.Retrieval.RerankThreshold)
	}
	return nil
}

func missing(key string) error {
	env := ""
	for _, s := range specs {
		if s.key == key {
			env = s.env
		}
	}
	return fmt.Errorf("missing required config: %s. Set it via environment variable %s or a .env file", key, env)
}
