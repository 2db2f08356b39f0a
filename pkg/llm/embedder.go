package llm

import (
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/krish9495/documind-ai-hackrx/internal/types"
	"github.com/krish9495/documind-ai-hackrx/pkg/config"
)

type EmbedderConfig struct {
	Provider  string
	Model     string
	BaseURL   string // Ollama server URL
	BatchSize int
	Dimension int // hashing provider only
}

// Embedder is a langchaingo embedder tagged with the model that backs it.
type Embedder struct {
	embeddings.Embedder
	name string
}

func (e *Embedder) Name() string { return e.name }

// NewEmbedderWithConfig builds the embedder for the configured provider.
func NewEmbedderWithConfig(cfg EmbedderConfig) (types.Embedder, error) {
	if cfg.Provider == "" {
		cfg.Provider = config.ProviderOllama
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}

	switch cfg.Provider {
	case config.ProviderHashing:
		return NewHashingEmbedder(cfg.Dimension), nil
	case config.ProviderOllama:
		if cfg.Model == "" {
			cfg.Model = "nomic-embed-text:latest"
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = "http://localhost:11434"
		}

		client, err := ollama.New(ollama.WithModel(cfg.Model), ollama.WithServerURL(cfg.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
		}
		return NewEmbedder(client, "ollama/"+cfg.Model, cfg.BatchSize)
	}
	return nil, fmt.Errorf("unknown embedder provider %q", cfg.Provider)
}

// NewEmbedder wraps any langchaingo embedding client.
func NewEmbedder(client embeddings.EmbedderClient, name string, batchSize int) (*Embedder, error) {
	emb, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(batchSize))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return &Embedder{Embedder: emb, name: name}, nil
}
