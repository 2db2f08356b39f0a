package types

import (
	"context"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
)

// Embedder maps text to fixed-length vectors. Name identifies the model so a
// persisted index can record what built it.
type Embedder interface {
	embeddings.Embedder
	Name() string
}

// Loader reads one document location into ordered text records.
type Loader interface {
	Load(ctx context.Context, location string) ([]schema.Document, error)
}

// ConfidenceScorer turns a model response into a confidence in [0,1].
type ConfidenceScorer interface {
	Score(text string) float64
}

// TokenCounter estimates how many tokens a text costs.
type TokenCounter interface {
	Count(text string) int
}
