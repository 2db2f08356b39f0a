// Package retriever finds the chunks most relevant to a question.
package retriever

import (
	"context"
	"fmt"

	"github.com/krish9495/documind-ai-hackrx/internal/models"
	"github.com/krish9495/documind-ai-hackrx/internal/types"
	"github.com/krish9495/documind-ai-hackrx/pkg/index"
)

// DefaultTopK is the number of chunks retrieved when the caller asks for 0.
const DefaultTopK = 7

// Retrieve embeds question and returns up to k hits from idx. An empty index
// yields no hits and no error.
func Retrieve(ctx context.Context, idx index.Index, embedder types.Embedder, question string, k int) ([]models.Hit, error) {
	if k == 0 {
		k = DefaultTopK
	}
	if k < 1 {
		return nil, fmt.Errorf("top k must be at least 1, got %d", k)
	}
	if idx.Len() == 0 {
		return nil, nil
	}

	vector, err := embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	hits, err := idx.Search(ctx, vector, min(k, idx.Len()))
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return hits, nil
}
