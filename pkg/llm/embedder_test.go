package llm_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krish9495/documind-ai-hackrx/pkg/config"
	"github.com/krish9495/documind-ai-hackrx/pkg/llm"
)

func TestNewEmbedderWithConfig(t *testing.T) {
	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider: config.ProviderOllama,
		Model:    "nomic-embed-text:latest",
		BaseURL:  "http://localhost:11434",
	})
	require.NoError(t, err)
	assert.Equal(t, "ollama/nomic-embed-text:latest", emb.Name())

	emb, err = llm.NewEmbedderWithConfig(llm.EmbedderConfig{Provider: config.ProviderHashing, Dimension: 64})
	require.NoError(t, err)
	assert.Equal(t, "hashing/64", emb.Name())

	_, err = llm.NewEmbedderWithConfig(llm.EmbedderConfig{Provider: "word2vec"})
	assert.Error(t, err)
}

// fakeClient satisfies embeddings.EmbedderClient.
type fakeClient struct {
	batches [][]string
}

func (f *fakeClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, texts)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

func TestNewEmbedderBatches(t *testing.T) {
	client := &fakeClient{}
	emb, err := llm.NewEmbedder(client, "fake/model", 2)
	require.NoError(t, err)

	vectors, err := emb.EmbedDocuments(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, float32(3), vectors[2][0])
	assert.Len(t, client.batches, 2)
	assert.Equal(t, "fake/model", emb.Name())
}

func TestHashingEmbedderDeterministic(t *testing.T) {
	emb := llm.NewHashingEmbedder(128)
	ctx := context.Background()

	a, err := emb.EmbedQuery(ctx, "Cosmetic surgery is excluded")
	require.NoError(t, err)
	b, err := emb.EmbedQuery(ctx, "cosmetic SURGERY is excluded!")
	require.NoError(t, err)

	assert.Len(t, a, 128)
	assert.Equal(t, a, b)

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)

	docs, err := emb.EmbedDocuments(ctx, []string{"Cosmetic surgery is excluded", ""})
	require.NoError(t, err)
	assert.Equal(t, a, docs[0])
	assert.Equal(t, make([]float32, 128), docs[1])
}

func TestHashingEmbedderHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := llm.NewHashingEmbedder(16).EmbedQuery(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
