package processor_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"

	"github.com/krish9495/documind-ai-hackrx/internal/models"
	"github.com/krish9495/documind-ai-hackrx/pkg/processor"
)

func record(content, source string, page int) schema.Document {
	meta := map[string]any{"source": source}
	if page > 0 {
		meta["page"] = page
	}
	return schema.Document{PageContent: content, Metadata: meta}
}

// sampleText has sections, paragraphs, sentences and one long unbroken token.
func sampleText() string {
	var sections []string
	word := 0
	for s := 0; s < 3; s++ {
		var paragraphs []string
		for p := 0; p < 4; p++ {
			var sentences []string
			for n := 0; n < 5; n++ {
				var words []string
				for w := 0; w < 7; w++ {
					words = append(words, fmt.Sprintf("term%d", word))
					word++
				}
				sentences = append(sentences, strings.Join(words[:4], " ")+", "+strings.Join(words[4:], " ")+".")
			}
			paragraphs = append(paragraphs, strings.Join(sentences, " "))
		}
		sections = append(sections, strings.Join(paragraphs, "\n\n"))
	}
	sections = append(sections, strings.Repeat("x", 300))
	return strings.Join(sections, "\n\n\n")
}

func reconstruct(t *testing.T, src string, chunks []models.Chunk, overlap int) string {
	t.Helper()

	var b strings.Builder
	end := 0
	for _, c := range chunks {
		require.Equal(t, src[c.Start:c.End], c.Content)
		require.LessOrEqual(t, c.Start, end, "gap before chunk %d", c.ChunkID)
		require.Greater(t, c.End, end, "chunk %d adds nothing", c.ChunkID)
		assert.LessOrEqual(t, end-c.Start, overlap, "chunk %d overlaps too much", c.ChunkID)
		b.WriteString(src[end:c.End])
		end = c.End
	}
	return b.String()
}

func TestProcessor_ChunkInvariants(t *testing.T) {
	src := sampleText()

	tests := []struct {
		size    int
		overlap int
	}{
		{1000, 200},
		{500, 100},
		{200, 50},
		{100, 0},
		{50, 10},
		{37, 36},
		{10, 9},
		{5, 1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("size=%d/overlap=%d", tt.size, tt.overlap), func(t *testing.T) {
			p, err := processor.NewWithConfig(processor.ProcessorConfig{
				ChunkSize:    tt.size,
				ChunkOverlap: tt.overlap,
			})
			require.NoError(t, err)

			chunks := p.Process([]schema.Document{record(src, "policy.pdf", 3)})
			require.NotEmpty(t, chunks)

			for i, c := range chunks {
				assert.Equal(t, i, c.ChunkID)
				assert.LessOrEqual(t, c.Size, tt.size+len("\n\n\n"))
				assert.Equal(t, len([]rune(c.Content)), c.Size)
				assert.Equal(t, "policy.pdf", c.Source)
				assert.Equal(t, 3, c.Page)
			}

			assert.Equal(t, src, reconstruct(t, src, chunks, p.ChunkOverlap()))
		})
	}
}

func TestProcessor_PrefersCoarsestSeparator(t *testing.T) {
	p, err := processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: 20, ChunkOverlap: 5})
	require.NoError(t, err)

	chunks := p.Process([]schema.Document{record("Alpha beta gamma.\n\nDelta epsilon zeta.", "a.docx", 0)})
	require.Len(t, chunks, 2)
	assert.Equal(t, "Alpha beta gamma.\n\n", chunks[0].Content)
	assert.Equal(t, "Delta epsilon zeta.", chunks[1].Content)
	assert.Equal(t, 0, chunks[1].Page)
}

func TestProcessor_OverlapCarriesTrailingWords(t *testing.T) {
	p, err := processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: 12, ChunkOverlap: 6})
	require.NoError(t, err)

	chunks := p.Process([]schema.Document{record("one two three four five", "x.eml", 0)})
	require.Len(t, chunks, 4)
	assert.Equal(t, "one two ", chunks[0].Content)
	assert.Equal(t, "two three ", chunks[1].Content)
	assert.Equal(t, "three four ", chunks[2].Content)
	assert.Equal(t, "four five", chunks[3].Content)
}

func TestProcessor_IDsContiguousAcrossRecords(t *testing.T) {
	p, err := processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: 30, ChunkOverlap: 5})
	require.NoError(t, err)

	docs := []schema.Document{
		record("First page text. It has two sentences.", "policy.pdf", 1),
		record("", "policy.pdf", 2),
		record("Third page. Short.", "policy.pdf", 3),
	}
	chunks := p.Process(docs)
	require.NotEmpty(t, chunks)

	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkID)
		assert.NotEqual(t, 2, c.Page)
	}
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 3, chunks[len(chunks)-1].Page)
}

func TestProcessor_EmptyRecordYieldsNoChunks(t *testing.T) {
	p, err := processor.NewWithConfig(processor.ProcessorConfig{})
	require.NoError(t, err)

	assert.Empty(t, p.Process([]schema.Document{record("", "blank.pdf", 1)}))
	assert.Empty(t, p.Process([]schema.Document{record(" \n\n ", "blank.pdf", 1)}))
	assert.Empty(t, p.Process(nil))
}

func TestProcessor_Defaults(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	p, err := processor.NewWithConfig(processor.ProcessorConfig{Now: func() time.Time { return fixed }})
	require.NoError(t, err)

	assert.Equal(t, 1000, p.ChunkSize())
	assert.Equal(t, 200, p.ChunkOverlap())

	chunks := p.Process([]schema.Document{record("short text", "s.pdf", 1)})
	require.Len(t, chunks, 1)
	assert.Equal(t, fixed, chunks[0].CreatedAt)
	assert.Equal(t, 10, chunks[0].Size)
}

func TestProcessor_InvalidConfig(t *testing.T) {
	tests := []processor.ProcessorConfig{
		{ChunkSize: 100, ChunkOverlap: 100},
		{ChunkSize: 100, ChunkOverlap: 150},
		{ChunkSize: 100, ChunkOverlap: -1},
		{ChunkSize: -5},
	}

	for _, config := range tests {
		_, err := processor.NewWithConfig(config)
		assert.Error(t, err)
	}
}

func TestProcessor_MultibyteText(t *testing.T) {
	p, err := processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: 4, ChunkOverlap: 1})
	require.NoError(t, err)

	src := "日本語のテキスト"
	chunks := p.Process([]schema.Document{record(src, "jp.pdf", 0)})
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, c.Size, 4)
	}
	assert.Equal(t, src, reconstruct(t, src, chunks, 3))
}

func TestProcessor_BlankRemaindersFoldIntoPreviousChunk(t *testing.T) {
	p, err := processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: 10, ChunkOverlap: 1})
	require.NoError(t, err)

	src := "aaaa bbbb\n\ncccc dddd\n\n\neeee"
	chunks := p.Process([]schema.Document{record(src, "gap.txt", 0)})
	require.Len(t, chunks, 3)
	assert.Equal(t, "aaaa bbbb\n\n", chunks[0].Content)
	assert.Equal(t, "cccc dddd\n\n\n", chunks[1].Content)
	assert.Equal(t, "eeee", chunks[2].Content)
	assert.Equal(t, src, reconstruct(t, src, chunks, p.ChunkOverlap()))
}

func TestProcessor_SplitCoversLeadingWhitespace(t *testing.T) {
	p, err := processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: 6, ChunkOverlap: 1})
	require.NoError(t, err)

	src := "\n\n\nabcdef ghijkl"
	spans := p.Split(src)
	require.NotEmpty(t, spans)
	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, len(src), spans[len(spans)-1].End)
	for i := 1; i < len(spans); i++ {
		assert.LessOrEqual(t, spans[i].Start, spans[i-1].End)
	}
}
