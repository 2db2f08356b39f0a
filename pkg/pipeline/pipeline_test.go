package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"

	"github.com/krish9495/documind-ai-hackrx/internal/models"
	"github.com/krish9495/documind-ai-hackrx/internal/testutil"
	"github.com/krish9495/documind-ai-hackrx/pkg/config"
	"github.com/krish9495/documind-ai-hackrx/pkg/index"
	"github.com/krish9495/documind-ai-hackrx/pkg/ingest"
	"github.com/krish9495/documind-ai-hackrx/pkg/llm"
	"github.com/krish9495/documind-ai-hackrx/pkg/pipeline"
	"github.com/krish9495/documind-ai-hackrx/pkg/prompt"
)

const policyText = `Grace Period: A grace period of thirty days is allowed for premium payment.

Exclusions: Cosmetic surgery is not covered unless required after an accident.

Maternity: Maternity expenses are covered after a waiting period of two years.`

// fakeLoader serves fixed text per location and fails for unknown ones.
type fakeLoader map[string]string

func (f fakeLoader) Load(_ context.Context, location string) ([]schema.Document, error) {
	text, ok := f[location]
	if !ok {
		return nil, fmt.Errorf("cannot open %s", location)
	}
	return []schema.Document{{PageContent: text, Metadata: map[string]any{"source": location, "page": 1}}}, nil
}

type fixture struct {
	pipeline *pipeline.Pipeline
	model    *testutil.FakeModel
	embedder *testutil.CountingEmbedder
	store    index.Store
	state    *pipeline.State
}

func newFixture(t *testing.T, respond func(ctx context.Context, prompt string) (string, error)) *fixture {
	t.Helper()

	settings := config.Default()
	settings.LLM.RequestsPerSecond = 1000
	settings.LLM.Workers = 3

	in := ingest.New(ingest.Config{})
	in.SetLoader(ingest.KindPDF, fakeLoader{"policy.pdf": policyText, "empty.pdf": ""})

	model := &testutil.FakeModel{Respond: respond}
	emb := testutil.NewCountingEmbedder(128)
	store := index.NewMemoryStore(t.TempDir())
	state := pipeline.NewState(nil, nil)

	p, err := pipeline.New(pipeline.Config{
		Settings: settings,
		State:    state,
		Engine:   llm.New(model, llm.ChatConfig{Model: "fake", Temperature: 0.1, MaxTokens: 512}),
		Embedder: emb,
		Store:    store,
		Ingestor: in,
	})
	require.NoError(t, err)

	return &fixture{pipeline: p, model: model, embedder: emb, store: store, state: state}
}

func echoQuestion(_ context.Context, prompt string) (string, error) {
	i := strings.Index(prompt, "**Question:** ")
	q := prompt[i+len("**Question:** "):]
	q = q[:strings.Index(q, "\n")]
	return "Answer to " + q + ". High confidence.", nil
}

func TestSubmit(t *testing.T) {
	f := newFixture(t, echoQuestion)

	questions := []string{
		"What is the grace period for premium payment?",
		"Is cosmetic surgery covered?",
		"What is the waiting period for maternity?",
	}
	resp, err := f.pipeline.Submit(context.Background(), pipeline.Request{
		Documents: []string{"policy.pdf"},
		Questions: questions,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.SessionID)
	require.Len(t, resp.Answers, 3)
	for i, a := range resp.Answers {
		assert.Equal(t, questions[i], a.Question)
		assert.Equal(t, "Answer to "+questions[i]+". High confidence.", a.Text)
		assert.Equal(t, 0.9, a.Confidence)
		assert.Equal(t, i, a.Metadata.QuestionIndex)
		assert.NotEmpty(t, a.Citations)
		assert.LessOrEqual(t, len(a.Citations), 3)
		assert.Equal(t, "Source: policy.pdf, Page: 1", a.Citations[0])
	}
	assert.Equal(t, models.Timeline, resp.Answers[0].Classification)
	assert.Equal(t, models.Exclusion, resp.Answers[1].Classification)

	stats := resp.DocumentStatistics
	assert.Equal(t, 1, stats.DocumentCount)
	assert.Equal(t, 1, stats.DocumentsProcessed)
	assert.Empty(t, stats.FailedDocuments)
	assert.Equal(t, 1, stats.ChunkCount)
	assert.Equal(t, 3, stats.TotalQuestions)
	assert.InDelta(t, 0.9, stats.AverageConfidence, 1e-9)

	assert.Equal(t, models.IndexInfo{Backend: index.BackendMemory, Location: f.store.Key().Location}, resp.Index)
	assert.Positive(t, resp.TokenUsage.InputTokens)
	assert.Positive(t, resp.TokenUsage.OutputTokens)
	assert.Equal(t, 3, f.model.Calls())
}

func TestSubmitExclusionPromptCarriesDirective(t *testing.T) {
	f := newFixture(t, echoQuestion)

	_, err := f.pipeline.Submit(context.Background(), pipeline.Request{
		Documents: []string{"policy.pdf"},
		Questions: []string{"Is cosmetic surgery covered?"},
	})
	require.NoError(t, err)

	prompts := f.model.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], prompt.Directive(models.Exclusion))
	assert.Contains(t, prompts[0], "Cosmetic surgery is not covered")
}

func TestSubmitOneFailingQuestion(t *testing.T) {
	f := newFixture(t, func(ctx context.Context, p string) (string, error) {
		if strings.Contains(p, "**Question:** Is cosmetic surgery covered?") {
			return "", errors.New("model overloaded")
		}
		return echoQuestion(ctx, p)
	})

	questions := []string{
		"What is the grace period for premium payment?",
		"Is cosmetic surgery covered?",
		"What is the waiting period for maternity?",
		"Are ambulance charges covered?",
	}
	resp, err := f.pipeline.Submit(context.Background(), pipeline.Request{
		Documents: []string{"policy.pdf"},
		Questions: questions,
	})
	require.NoError(t, err)
	require.Len(t, resp.Answers, 4)

	for i, a := range resp.Answers {
		assert.Equal(t, questions[i], a.Question)
		if i == 1 {
			assert.True(t, a.Degraded())
			assert.Zero(t, a.Confidence)
			assert.Contains(t, a.Text, "Error processing question: ")
			assert.Contains(t, a.Text, "model overloaded")
			continue
		}
		assert.False(t, a.Degraded(), a.Text)
	}
	assert.InDelta(t, 0.9*3/4, resp.DocumentStatistics.AverageConfidence, 1e-9)
}

func TestSubmitToleratesFailedDocuments(t *testing.T) {
	f := newFixture(t, echoQuestion)

	resp, err := f.pipeline.Submit(context.Background(), pipeline.Request{
		Documents: []string{"missing.pdf", "policy.pdf", "notes.xyz"},
		Questions: []string{"What is the grace period?"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.DocumentStatistics.DocumentCount)
	assert.Equal(t, 1, resp.DocumentStatistics.DocumentsProcessed)
	assert.Equal(t, []string{"missing.pdf", "notes.xyz"}, resp.DocumentStatistics.FailedDocuments)
}

func TestSubmitNoDocumentsProcessed(t *testing.T) {
	f := newFixture(t, echoQuestion)

	_, err := f.pipeline.Submit(context.Background(), pipeline.Request{
		Documents: []string{"missing.pdf", "notes.xyz"},
		Questions: []string{"What is the grace period?"},
	})

	var noDocs *models.NoDocumentsProcessedError
	require.ErrorAs(t, err, &noDocs)
	assert.Len(t, noDocs.Failures, 2)

	var unsupported *models.UnsupportedFormatError
	assert.ErrorAs(t, err, &unsupported)
	assert.Equal(t, 0, f.model.Calls())
}

func TestSubmitIndexUnavailable(t *testing.T) {
	f := newFixture(t, echoQuestion)
	f.embedder.Err = errors.New("embedding backend down")

	_, err := f.pipeline.Submit(context.Background(), pipeline.Request{
		Documents: []string{"policy.pdf"},
		Questions: []string{"What is the grace period?"},
	})

	var unavailable *models.IndexUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, 0, f.model.Calls())
}

func TestSubmitEmptyDocumentAnswersWithoutContext(t *testing.T) {
	f := newFixture(t, echoQuestion)

	resp, err := f.pipeline.Submit(context.Background(), pipeline.Request{
		Documents: []string{"empty.pdf"},
		Questions: []string{"What is the grace period?"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.DocumentStatistics.ChunkCount)
	require.Len(t, resp.Answers, 1)
	assert.Empty(t, resp.Answers[0].Citations)
	assert.Contains(t, f.model.Prompts()[0], prompt.NoContext)
}

func TestSubmitReusesIndex(t *testing.T) {
	f := newFixture(t, echoQuestion)
	req := pipeline.Request{
		Documents: []string{"policy.pdf"},
		Questions: []string{"What is the grace period?"},
	}

	first, err := f.pipeline.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Index.Reused)

	second, err := f.pipeline.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Index.Reused)
	assert.Equal(t, 1, f.embedder.DocumentCalls())

	off := false
	req.Options.EnableCaching = &off
	third, err := f.pipeline.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, third.Index.Reused)
	assert.Equal(t, 2, f.embedder.DocumentCalls())
}

func TestSubmitTimeout(t *testing.T) {
	f := newFixture(t, func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	resp, err := f.pipeline.Submit(context.Background(), pipeline.Request{
		Documents: []string{"policy.pdf"},
		Questions: []string{"What is the grace period?", "Is cosmetic surgery covered?"},
		Options:   pipeline.Options{Timeout: 500 * time.Millisecond},
	})
	require.NoError(t, err)
	require.Len(t, resp.Answers, 2)
	for _, a := range resp.Answers {
		assert.True(t, a.Degraded())
		assert.Equal(t, "Request timed out before this question was answered", a.Text)
	}
	assert.Equal(t, models.UsageStats{}, resp.TokenUsage)
}

func TestUsageIsMonotonicAcrossRequests(t *testing.T) {
	f := newFixture(t, func(ctx context.Context, p string) (string, error) {
		if strings.Contains(p, "**Question:** Is cosmetic") {
			return "", errors.New("boom")
		}
		return echoQuestion(ctx, p)
	})

	req := pipeline.Request{
		Documents: []string{"policy.pdf"},
		Questions: []string{"What is the grace period?"},
	}

	var last models.UsageStats
	for i := 0; i < 3; i++ {
		resp, err := f.pipeline.Submit(context.Background(), req)
		require.NoError(t, err)
		assert.Greater(t, resp.TokenUsage.Total(), last.Total())
		last = resp.TokenUsage
	}

	// A degraded answer adds nothing.
	req.Questions = []string{"Is cosmetic surgery covered?"}
	resp, err := f.pipeline.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.Answers[0].Degraded())
	assert.Equal(t, last, resp.TokenUsage)
	assert.Equal(t, last, f.state.Accountant.Snapshot())
}

func TestSubmitConcurrentRequestsShareOneIndex(t *testing.T) {
	f := newFixture(t, echoQuestion)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.pipeline.Submit(context.Background(), pipeline.Request{
				Documents: []string{"policy.pdf"},
				Questions: []string{"What is the grace period?"},
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.embedder.DocumentCalls())
	assert.Equal(t, int64(5), int64(f.model.Calls()))
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t, echoQuestion)

	many := make([]string, pipeline.MaxQuestions+1)
	for i := range many {
		many[i] = "question?"
	}

	tests := []struct {
		name string
		req  pipeline.Request
	}{
		{"no documents", pipeline.Request{Questions: []string{"q?"}}},
		{"blank document", pipeline.Request{Documents: []string{"  "}, Questions: []string{"q?"}}},
		{"no questions", pipeline.Request{Documents: []string{"policy.pdf"}}},
		{"blank question", pipeline.Request{Documents: []string{"policy.pdf"}, Questions: []string{"q?", " "}}},
		{"too many questions", pipeline.Request{Documents: []string{"policy.pdf"}, Questions: many}},
		{"chunk size too small", pipeline.Request{Documents: []string{"policy.pdf"}, Questions: []string{"q?"}, Options: pipeline.Options{ChunkSize: 100}}},
		{"overlap too large", pipeline.Request{Documents: []string{"policy.pdf"}, Questions: []string{"q?"}, Options: pipeline.Options{ChunkOverlap: 600}}},
		{"overlap not below size", pipeline.Request{Documents: []string{"policy.pdf"}, Questions: []string{"q?"}, Options: pipeline.Options{ChunkSize: 500, ChunkOverlap: 500}}},
		{"top k too large", pipeline.Request{Documents: []string{"policy.pdf"}, Questions: []string{"q?"}, Options: pipeline.Options{TopK: 16}}},
		{"unknown format", pipeline.Request{Documents: []string{"policy.pdf"}, Questions: []string{"q?"}, Options: pipeline.Options{Format: "rtf"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.pipeline.Submit(context.Background(), tt.req)
			var invalid *pipeline.InvalidRequestError
			assert.ErrorAs(t, err, &invalid)
		})
	}
	assert.Equal(t, 0, f.model.Calls())
}

func TestSubmitQuestionLimit(t *testing.T) {
	f := newFixture(t, echoQuestion)

	questions := make([]string, pipeline.MaxQuestions)
	for i := range questions {
		questions[i] = fmt.Sprintf("Question %d about the grace period?", i)
	}

	resp, err := f.pipeline.Submit(context.Background(), pipeline.Request{
		Documents: []string{"policy.pdf"},
		Questions: questions,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Answers, pipeline.MaxQuestions)

	_, err = f.pipeline.Submit(context.Background(), pipeline.Request{
		Documents: []string{"policy.pdf"},
		Questions: append(questions, "One too many?"),
	})
	var invalid *pipeline.InvalidRequestError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, err.Error(), "Request.Questions failed max")
}

func TestSubmitFormatOverride(t *testing.T) {
	f := newFixture(t, echoQuestion)

	resp, err := f.pipeline.Submit(context.Background(), pipeline.Request{
		Documents: []string{"policy.pdf"},
		Questions: []string{"What is the grace period?"},
		Options:   pipeline.Options{Format: "pdf", TopK: 1, ChunkSize: 500, ChunkOverlap: 50},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Answers[0].ChunksUsed)
}

func TestBuildIndex(t *testing.T) {
	f := newFixture(t, echoQuestion)

	report, err := f.pipeline.BuildIndex(context.Background(), []string{"policy.pdf", "missing.pdf"}, pipeline.Options{})
	require.NoError(t, err)
	assert.False(t, report.Index.Reused)
	assert.Equal(t, 1, report.Chunks)
	assert.Equal(t, []string{"missing.pdf"}, report.Documents.FailedDocuments)
	assert.Equal(t, 0, f.model.Calls())

	again, err := f.pipeline.BuildIndex(context.Background(), []string{"policy.pdf"}, pipeline.Options{})
	require.NoError(t, err)
	assert.True(t, again.Index.Reused)
	assert.Equal(t, 1, f.embedder.DocumentCalls())

	_, err = f.pipeline.BuildIndex(context.Background(), nil, pipeline.Options{})
	var invalid *pipeline.InvalidRequestError
	assert.ErrorAs(t, err, &invalid)
}

func TestOnAnswerSeesEveryAnswer(t *testing.T) {
	settings := config.Default()
	settings.LLM.RequestsPerSecond = 1000

	in := ingest.New(ingest.Config{})
	in.SetLoader(ingest.KindPDF, fakeLoader{"policy.pdf": policyText})

	var mu sync.Mutex
	seen := make(map[int]bool)
	p, err := pipeline.New(pipeline.Config{
		Settings: settings,
		Engine:   llm.New(&testutil.FakeModel{Respond: echoQuestion}, llm.ChatConfig{Model: "fake"}),
		Embedder: testutil.NewCountingEmbedder(64),
		Store:    index.NewDiskStore(t.TempDir()),
		Ingestor: in,
		OnAnswer: func(a models.Answer) {
			mu.Lock()
			seen[a.Metadata.QuestionIndex] = true
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	resp, err := p.Submit(context.Background(), pipeline.Request{
		Documents: []string{"policy.pdf"},
		Questions: []string{"a?", "b?", "c?"},
	})
	require.NoError(t, err)
	assert.Equal(t, index.BackendDisk, resp.Index.Backend)
	assert.Equal(t, map[int]bool{0: true, 1: true, 2: true}, seen)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := pipeline.New(pipeline.Config{})
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")

	settings := config.Default()
	settings.Embedder.Provider = config.ProviderHashing
	settings.Index.Backend = config.BackendDisk
	settings.Index.Directory = t.TempDir()

	p, closeStore, err := pipeline.FromConfig(context.Background(), settings, nil, nil)
	require.NoError(t, err)
	defer closeStore()
	assert.NotNil(t, p.State().Registry)

	settings.LLM.Provider = config.ProviderGoogleAI
	settings.LLM.APIKey = ""
	_, _, err = pipeline.FromConfig(context.Background(), settings, nil, nil)
	var cfgErr *config.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestCosmeticSurgeryQuestionGetsExclusionFocus(t *testing.T) {
	settings := config.Default()
	settings.LLM.RequestsPerSecond = 1000

	in := ingest.New(ingest.Config{})
	in.SetLoader(ingest.KindPDF, fakeLoader{
		"a.pdf": "Policy covers hospitalization up to 500000",
		"b.pdf": "Cosmetic surgery is excluded",
	})
	model := &testutil.FakeModel{Respond: echoQuestion}

	p, err := pipeline.New(pipeline.Config{
		Settings: settings,
		Engine:   llm.New(model, llm.ChatConfig{Model: "fake"}),
		Embedder: testutil.NewCountingEmbedder(64),
		Store:    index.NewMemoryStore(t.TempDir()),
		Ingestor: in,
	})
	require.NoError(t, err)

	resp, err := p.Submit(context.Background(), pipeline.Request{
		Documents: []string{"a.pdf", "b.pdf"},
		Questions: []string{"Is cosmetic surgery covered?"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.Exclusion, resp.Answers[0].Classification)
	assert.Equal(t, 2, resp.Answers[0].ChunksUsed)

	prompts := model.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Focus on what IS NOT covered, limitations, restrictions, and exclusions.")
	assert.Contains(t, prompts[0], "Cosmetic surgery is excluded")
}
