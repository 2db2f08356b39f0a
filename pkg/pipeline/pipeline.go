// Package pipeline answers a batch of questions over a batch of documents:
// ingest, chunk, build or reuse the index, then answer every question
// independently and return the answers in input order.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/krish9495/documind-ai-hackrx/internal/models"
	"github.com/krish9495/documind-ai-hackrx/internal/types"
	"github.com/krish9495/documind-ai-hackrx/pkg/answer"
	"github.com/krish9495/documind-ai-hackrx/pkg/classifier"
	"github.com/krish9495/documind-ai-hackrx/pkg/config"
	"github.com/krish9495/documind-ai-hackrx/pkg/index"
	"github.com/krish9495/documind-ai-hackrx/pkg/ingest"
	"github.com/krish9495/documind-ai-hackrx/pkg/llm"
	"github.com/krish9495/documind-ai-hackrx/pkg/processor"
	"github.com/krish9495/documind-ai-hackrx/pkg/retriever"
	"github.com/krish9495/documind-ai-hackrx/pkg/usage"
)

// State is shared by every request in the process.
type State struct {
	Registry   *index.Registry
	Accountant *usage.Accountant
}

func NewState(logger *slog.Logger, counter types.TokenCounter) *State {
	return &State{
		Registry:   index.NewRegistry(logger),
		Accountant: usage.NewAccountant(counter),
	}
}

type Config struct {
	Settings *config.Config
	State    *State
	Engine   *llm.ChatEngine
	Embedder types.Embedder
	Store    index.Store
	// Ingestor defaults to one built from Settings.Ingest.
	Ingestor *ingest.Ingestor
	Scorer   types.ConfidenceScorer
	// OnAnswer, if set, is called from worker goroutines as each answer
	// completes.
	OnAnswer func(models.Answer)
	Logger   *slog.Logger
	Now      func() time.Time
}

type Pipeline struct {
	settings *config.Config
	state    *State
	embedder types.Embedder
	store    index.Store
	ingestor *ingest.Ingestor
	synth    *answer.Synthesizer
	validate *validator.Validate
	onAnswer func(models.Answer)
	logger   *slog.Logger
	now      func() time.Time
}

func New(cfg Config) (*Pipeline, error) {
	if cfg.Engine == nil || cfg.Embedder == nil || cfg.Store == nil {
		return nil, fmt.Errorf("pipeline needs an engine, an embedder and a store")
	}
	if cfg.Settings == nil {
		cfg.Settings = config.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.State == nil {
		cfg.State = NewState(cfg.Logger, nil)
	}
	if cfg.Ingestor == nil {
		cfg.Ingestor = ingest.New(ingest.Config{
			Concurrency: cfg.Settings.Ingest.Concurrency,
			URL: ingest.URLConfig{
				Timeout:   cfg.Settings.Ingest.Timeout,
				RateLimit: cfg.Settings.Ingest.RateLimit,
				UserAgent: cfg.Settings.Ingest.UserAgent,
			},
			Logger: cfg.Logger,
		})
	}

	workers := max(cfg.Settings.LLM.Workers, 1)
	limiter := rate.NewLimiter(rate.Limit(cfg.Settings.LLM.RequestsPerSecond), workers)

	return &Pipeline{
		settings: cfg.Settings,
		state:    cfg.State,
		embedder: cfg.Embedder,
		store:    cfg.Store,
		ingestor: cfg.Ingestor,
		synth: answer.New(answer.Config{
			Engine:     cfg.Engine,
			Accountant: cfg.State.Accountant,
			Limiter:    limiter,
			Scorer:     cfg.Scorer,
			Logger:     cfg.Logger,
			Now:        cfg.Now,
		}),
		validate: newValidator(),
		onAnswer: cfg.OnAnswer,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}, nil
}

func (p *Pipeline) State() *State { return p.state }

// Submit runs one request. It fails as a whole only for an invalid request,
// when no document could be ingested, or when the index cannot be built.
// Every other failure is reported on the affected Answer.
func (p *Pipeline) Submit(ctx context.Context, req Request) (*models.Response, error) {
	start := p.now()

	if err := p.validateRequest(req); err != nil {
		return nil, err
	}
	format, err := ingest.ParseFormat(req.Options.Format)
	if err != nil {
		return nil, &InvalidRequestError{Err: err}
	}

	timeout := req.Options.Timeout
	if timeout == 0 {
		timeout = p.settings.Pipeline.RequestTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sessionID := uuid.NewString()
	logger := p.logger.With("session_id", sessionID)
	before := p.state.Accountant.Snapshot()

	prep, err := p.prepare(ctx, req.Documents, req.Options, format, logger)
	if err != nil {
		return nil, err
	}
	idx := prep.idx

	topK := req.Options.TopK
	if topK == 0 {
		topK = p.settings.Retrieval.TopK
	}

	answers := make([]models.Answer, len(req.Questions))
	var g errgroup.Group
	g.SetLimit(max(p.settings.LLM.Workers, 1))
	for i, question := range req.Questions {
		g.Go(func() error {
			answers[i] = p.answer(ctx, i, question, idx, topK)
			if p.onAnswer != nil {
				p.onAnswer(answers[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	elapsed := p.now().Sub(start)
	after := p.state.Accountant.Snapshot()

	resp := &models.Response{
		SessionID:           sessionID,
		Answers:             answers,
		TotalProcessingTime: elapsed,
		TokenUsage:          after,
		DocumentStatistics:  prep.statistics(len(req.Documents)),
		PerformanceMetrics:  performance(answers, elapsed, after.Total()-before.Total()),
		Index:               prep.info,
		Timestamp:           p.now().UTC(),
	}
	resp.DocumentStatistics.TotalQuestions = len(req.Questions)
	resp.DocumentStatistics.AverageConfidence = averageConfidence(answers)

	logger.Info("request completed",
		"questions", len(answers),
		"index_reused", prep.info.Reused,
		"elapsed", elapsed,
		"tokens", after.Total())
	return resp, nil
}

type prepared struct {
	ingested *ingest.Result
	chunks   []models.Chunk
	idx      index.Index
	info     models.IndexInfo
}

func (pr *prepared) statistics(documents int) models.DocumentStatistics {
	failed := make([]string, 0, len(pr.ingested.Failures))
	for _, f := range pr.ingested.Failures {
		failed = append(failed, f.Location)
	}
	return models.DocumentStatistics{
		DocumentCount:      documents,
		DocumentsProcessed: len(pr.ingested.Processed),
		FailedDocuments:    failed,
		ChunkCount:         len(pr.chunks),
	}
}

// prepare ingests and chunks the documents and builds or reuses the index.
func (p *Pipeline) prepare(ctx context.Context, documents []string, opts Options, format ingest.Kind, logger *slog.Logger) (*prepared, error) {
	ingested, err := p.ingestor.IngestAll(ctx, documents, format)
	if err != nil {
		return nil, err
	}

	chunkSize := opts.ChunkSize
	if chunkSize == 0 {
		chunkSize = p.settings.Processor.ChunkSize
	}
	overlap := opts.ChunkOverlap
	if overlap == 0 {
		overlap = p.settings.Processor.ChunkOverlap
	}
	proc, err := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    chunkSize,
		ChunkOverlap: overlap,
		Logger:       logger,
		Now:          p.now,
	})
	if err != nil {
		return nil, &InvalidRequestError{Err: err}
	}
	chunks := proc.Process(ingested.Records)

	idx, reused, err := p.state.Registry.BuildOrLoad(ctx, index.BuildRequest{
		Store:    p.store,
		Chunks:   chunks,
		Embedder: p.embedder,
		Options:  index.BuildOptions{ChunkSize: chunkSize, ChunkOverlap: overlap, Now: p.now},
		Reuse:    opts.caching(),
	})
	if err != nil {
		return nil, err
	}

	key := p.store.Key()
	return &prepared{
		ingested: ingested,
		chunks:   chunks,
		idx:      idx,
		info:     models.IndexInfo{Backend: key.Backend, Location: key.Location, Reused: reused},
	}, nil
}

// IndexReport describes an index built by BuildIndex.
type IndexReport struct {
	Index     models.IndexInfo
	Documents models.DocumentStatistics
	IndexedAt time.Time
	Chunks    int
	BuildTime time.Duration
}

// BuildIndex ingests documents and builds the index without answering
// anything. Unless opts disables caching an existing index is reused.
func (p *Pipeline) BuildIndex(ctx context.Context, documents []string, opts Options) (*IndexReport, error) {
	start := p.now()

	if err := p.validate.Struct(indexRequest{Documents: documents, Options: opts}); err != nil {
		return nil, &InvalidRequestError{Err: describe(err)}
	}
	format, err := ingest.ParseFormat(opts.Format)
	if err != nil {
		return nil, &InvalidRequestError{Err: err}
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	prep, err := p.prepare(ctx, documents, opts, format, p.logger)
	if err != nil {
		return nil, err
	}
	return &IndexReport{
		Index:     prep.info,
		Documents: prep.statistics(len(documents)),
		IndexedAt: prep.idx.Manifest().CreatedAt,
		Chunks:    prep.idx.Len(),
		BuildTime: p.now().Sub(start),
	}, nil
}

func (p *Pipeline) answer(ctx context.Context, i int, question string, idx index.Index, topK int) models.Answer {
	q := answer.Question{
		Index:          i,
		Text:           question,
		Classification: classifier.Classify(question),
		Started:        p.now(),
	}

	hits, err := retriever.Retrieve(ctx, idx, p.embedder, question, topK)
	if err != nil {
		return p.synth.Fail(ctx, q, err)
	}
	q.Hits = hits
	return p.synth.Answer(ctx, q)
}

func averageConfidence(answers []models.Answer) float64 {
	if len(answers) == 0 {
		return 0
	}
	var sum float64
	for _, a := range answers {
		sum += a.Confidence
	}
	return sum / float64(len(answers))
}

func performance(answers []models.Answer, elapsed time.Duration, tokens int64) models.PerformanceMetrics {
	var m models.PerformanceMetrics
	if len(answers) > 0 {
		var total time.Duration
		for _, a := range answers {
			total += a.ProcessingTime
		}
		m.AverageQuestionTime = total / time.Duration(len(answers))
	}
	if secs := elapsed.Seconds(); secs > 0 {
		m.QuestionsPerSecond = float64(len(answers)) / secs
		m.TokensPerSecond = float64(tokens) / secs
	}
	return m
}
