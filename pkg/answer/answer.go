// Package answer turns a question and its retrieved chunks into an Answer.
package answer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/krish9495/documind-ai-hackrx/internal/models"
	"github.com/krish9495/documind-ai-hackrx/internal/types"
	"github.com/krish9495/documind-ai-hackrx/pkg/llm"
	"github.com/krish9495/documind-ai-hackrx/pkg/prompt"
	"github.com/krish9495/documind-ai-hackrx/pkg/usage"
)

// MaxCitations caps the citations attached to one answer.
const MaxCitations = 3

const (
	errorPrefix = "Error processing question: "
	timeoutText = "Request timed out before this question was answered"
)

type Config struct {
	Engine     *llm.ChatEngine
	Composer   *prompt.Composer
	Accountant *usage.Accountant
	// Limiter paces model calls across all requests. Nil means unlimited.
	Limiter *rate.Limiter
	Scorer  types.ConfidenceScorer
	Logger  *slog.Logger
	Now     func() time.Time
}

type Synthesizer struct {
	engine     *llm.ChatEngine
	composer   *prompt.Composer
	accountant *usage.Accountant
	limiter    *rate.Limiter
	scorer     types.ConfidenceScorer
	logger     *slog.Logger
	now        func() time.Time
}

func New(cfg Config) *Synthesizer {
	s := &Synthesizer{
		engine:     cfg.Engine,
		composer:   cfg.Composer,
		accountant: cfg.Accountant,
		limiter:    cfg.Limiter,
		scorer:     cfg.Scorer,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
	if s.composer == nil {
		s.composer = prompt.NewComposer()
	}
	if s.accountant == nil {
		s.accountant = usage.NewAccountant(nil)
	}
	if s.scorer == nil {
		s.scorer = NewPhraseScorer()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Question is one unit of work: the question text with its position in the
// request, its category and what retrieval found for it.
type Question struct {
	Index          int
	Text           string
	Classification models.Classification
	Hits           []models.Hit
	Started        time.Time
}

// Answer asks the model and always returns an Answer. Failures come back as
// degraded answers with no usage recorded.
func (s *Synthesizer) Answer(ctx context.Context, q Question) models.Answer {
	if q.Started.IsZero() {
		q.Started = s.now()
	}

	text, err := s.composer.Compose(q.Text, q.Classification, q.Hits)
	if err != nil {
		return s.Fail(ctx, q, err)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return s.timedOut(q, err)
		}
	}

	response, err := s.engine.Generate(ctx, text)
	if err != nil {
		return s.Fail(ctx, q, &models.ModelCallError{Question: q.Text, Err: err})
	}
	s.accountant.Record(text, response)

	citations := make([]string, 0, MaxCitations)
	for _, hit := range q.Hits[:min(len(q.Hits), MaxCitations)] {
		citations = append(citations, hit.Chunk.Locator())
	}

	return s.finish(q, models.Answer{
		Text:       response,
		Confidence: s.scorer.Score(response),
		Citations:  citations,
		ChunksUsed: len(q.Hits),
	})
}

// Fail returns the degraded answer for err. A cancelled or expired ctx turns
// it into a timeout answer.
func (s *Synthesizer) Fail(ctx context.Context, q Question, err error) models.Answer {
	if q.Started.IsZero() {
		q.Started = s.now()
	}
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return s.timedOut(q, err)
	}

	s.logger.Warn("question failed", "question_index", q.Index, "error", err)
	return s.finish(q, models.Answer{
		Text:      errorPrefix + err.Error(),
		Citations: []string{},
		Error:     err.Error(),
	})
}

func (s *Synthesizer) timedOut(q Question, err error) models.Answer {
	s.logger.Warn("question timed out", "question_index", q.Index, "error", err)
	return s.finish(q, models.Answer{
		Text:      timeoutText,
		Citations: []string{},
		Error:     err.Error(),
	})
}

func (s *Synthesizer) finish(q Question, a models.Answer) models.Answer {
	a.Question = q.Text
	a.Classification = q.Classification
	a.ProcessingTime = s.now().Sub(q.Started)
	a.Metadata = models.AnswerMetadata{
		QuestionIndex:  q.Index,
		WordCount:      len(strings.Fields(a.Text)),
		CharacterCount: utf8.RuneCountInString(a.Text),
	}
	return a
}
