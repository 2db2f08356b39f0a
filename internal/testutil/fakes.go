// Package testutil holds fakes shared by package tests.
package testutil

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tmc/langchaingo/llms"

	"github.com/krish9495/documind-ai-hackrx/internal/types"
	"github.com/krish9495/documind-ai-hackrx/pkg/llm"
)

// FakeModel is an llms.Model that answers through Respond.
type FakeModel struct {
	Respond func(ctx context.Context, prompt string) (string, error)

	calls   atomic.Int64
	mu      sync.Mutex
	prompts []string
	options llms.CallOptions
}

var _ llms.Model = (*FakeModel)(nil)

// StaticModel always answers text.
func StaticModel(text string) *FakeModel {
	return &FakeModel{Respond: func(context.Context, string) (string, error) { return text, nil }}
}

func (m *FakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls.Add(1)

	var b strings.Builder
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				b.WriteString(text.Text)
			}
		}
	}
	prompt := b.String()

	var opts llms.CallOptions
	for _, opt := range options {
		opt(&opts)
	}

	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.options = opts
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := m.Respond(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text}}}, nil
}

func (m *FakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *FakeModel) Calls() int { return int(m.calls.Load()) }

func (m *FakeModel) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// LastOptions returns the call options of the most recent call.
func (m *FakeModel) LastOptions() llms.CallOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.options
}

// CountingEmbedder wraps a hashing embedder, counting document embedding
// calls and optionally failing them. When Gate is set, document embedding
// waits for it to close.
type CountingEmbedder struct {
	types.Embedder
	Err   error
	Label string
	Gate  chan struct{}

	docCalls atomic.Int64
}

func NewCountingEmbedder(dim int) *CountingEmbedder {
	return &CountingEmbedder{Embedder: llm.NewHashingEmbedder(dim)}
}

func (c *CountingEmbedder) Name() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Embedder.Name()
}

func (c *CountingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	c.docCalls.Add(1)
	if c.Gate != nil {
		select {
		case <-c.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Embedder.EmbedDocuments(ctx, texts)
}

func (c *CountingEmbedder) DocumentCalls() int { return int(c.docCalls.Load()) }
