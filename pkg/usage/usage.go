// Package usage accounts for tokens spent on model calls over the life of
// the process.
package usage

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/pkoukk/tiktoken-go"

	"github.com/krish9495/documind-ai-hackrx/internal/models"
	"github.com/krish9495/documind-ai-hackrx/internal/types"
	"github.com/krish9495/documind-ai-hackrx/pkg/config"
)

// Accountant keeps monotonic input and output token totals. It is safe for
// concurrent use.
type Accountant struct {
	counter types.TokenCounter
	input   atomic.Int64
	output  atomic.Int64
}

// NewAccountant counts with counter, or by whitespace when counter is nil.
func NewAccountant(counter types.TokenCounter) *Accountant {
	if counter == nil {
		counter = Whitespace{}
	}
	return &Accountant{counter: counter}
}

// Record adds the cost of one successful model call.
func (a *Accountant) Record(prompt, response string) models.UsageStats {
	delta := models.UsageStats{
		InputTokens:  int64(a.counter.Count(prompt)),
		OutputTokens: int64(a.counter.Count(response)),
	}
	a.input.Add(delta.InputTokens)
	a.output.Add(delta.OutputTokens)
	return delta
}

func (a *Accountant) Snapshot() models.UsageStats {
	return models.UsageStats{
		InputTokens:  a.input.Load(),
		OutputTokens: a.output.Load(),
	}
}

// Whitespace counts whitespace-separated words.
type Whitespace struct{}

func (Whitespace) Count(text string) int {
	return len(strings.Fields(text))
}

// Tiktoken counts BPE tokens with a tiktoken encoding.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

func NewTiktoken(encoding string) (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %s: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// NewCounter returns the counter named by the usage.tokenizer setting.
func NewCounter(name string) (types.TokenCounter, error) {
	switch name {
	case "", config.TokenizerWhitespace:
		return Whitespace{}, nil
	case config.TokenizerTiktoken:
		return NewTiktoken("cl100k_base")
	}
	return nil, fmt.Errorf("unknown tokenizer %q", name)
}
