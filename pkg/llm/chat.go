package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/krish9495/documind-ai-hackrx/pkg/config"
)

var ErrEmptyResponse = errors.New("empty response from model")

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider    string
	Model       string
	BaseURL     string // Ollama server URL
	APIKey      string // Google AI key
	Temperature float64
	MaxTokens   int
	TopP        float64
	TopK        int
}

// CallOptions renders the generation settings for a single call.
func (c ChatConfig) CallOptions() []llms.CallOption {
	opts := []llms.CallOption{
		llms.WithTemperature(c.Temperature),
		llms.WithMaxTokens(c.MaxTokens),
	}
	if c.TopP > 0 {
		opts = append(opts, llms.WithTopP(c.TopP))
	}
	if c.TopK > 0 {
		opts = append(opts, llms.WithTopK(c.TopK))
	}
	return opts
}

// ChatEngine sends a prompt to a language model and returns its text.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig creates a ChatEngine backed by the configured provider.
func NewWithConfig(ctx context.Context, cfg ChatConfig) (*ChatEngine, error) {
	if cfg.Provider == "" {
		cfg.Provider = config.ProviderOllama
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if cfg.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}

	var (
		model llms.Model
		err   error
	)
	switch cfg.Provider {
	case config.ProviderOllama:
		if cfg.Model == "" {
			cfg.Model = "mistral"
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = "http://localhost:11434"
		}
		model, err = ollama.New(ollama.WithModel(cfg.Model), ollama.WithServerURL(cfg.BaseURL))
	case config.ProviderGoogleAI:
		if cfg.APIKey == "" {
			return nil, &config.ConfigurationError{Problems: []config.ValidationError{{
				Field:   "llm.api_key",
				Message: "GOOGLE_API_KEY is required for the googleai provider",
			}}}
		}
		if cfg.Model == "" {
			cfg.Model = "gemini-1.5-flash"
		}
		model, err = googleai.New(ctx, googleai.WithAPIKey(cfg.APIKey), googleai.WithDefaultModel(cfg.Model))
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return New(model, cfg), nil
}

// New wraps an already constructed model.
func New(model llms.Model, cfg ChatConfig) *ChatEngine {
	return &ChatEngine{config: cfg, llm: model}
}

func (ce *ChatEngine) Model() string {
	return ce.config.Provider + "/" + ce.config.Model
}

// Generate sends prompt as a single human message.
func (ce *ChatEngine) Generate(ctx context.Context, prompt string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	response, err := ce.llm.GenerateContent(ctx, content, ce.config.CallOptions()...)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", ErrEmptyResponse
	}
	return response.Choices[0].Content, nil
}
