package config

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	ProviderOllama   = "ollama"
	ProviderGoogleAI = "googleai"
	ProviderHashing  = "hashing"

	BackendMemory   = "memory"
	BackendDisk     = "disk"
	BackendPgvector = "pgvector"

	TokenizerWhitespace = "whitespace"
	TokenizerTiktoken   = "tiktoken"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConfigurationError is fatal at startup: the process cannot serve requests
// with this config.
type ConfigurationError struct {
	Problems []ValidationError
}

func (e *ConfigurationError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Error())
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Check runs Validate and folds any problems into a ConfigurationError.
func (c *Config) Check() error {
	if problems := c.Validate(); len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	switch c.LLM.Provider {
	case ProviderOllama:
		if c.LLM.BaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "Ollama base URL is required",
			})
		} else if u, err := url.Parse(c.LLM.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "invalid Ollama base URL",
			})
		}
	case ProviderGoogleAI:
		if c.LLM.APIKey == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.api_key",
				Message: "GOOGLE_API_KEY is required for the googleai provider",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unknown provider %q", c.LLM.Provider),
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 8192 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 8192",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.LLM.TopP <= 0 || c.LLM.TopP > 1 {
		errors = append(errors, ValidationError{
			Field:   "llm.top_p",
			Message: "top_p must be in (0, 1]",
		})
	}

	if c.LLM.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "llm.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.LLM.Workers < 1 {
		errors = append(errors, ValidationError{
			Field:   "llm.workers",
			Message: "workers must be positive",
		})
	}

	if c.LLM.RequestsPerSecond <= 0 {
		errors = append(errors, ValidationError{
			Field:   "llm.requests_per_second",
			Message: "requests_per_second must be positive",
		})
	}

	// Validate Embedder config
	switch c.Embedder.Provider {
	case ProviderOllama:
		if c.Embedder.Model == "" {
			errors = append(errors, ValidationError{
				Field:   "embedder.model",
				Message: "embedding model is required",
			})
		}
	case ProviderHashing:
		if c.Embedder.Dimension < 8 {
			errors = append(errors, ValidationError{
				Field:   "embedder.dimension",
				Message: "dimension must be at least 8",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "embedder.provider",
			Message: fmt.Sprintf("unknown provider %q", c.Embedder.Provider),
		})
	}

	if c.Embedder.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedder.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate Index config
	switch c.Index.Backend {
	case BackendMemory, BackendDisk:
		if strings.TrimSpace(c.Index.Directory) == "" {
			errors = append(errors, ValidationError{
				Field:   "index.directory",
				Message: "directory is required",
			})
		}
	case BackendPgvector:
		if c.Index.DatabaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "index.database_url",
				Message: "database_url is required for the pgvector backend",
			})
		} else if _, err := url.Parse(c.Index.DatabaseURL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "index.database_url",
				Message: "invalid database URL",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "index.backend",
			Message: fmt.Sprintf("unknown backend %q", c.Index.Backend),
		})
	}

	// Validate Processor config
	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Processor.ChunkOverlap < 0 || c.Processor.ChunkOverlap >= c.Processor.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	if c.Retrieval.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.top_k",
			Message: "top_k must be positive",
		})
	}

	// Validate Ingest config
	if c.Ingest.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "ingest.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Ingest.Concurrency < 1 {
		errors = append(errors, ValidationError{
			Field:   "ingest.concurrency",
			Message: "concurrency must be positive",
		})
	}

	if c.Usage.Tokenizer != TokenizerWhitespace && c.Usage.Tokenizer != TokenizerTiktoken {
		errors = append(errors, ValidationError{
			Field:   "usage.tokenizer",
			Message: fmt.Sprintf("unknown tokenizer %q", c.Usage.Tokenizer),
		})
	}

	if c.Pipeline.RequestTimeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.request_timeout",
			Message: "request_timeout cannot be negative",
		})
	}

	return errors
}
