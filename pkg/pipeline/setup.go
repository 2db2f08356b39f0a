package pipeline

import (
	"context"
	"log/slog"

	"github.com/krish9495/documind-ai-hackrx/internal/models"
	"github.com/krish9495/documind-ai-hackrx/pkg/config"
	"github.com/krish9495/documind-ai-hackrx/pkg/llm"
	"github.com/krish9495/documind-ai-hackrx/pkg/usage"
)

// FromConfig wires a pipeline and its process-wide State from settings. The
// returned close function releases the index store.
func FromConfig(ctx context.Context, settings *config.Config, logger *slog.Logger, onAnswer func(models.Answer)) (*Pipeline, func(), error) {
	if err := settings.Check(); err != nil {
		return nil, nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	counter, err := usage.NewCounter(settings.Usage.Tokenizer)
	if err != nil {
		return nil, nil, err
	}

	engine, err := llm.NewWithConfig(ctx, llm.ChatConfig{
		Provider:    settings.LLM.Provider,
		Model:       settings.LLM.Model,
		BaseURL:     settings.LLM.BaseURL,
		APIKey:      settings.LLM.APIKey,
		Temperature: settings.LLM.Temperature,
		MaxTokens:   settings.LLM.MaxTokens,
		TopP:        settings.LLM.TopP,
		TopK:        settings.LLM.TopK,
	})
	if err != nil {
		return nil, nil, err
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider:  settings.Embedder.Provider,
		Model:     settings.Embedder.Model,
		BaseURL:   settings.Embedder.BaseURL,
		BatchSize: settings.Embedder.BatchSize,
		Dimension: settings.Embedder.Dimension,
	})
	if err != nil {
		return nil, nil, err
	}

	store, closeStore, err := OpenStore(ctx, settings)
	if err != nil {
		return nil, nil, err
	}

	p, err := New(Config{
		Settings: settings,
		State:    NewState(logger, counter),
		Engine:   engine,
		Embedder: embedder,
		Store:    store,
		OnAnswer: onAnswer,
		Logger:   logger,
	})
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return p, closeStore, nil
}
