package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Supported provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// ProviderConfig selects and configures a generation adapter.
type ProviderConfig struct {
	// Provider is "gemini" or "openai".
	Provider string

	// APIKey authenticates with the provider.
	APIKey string

	// BaseURL overrides the provider endpoint (openai only).
	BaseURL string

	// Model is used for streamed responses.
	Model string

	// ClassifierModel is used for intent classification. Defaults to Model.
	ClassifierModel string

	// Timeout bounds each HTTP request to the provider, including a full
	// stream. Zero means no limit.
	Timeout time.Duration
}

// New creates the adapter named by cfg.Provider.
func New(ctx context.Context, cfg ProviderConfig) (Generator, error) {
	slog.Debug("creating generator",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"classifier_model", cfg.ClassifierModel,
	)

	var (
		gen Generator
		err error
	)
	switch cfg.Provider {
	case ProviderGemini:
		gen, err = NewGeminiGenerator(ctx, cfg)
	case ProviderOpenAI:
		gen, err = NewOpenAIGenerator(cfg)
	default:
		return nil, &ConfigError{
			Provider: cfg.Provider,
			Field:    "provider",
			Message:  fmt.Sprintf("unsupported provider %q (supported: %s, %s)", cfg.Provider, ProviderGemini, ProviderOpenAI),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create generator %q: %w", cfg.Provider, err)
	}

	slog.Info("generator created", "provider", cfg.Provider, "model", cfg.Model)
	return gen, nil
}
