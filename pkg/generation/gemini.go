package generation

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// Classification sampling. Classification must be repeatable and short.
const (
	classifyTemperature     = 0.0
	classifyMaxOutputTokens = 1000
)

// GeminiGenerator generates text with Google Gemini models.
type GeminiGenerator struct {
	client        *genai.Client
	model         string
	classifyModel string
	logger        *slog.Logger
}

// NewGeminiGenerator creates a Gemini adapter. classifyModel defaults to model.
func NewGeminiGenerator(ctx context.Context, cfg ProviderConfig) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, &ConfigError{Provider: ProviderGemini, Field: "api_key", Message: "API key is required"}
	}
	if cfg.Model == "" {
		return nil, &ConfigError{Provider: ProviderGemini, Field: "model", Message: "model is required"}
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, &Error{Provider: ProviderGemini, Op: "init", Cause: err}
	}

	classifyModel := cfg.ClassifierModel
	if classifyModel == "" {
		classifyModel = cfg.Model
	}

	return &GeminiGenerator{
		client:        client,
		model:         cfg.Model,
		classifyModel: classifyModel,
		logger:        slog.Default().With("component", "generation.gemini"),
	}, nil
}

// Name implements Generator.
func (g *GeminiGenerator) Name() string { return ProviderGemini }

// Classify implements Generator.
func (g *GeminiGenerator) Classify(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.classifyModel, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](classifyTemperature),
		MaxOutputTokens: classifyMaxOutputTokens,
	})
	if err != nil {
		return "", &Error{Provider: ProviderGemini, Op: "classify", Cause: err}
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &Error{Provider: ProviderGemini, Op: "classify", Cause: ErrEmptyResponse}
	}
	return text, nil
}

// Stream implements Generator.
func (g *GeminiGenerator) Stream(ctx context.Context, req *Request) (<-chan *Chunk, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(req.Sampling.Temperature),
		MaxOutputTokens: int32(req.Sampling.MaxOutputTokens),
	}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}

	out := make(chan *Chunk)
	go func() {
		defer close(out)

		produced := false
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, genai.Text(req.Prompt), cfg) {
			if err != nil {
				send(ctx, out, &Chunk{Error: &Error{Provider: ProviderGemini, Op: "stream", Cause: err}})
				return
			}
			delta := resp.Text()
			if delta == "" {
				continue
			}
			produced = true
			if !send(ctx, out, &Chunk{Delta: delta}) {
				return
			}
		}

		if !produced && ctx.Err() == nil {
			send(ctx, out, &Chunk{Error: &Error{Provider: ProviderGemini, Op: "stream", Cause: ErrEmptyResponse}})
		}
	}()

	return out, nil
}
