package generation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIGenerator generates text with OpenAI chat models or any
// OpenAI-compatible endpoint.
type OpenAIGenerator struct {
	client        *openai.Client
	model         string
	classifyModel string
	logger        *slog.Logger
}

// NewOpenAIGenerator creates an OpenAI adapter. An empty API key is allowed
// when BaseURL points at a local OpenAI-compatible server.
func NewOpenAIGenerator(cfg ProviderConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, &ConfigError{Provider: ProviderOpenAI, Field: "api_key", Message: "API key is required without base_url"}
	}
	if cfg.Model == "" {
		return nil, &ConfigError{Provider: ProviderOpenAI, Field: "model", Message: "model is required"}
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	classifyModel := cfg.ClassifierModel
	if classifyModel == "" {
		classifyModel = cfg.Model
	}

	return &OpenAIGenerator{
		client:        openai.NewClientWithConfig(clientCfg),
		model:         cfg.Model,
		classifyModel: classifyModel,
		logger:        slog.Default().With("component", "generation.openai"),
	}, nil
}

// Name implements Generator.
func (g *OpenAIGenerator) Name() string { return ProviderOpenAI }

// Classify implements Generator.
func (g *OpenAIGenerator) Classify(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.classifyModel,
		Temperature: openAITemperature(classifyTemperature),
		MaxTokens:   classifyMaxOutputTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", &Error{Provider: ProviderOpenAI, Op: "classify", Cause: err}
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Provider: ProviderOpenAI, Op: "classify", Cause: ErrEmptyResponse}
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", &Error{Provider: ProviderOpenAI, Op: "classify", Cause: ErrEmptyResponse}
	}
	return text, nil
}

// openAITemperature maps zero to the smallest positive value. The request
// field is omitted when zero, which leaves the API at its default of 1.
func openAITemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

// Stream implements Generator.
func (g *OpenAIGenerator) Stream(ctx context.Context, req *Request) (<-chan *Chunk, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemInstruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemInstruction,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	stream, err := g.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: openAITemperature(req.Sampling.Temperature),
		MaxTokens:   req.Sampling.MaxOutputTokens,
		Messages:    messages,
		Stream:      true,
	})
	if err != nil {
		return nil, &Error{Provider: ProviderOpenAI, Op: "stream", Cause: err}
	}

	out := make(chan *Chunk)
	go func() {
		defer close(out)
		defer stream.Close()

		produced := false
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				if !produced {
					send(ctx, out, &Chunk{Error: &Error{Provider: ProviderOpenAI, Op: "stream", Cause: ErrEmptyResponse}})
				}
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					send(ctx, out, &Chunk{Error: &Error{Provider: ProviderOpenAI, Op: "stream", Cause: err}})
				}
				return
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			produced = true
			if !send(ctx, out, &Chunk{Delta: resp.Choices[0].Delta.Content}) {
				return
			}
		}
	}()

	return out, nil
}
