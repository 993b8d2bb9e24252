// Package openai implements pkg/generation's Generator with OpenAI chat
// completions. Any OpenAI-compatible endpoint works via BaseURL.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/papercomputeco/stacks/pkg/generation"
)

// DefaultModel is the default chat model.
const DefaultModel = "gpt-4o-mini"

// GeneratorConfig holds configuration for the OpenAI generator.
type GeneratorConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Temperature    float64
	PromptTemplate string
}

// Generator wraps the chat completions API.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float64
	template    string
}

// NewGenerator creates a new OpenAI generator.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai generator requires an API key")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: 2 * time.Minute}),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &Generator{
		client:      &client,
		model:       model,
		temperature: cfg.Temperature,
		template:    cfg.PromptTemplate,
	}, nil
}

// Generate sends the rendered prompt as a single user message.
func (g *Generator) Generate(ctx context.Context, question string, contextChunks []string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(generation.BuildPrompt(g.template, question, contextChunks)),
		},
		Temperature: openai.Float(g.temperature),
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: openai: %w", generation.ErrGeneration, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", generation.ErrGeneration)
	}

	return resp.Choices[0].Message.Content, nil
}

// Close releases resources held by the generator.
func (g *Generator) Close() error {
	return nil
}

var _ generation.Generator = (*Generator)(nil)
