// Package anthropic implements pkg/generation's Generator against the
// Anthropic messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/papercomputeco/stacks/pkg/generation"
)

const (
	// DefaultModel is the default messages model.
	DefaultModel = "claude-haiku-4-5-20251001"

	defaultMaxTokens = 1024
)

// GeneratorConfig holds configuration for the Anthropic generator.
type GeneratorConfig struct {
	APIKey string

	// BaseURL overrides the API endpoint. Empty uses the SDK default.
	BaseURL        string
	Model          string
	Temperature    float64
	PromptTemplate string
}

// Generator wraps the messages API.
type Generator struct {
	client      *anthropic.Client
	model       string
	temperature float64
	template    string
}

// NewGenerator creates a new Anthropic generator.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic generator requires an API key")
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
	client := anthropic.NewClient(opts...)

	return &Generator{
		client:      &client,
		model:       model,
		temperature: cfg.Temperature,
		template:    cfg.PromptTemplate,
	}, nil
}

// Generate sends the rendered prompt as a single user message and joins the
// text blocks of the reply.
func (g *Generator) Generate(ctx context.Context, question string, contextChunks []string) (string, error) {
	prompt := generation.BuildPrompt(g.template, question, contextChunks)

	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(g.model),
		MaxTokens:   defaultMaxTokens,
		Temperature: anthropic.Float(g.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: anthropic: %w", generation.ErrGeneration, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: anthropic returned no content", generation.ErrGeneration)
	}

	return sb.String(), nil
}

// Close releases resources held by the generator.
func (g *Generator) Close() error {
	return nil
}

var _ generation.Generator = (*Generator)(nil)
