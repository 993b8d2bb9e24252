// Package gemini implements pkg/generation's Generator with the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/papercomputeco/stacks/pkg/generation"
)

// DefaultModel is the default generation model.
const DefaultModel = "gemini-2.0-flash"

// GeneratorConfig holds configuration for the Gemini generator.
type GeneratorConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Temperature    float64
	PromptTemplate string
}

// Generator wraps the Gemini generate content API.
type Generator struct {
	client      *genai.Client
	model       string
	temperature float32
	template    string
}

// NewGenerator creates a new Gemini generator.
func NewGenerator(ctx context.Context, cfg GeneratorConfig) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini generator requires an API key")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Generator{
		client:      client,
		model:       model,
		temperature: float32(cfg.Temperature),
		template:    cfg.PromptTemplate,
	}, nil
}

// Generate sends the rendered prompt as a single user turn.
func (g *Generator) Generate(ctx context.Context, question string, contextChunks []string) (string, error) {
	prompt := generation.BuildPrompt(g.template, question, contextChunks)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("%w: gemini: %w", generation.ErrGeneration, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: gemini returned no text", generation.ErrGeneration)
	}

	return text, nil
}

// Close releases resources held by the generator.
func (g *Generator) Close() error {
	return nil
}

var _ generation.Generator = (*Generator)(nil)
