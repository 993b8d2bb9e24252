// Package gemini implements pkg/embeddings' Embedder using the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/papercomputeco/stacks/pkg/embeddings"
	"github.com/papercomputeco/stacks/pkg/vector"
)

// DefaultEmbeddingModel is the default model used for embeddings.
const DefaultEmbeddingModel = "text-embedding-004"

// EmbedderConfig holds configuration for the Gemini embedder.
type EmbedderConfig struct {
	// APIKey is required.
	APIKey string

	// BaseURL overrides the API endpoint. Empty uses the SDK default.
	BaseURL string

	// Model defaults to DefaultEmbeddingModel.
	Model string

	// Dimensions sets the output dimensionality. Zero keeps the model's
	// native size.
	Dimensions int
}

// Embedder wraps the Gemini embed content API.
type Embedder struct {
	client     *genai.Client
	model      string
	dimensions int
}

// NewEmbedder creates a new Gemini embedder.
func NewEmbedder(ctx context.Context, cfg EmbedderConfig) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini embedder requires an API key")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
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

	return &Embedder{
		client:     client,
		model:      model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed converts text into a vector embedding. Gemini returns float32
// values, which widen to float64 exactly.
func (e *Embedder) Embed(ctx context.Context, text string) (vector.Vector, error) {
	var cfg *genai.EmbedContentConfig
	if e.dimensions > 0 {
		dims := int32(e.dimensions)
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &dims}
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini: %w", embeddings.ErrEmbedding, err)
	}

	if len(resp.Embeddings) != 1 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("%w: expected 1 embedding, got %d", embeddings.ErrEmbedding, len(resp.Embeddings))
	}
	if len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("%w: gemini %s returned an empty embedding", embeddings.ErrEmbedding, e.model)
	}

	return vector.FromFloat32(resp.Embeddings[0].Values), nil
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
