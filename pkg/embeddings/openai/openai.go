// Package openai implements pkg/embeddings' Embedder using the OpenAI
// embeddings API. Any OpenAI-compatible endpoint works via BaseURL.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/papercomputeco/stacks/pkg/embeddings"
	"github.com/papercomputeco/stacks/pkg/vector"
)

// DefaultEmbeddingModel is the default model used for embeddings.
const DefaultEmbeddingModel = "text-embedding-3-small"

// EmbedderConfig holds configuration for the OpenAI embedder.
type EmbedderConfig struct {
	// APIKey is required.
	APIKey string

	// BaseURL overrides the API endpoint, e.g. for an OpenAI-compatible
	// provider. Empty uses the SDK default.
	BaseURL string

	// Model defaults to DefaultEmbeddingModel.
	Model string

	// Dimensions requests shortened embeddings from models that support it.
	// Zero keeps the model's native size.
	Dimensions int
}

// Embedder wraps the OpenAI embeddings API.
type Embedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewEmbedder creates a new OpenAI embedder.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai embedder requires an API key")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
		// Retry policy belongs to the caller.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &Embedder{
		client:     &client,
		model:      model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) (vector.Vector, error) {
	params := openai.EmbeddingNewParams{
		Model:          e.model,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %w", embeddings.ErrEmbedding, err)
	}

	if len(resp.Data) != 1 {
		return nil, fmt.Errorf("%w: expected 1 embedding, got %d", embeddings.ErrEmbedding, len(resp.Data))
	}
	if len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: openai %s returned an empty embedding", embeddings.ErrEmbedding, e.model)
	}

	return vector.New(resp.Data[0].Embedding...), nil
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
