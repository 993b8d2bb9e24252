// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"context"
	"fmt"

	"github.com/papercomputeco/stacks/pkg/embeddings"
	"github.com/papercomputeco/stacks/pkg/embeddings/gemini"
	"github.com/papercomputeco/stacks/pkg/embeddings/ollama"
	"github.com/papercomputeco/stacks/pkg/embeddings/openai"
)

// SupportedProviders lists the embedding provider names NewEmbedder accepts.
var SupportedProviders = []string{"ollama", "openai", "gemini"}

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string
	Dimensions   int
}

func NewEmbedder(ctx context.Context, o *NewEmbedderOpts) (embeddings.Embedder, error) {
	switch o.ProviderType {
	case "ollama":
		return wrap(ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL:    o.TargetURL,
			Model:      o.Model,
			Dimensions: o.Dimensions,
		}))
	case "openai":
		return wrap(openai.NewEmbedder(openai.EmbedderConfig{
			APIKey:     o.APIKey,
			BaseURL:    o.TargetURL,
			Model:      o.Model,
			Dimensions: o.Dimensions,
		}))
	case "gemini":
		return wrap(gemini.NewEmbedder(ctx, gemini.EmbedderConfig{
			APIKey:     o.APIKey,
			BaseURL:    o.TargetURL,
			Model:      o.Model,
			Dimensions: o.Dimensions,
		}))
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
}

// wrap keeps a failed constructor from returning a typed nil.
func wrap[T embeddings.Embedder](v T, err error) (embeddings.Embedder, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}
