// Package embeddings defines the text embedding provider contract.
package embeddings

import (
	"context"

	"github.com/papercomputeco/stacks/pkg/vector"
)

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into exactly one vector embedding.
	Embed(ctx context.Context, text string) (vector.Vector, error)

	// Close releases any resources held by the embedder.
	Close() error
}
