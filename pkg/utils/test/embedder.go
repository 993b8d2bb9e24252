package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/papercomputeco/stacks/pkg/embeddings"
	"github.com/papercomputeco/stacks/pkg/vector"
)

// MockEmbedder is a test embedder that returns predictable embeddings
type MockEmbedder struct {
	Embeddings map[string]vector.Vector

	// FailOn causes Embed to return an error when the input text matches
	FailOn string

	// Block, when set, makes Embed wait until the context is done.
	Block bool

	mu    sync.Mutex
	calls []string
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string]vector.Vector),
	}
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) (vector.Vector, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()

	if m.Block {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %w", embeddings.ErrEmbedding, ctx.Err())
	}

	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("%w: mock embedding failure for: %s", embeddings.ErrEmbedding, text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	// Return a default embedding for any text
	return vector.New(0.1, 0.2, 0.3), nil
}

// Calls returns every text passed to Embed, in call order.
func (m *MockEmbedder) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockEmbedder) Close() error {
	return nil
}
