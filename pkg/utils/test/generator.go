package testutils

import (
	"context"
	"fmt"

	"github.com/papercomputeco/stacks/pkg/generation"
)

// MockGenerator is a test generator that records the last call.
type MockGenerator struct {
	// Answer is returned by Generate.
	Answer string

	// Fail causes Generate to return an error.
	Fail bool

	// Block, when set, makes Generate wait until the context is done.
	Block bool

	LastQuestion string
	LastContext  []string
	CallCount    int
}

func NewMockGenerator(answer string) *MockGenerator {
	return &MockGenerator{Answer: answer}
}

func (m *MockGenerator) Generate(ctx context.Context, question string, contextChunks []string) (string, error) {
	m.CallCount++
	m.LastQuestion = question
	m.LastContext = append([]string(nil), contextChunks...)

	if m.Block {
		<-ctx.Done()
		return "", fmt.Errorf("%w: %w", generation.ErrGeneration, ctx.Err())
	}

	if m.Fail {
		return "", fmt.Errorf("%w: mock generation failure", generation.ErrGeneration)
	}

	return m.Answer, nil
}

func (m *MockGenerator) Close() error {
	return nil
}
