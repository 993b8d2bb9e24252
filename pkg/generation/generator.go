// Package generation defines the answer generation provider contract used by
// the ask path: a question plus ranked context chunks in, an answer out.
package generation

import "context"

// Generator synthesizes an answer from a question and its context chunks.
type Generator interface {
	// Generate returns the answer text. contextChunks are ordered by
	// relevance, most relevant first.
	Generate(ctx context.Context, question string, contextChunks []string) (string, error)

	// Close releases any resources held by the generator.
	Close() error
}

// DefaultTemperature is used when no temperature is configured.
const DefaultTemperature = 0.7
