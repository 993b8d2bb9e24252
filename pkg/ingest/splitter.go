package ingest

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 300
	DefaultChunkOverlap = 100
	DefaultSeparator    = "\n\n"
)

// Chunker splits document text into chunks.
type Chunker interface {
	Split(text string) []string
}

// CharacterSplitter splits text on a separator and greedily merges the
// pieces into chunks of at most ChunkSize characters, carrying up to
// ChunkOverlap characters of trailing pieces into the next chunk. A single
// piece longer than ChunkSize becomes its own oversized chunk.
type CharacterSplitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separator    string
}

// NewCharacterSplitter creates a splitter with the default separator.
func NewCharacterSplitter(size, overlap int) (*CharacterSplitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap > size {
		return nil, fmt.Errorf("chunk overlap %d must be between 0 and chunk size %d", overlap, size)
	}

	return &CharacterSplitter{
		ChunkSize:    size,
		ChunkOverlap: overlap,
		Separator:    DefaultSeparator,
	}, nil
}

// Split returns the chunks of text in document order.
func (s *CharacterSplitter) Split(text string) []string {
	var pieces []string
	if s.Separator == "" {
		pieces = strings.Split(text, "")
	} else {
		pieces = strings.Split(text, s.Separator)
	}

	splits := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if p != "" {
			splits = append(splits, p)
		}
	}

	return s.merge(splits)
}

func (s *CharacterSplitter) merge(splits []string) []string {
	sepLen := utf8.RuneCountInString(s.Separator)

	var (
		chunks  []string
		current []string
		total   int
	)

	// joinLen is the separator cost of adding one more piece to current.
	joinLen := func() int {
		if len(current) > 0 {
			return sepLen
		}
		return 0
	}

	for _, piece := range splits {
		n := utf8.RuneCountInString(piece)

		if total+n+joinLen() > s.ChunkSize && len(current) > 0 {
			if chunk := s.join(current); chunk != "" {
				chunks = append(chunks, chunk)
			}

			for total > s.ChunkOverlap || (total+n+joinLen() > s.ChunkSize && total > 0) {
				drop := utf8.RuneCountInString(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}

		current = append(current, piece)
		total += n
		if len(current) > 1 {
			total += sepLen
		}
	}

	if chunk := s.join(current); chunk != "" {
		chunks = append(chunks, chunk)
	}

	return chunks
}

func (s *CharacterSplitter) join(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, s.Separator))
}
