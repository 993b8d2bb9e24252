package retrieval

import (
	"errors"
	"fmt"
)

// Stage names the step of the retrieval path that failed.
type Stage string

const (
	StageEmbedding Stage = "embedding"
	StageRanking   Stage = "ranking"
)

// ErrNoGenerator is returned by Ask when no generator is configured.
var ErrNoGenerator = errors.New("no generation provider configured")

// RetrievalError reports a failure while embedding the question or ranking
// the collection. The cause is available through errors.Is and errors.As,
// so callers can still match chunkstore.ErrCollectionNotFound,
// vector.ErrDimensionMismatch or embeddings.ErrEmbedding.
type RetrievalError struct {
	Stage      Stage
	Collection string
	Err        error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed during %s for bucket %q: %v", e.Stage, e.Collection, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// GenerationError reports that chunks were found but the generator could not
// produce an answer from them.
type GenerationError struct {
	Collection string
	Err        error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed for bucket %q: %v", e.Collection, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
