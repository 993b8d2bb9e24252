// Package similarity ranks the chunks of a collection against a query vector.
//
// The index is brute force: every chunk is scored, then the scores are sorted.
// Results are deterministic for a fixed collection snapshot, query, topK and
// metric.
package similarity

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/papercomputeco/stacks/pkg/chunkstore"
	"github.com/papercomputeco/stacks/pkg/vector"
)

// Match is a ranked chunk.
type Match struct {
	ID    uint64  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Result is the outcome of a query.
type Result struct {
	Collection string        `json:"collection"`
	Metric     vector.Metric `json:"metric"`
	Matches    []Match       `json:"matches"`

	// Excluded counts chunks dropped because their score was undefined
	// (a zero-norm vector under cosine, or a NaN score).
	Excluded int `json:"excluded"`

	// Empty is true when the collection held no chunks.
	Empty bool `json:"empty"`
}

// Texts returns the matched chunk texts in rank order.
func (r *Result) Texts() []string {
	texts := make([]string, len(r.Matches))
	for i, m := range r.Matches {
		texts[i] = m.Text
	}
	return texts
}

// Index scores and ranks stored chunks.
type Index struct {
	logger *slog.Logger
}

// NewIndex creates an Index.
func NewIndex(logger *slog.Logger) *Index {
	return &Index{logger: logger}
}

// Query returns the topK chunks of the collection most similar to query,
// highest score first. Equal scores are ordered by ascending chunk ID.
//
// An empty collection yields an empty result with Empty set, not an error.
// A topK of zero or less yields no matches.
func (idx *Index) Query(
	ctx context.Context,
	store chunkstore.Store,
	collection string,
	query vector.Vector,
	topK int,
	metric vector.Metric,
) (*Result, error) {
	if metric == "" {
		metric = vector.DefaultMetric
	}

	info, err := store.Info(ctx, collection)
	if err != nil {
		return nil, err
	}

	if info.Dimensions != 0 && info.Dimensions != query.Dim() {
		return nil, &vector.DimensionMismatchError{
			Collection: collection,
			Expected:   info.Dimensions,
			Actual:     query.Dim(),
		}
	}

	result := &Result{
		Collection: collection,
		Metric:     metric,
		Matches:    []Match{},
	}

	if info.Size == 0 {
		result.Empty = true
		return result, nil
	}

	seq, err := store.All(ctx, collection)
	if err != nil {
		return nil, err
	}

	scored := make([]Match, 0, info.Size)
	for chunk, err := range seq {
		if err != nil {
			return nil, fmt.Errorf("reading collection %s: %w", collection, err)
		}

		score, err := metric.Score(query, chunk.Vector)
		switch {
		case errors.Is(err, vector.ErrZeroNorm):
			result.Excluded++
			continue
		case err != nil:
			return nil, scoreError(collection, chunk.ID, err)
		case math.IsNaN(score):
			result.Excluded++
			continue
		}

		scored = append(scored, Match{
			ID:    chunk.ID,
			Text:  chunk.Text,
			Score: score,
		})
	}

	if len(scored) == 0 && result.Excluded == 0 {
		result.Empty = true
	}

	if result.Excluded > 0 {
		idx.logger.Warn("excluded chunks with undefined similarity",
			"collection", collection,
			"metric", metric.String(),
			"excluded", result.Excluded,
		)
	}

	slices.SortFunc(scored, compareMatches)

	if topK <= 0 {
		return result, nil
	}
	if topK > len(scored) {
		topK = len(scored)
	}
	result.Matches = scored[:topK:topK]

	idx.logger.Debug("ranked collection",
		"collection", collection,
		"metric", metric.String(),
		"scored", len(scored),
		"returned", len(result.Matches),
	)

	return result, nil
}

// compareMatches orders by descending score, then ascending ID.
func compareMatches(a, b Match) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// scoreError attributes a per-chunk scoring failure to the collection.
func scoreError(collection string, id uint64, err error) error {
	var dimErr *vector.DimensionMismatchError
	if errors.As(err, &dimErr) {
		return &vector.DimensionMismatchError{
			Collection: collection,
			Expected:   dimErr.Actual,
			Actual:     dimErr.Expected,
		}
	}
	return fmt.Errorf("scoring chunk %d of %s: %w", id, collection, err)
}
