package vector

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when two vectors, or a vector and a
	// collection, disagree on dimensionality.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrZeroNorm is returned by cosine similarity when either vector has a
	// zero norm (a degenerate, all-zero embedding).
	ErrZeroNorm = errors.New("zero norm vector")
)

// DimensionMismatchError carries the expected and actual dimensionality.
// Collection is set when the mismatch is against a stored collection.
type DimensionMismatchError struct {
	Collection string
	Expected   int
	Actual     int
}

func (e *DimensionMismatchError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
	}
	return fmt.Sprintf("dimension mismatch for collection %q: expected %d, got %d",
		e.Collection, e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}
