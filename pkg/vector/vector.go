// Package vector provides the embedding vector value type and the similarity
// primitives used to rank stored chunks against a query.
package vector

import (
	"math"
)

// Vector is an embedding: an ordered, fixed-length sequence of float64 values.
// A Vector is treated as immutable once constructed; constructors copy their
// input so callers cannot mutate a stored vector through a shared slice.
type Vector []float64

// New creates a Vector from the given values.
func New(values ...float64) Vector {
	v := make(Vector, len(values))
	copy(v, values)
	return v
}

// FromFloat32 widens a float32 embedding, as returned by most embedding APIs,
// into a Vector. Widening is exact.
func FromFloat32(values []float32) Vector {
	v := make(Vector, len(values))
	for i, f := range values {
		v[i] = float64(f)
	}
	return v
}

// Float32 narrows the vector to float32. This is lossy and is only used by
// storage backends that have been explicitly configured to allow it.
func (v Vector) Float32() []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

// Dim returns the dimensionality of the vector.
func (v Vector) Dim() int {
	return len(v)
}

// Clone returns a copy of v.
func (v Vector) Clone() Vector {
	return New(v...)
}

// Norm returns the Euclidean (L2) norm of the vector.
func (v Vector) Norm() float64 {
	var sum float64
	for _, f := range v {
		sum += f * f
	}
	return math.Sqrt(sum)
}

// Dot returns the sum of the elementwise products of v and other.
func (v Vector) Dot(other Vector) (float64, error) {
	if len(v) != len(other) {
		return 0, &DimensionMismatchError{Expected: len(v), Actual: len(other)}
	}

	var sum float64
	for i := range v {
		sum += v[i] * other[i]
	}
	return sum, nil
}

// Cosine returns the cosine similarity of v and other: their dot product
// divided by the product of their norms. Returns ErrZeroNorm if either vector
// has a zero norm.
func (v Vector) Cosine(other Vector) (float64, error) {
	dot, err := v.Dot(other)
	if err != nil {
		return 0, err
	}

	na, nb := v.Norm(), other.Norm()
	if na == 0 || nb == 0 {
		return 0, ErrZeroNorm
	}

	return dot / (na * nb), nil
}

// Equal reports whether v and other have the same dimensionality and
// bit-identical values.
func (v Vector) Equal(other Vector) bool {
	if len(v) != len(other) {
		return false
	}
	for i := range v {
		if math.Float64bits(v[i]) != math.Float64bits(other[i]) {
			return false
		}
	}
	return true
}
