package sqlstore

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/papercomputeco/stacks/pkg/vector"
)

// EncodeVector serializes a vector as little-endian float64 values.
// The encoding is exact.
func EncodeVector(v vector.Vector) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

// DecodeVector converts a little-endian float64 blob back into a vector.
func DecodeVector(b []byte) (vector.Vector, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("invalid vector blob length %d: must be divisible by 8", len(b))
	}

	v := make(vector.Vector, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v, nil
}
