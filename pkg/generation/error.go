package generation

import "errors"

// ErrGeneration is returned when a provider fails to produce an answer.
var ErrGeneration = errors.New("generation failed")
