package eventstream

import "errors"

var (
	// ErrNilBucketEvent indicates a nil bucket event payload was provided to a publisher.
	ErrNilBucketEvent = errors.New("nil bucket event")

	// ErrInvalidBucketEvent indicates an event missing a field every consumer
	// relies on.
	ErrInvalidBucketEvent = errors.New("invalid bucket event")
)
