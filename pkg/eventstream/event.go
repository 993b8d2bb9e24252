package eventstream

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeBucketIngested is emitted after a bucket is (re)built.
	EventTypeBucketIngested = "stacks.bucket.ingested"

	// EventTypeBucketDeleted is emitted after a bucket is deleted.
	EventTypeBucketDeleted = "stacks.bucket.deleted"
)

// BucketEvent is a transport-neutral event payload describing a change to a
// bucket.
type BucketEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`
	Bucket        BucketMeta  `json:"bucket"`
}

// EventSource identifies what produced the change.
type EventSource struct {
	// Origin is the surface that triggered the change, e.g. "cli", "api",
	// "watch" or "mcp".
	Origin string `json:"origin"`

	// Document is the source document path or name, when there is one.
	Document string `json:"document,omitempty"`

	// EmbeddingProvider and EmbeddingModel record how the vectors were made.
	EmbeddingProvider string `json:"embedding_provider,omitempty"`
	EmbeddingModel    string `json:"embedding_model,omitempty"`
}

// BucketMeta captures the bucket state after the change.
type BucketMeta struct {
	Name       string `json:"name"`
	Chunks     int    `json:"chunks"`
	Dimensions int    `json:"dimensions"`
	Replaced   bool   `json:"replaced"`
	DurationMs int64  `json:"duration_ms"`
}

// NewBucketEvent stamps a new event with a fresh ID and the current time.
func NewBucketEvent(eventType string, source EventSource, bucket BucketMeta) *BucketEvent {
	return &BucketEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Bucket:        bucket,
	}
}

// Validate checks the fields consumers key on: the event type, ID and bucket
// name.
func (e *BucketEvent) Validate() error {
	switch {
	case e == nil:
		return ErrNilBucketEvent
	case e.EventType == "":
		return fmt.Errorf("%w: missing event type", ErrInvalidBucketEvent)
	case e.EventID == "":
		return fmt.Errorf("%w: missing event id", ErrInvalidBucketEvent)
	case e.Bucket.Name == "":
		return fmt.Errorf("%w: missing bucket name", ErrInvalidBucketEvent)
	default:
		return nil
	}
}
