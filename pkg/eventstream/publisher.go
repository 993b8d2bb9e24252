package eventstream

import "context"

// Publisher publishes bucket events to an event stream backend.
type Publisher interface {
	PublishBucket(ctx context.Context, event *BucketEvent) error
	Close() error
}
