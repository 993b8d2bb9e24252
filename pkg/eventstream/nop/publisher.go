// Package nop provides the publisher used when no event broker is configured.
package nop

import (
	"context"

	"github.com/papercomputeco/stacks/pkg/eventstream"
)

// Publisher drops bucket events after validating them, so a malformed event
// fails the same way with or without a broker.
type Publisher struct{}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) PublishBucket(_ context.Context, event *eventstream.BucketEvent) error {
	return event.Validate()
}

func (p *Publisher) Close() error {
	return nil
}

var _ eventstream.Publisher = (*Publisher)(nil)
