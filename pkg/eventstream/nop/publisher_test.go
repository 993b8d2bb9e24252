package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/stacks/pkg/eventstream"
	"github.com/papercomputeco/stacks/pkg/eventstream/nop"
)

var _ = Describe("Publisher", func() {
	var p *nop.Publisher

	BeforeEach(func() {
		p = nop.NewPublisher()
	})

	It("accepts well-formed events", func() {
		event := eventstream.NewBucketEvent(eventstream.EventTypeBucketIngested,
			eventstream.EventSource{Origin: "cli"},
			eventstream.BucketMeta{Name: "handbook", Chunks: 3, Dimensions: 768})
		Expect(p.PublishBucket(context.Background(), event)).To(Succeed())
	})

	It("rejects nil events", func() {
		Expect(p.PublishBucket(context.Background(), nil)).To(MatchError(eventstream.ErrNilBucketEvent))
	})

	It("rejects events without a bucket", func() {
		event := eventstream.NewBucketEvent(eventstream.EventTypeBucketDeleted, eventstream.EventSource{}, eventstream.BucketMeta{})
		Expect(p.PublishBucket(context.Background(), event)).To(MatchError(eventstream.ErrInvalidBucketEvent))
	})

	It("closes successfully", func() {
		Expect(p.Close()).To(Succeed())
	})
})
