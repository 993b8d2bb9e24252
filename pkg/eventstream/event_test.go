package eventstream_test

import (
	"encoding/json"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/stacks/pkg/eventstream"
)

var _ = Describe("Event", func() {
	It("marshals BucketEvent with expected top-level keys", func() {
		event := eventstream.NewBucketEvent(eventstream.EventTypeBucketIngested,
			eventstream.EventSource{Origin: "api", Document: "cats.pdf"},
			eventstream.BucketMeta{Name: "cats", Chunks: 12, Dimensions: 768, Replaced: true},
		)

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("source"))
		Expect(got).To(HaveKey("bucket"))
	})

	It("stamps unique IDs", func() {
		a := eventstream.NewBucketEvent(eventstream.EventTypeBucketDeleted, eventstream.EventSource{}, eventstream.BucketMeta{})
		b := eventstream.NewBucketEvent(eventstream.EventTypeBucketDeleted, eventstream.EventSource{}, eventstream.BucketMeta{})

		Expect(strings.HasPrefix(a.EventID, "evt_")).To(BeTrue())
		Expect(a.EventID).NotTo(Equal(b.EventID))
		Expect(a.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
	})

	It("defines stable event constants", func() {
		Expect(eventstream.EventTypeBucketIngested).To(Equal("stacks.bucket.ingested"))
		Expect(eventstream.EventTypeBucketDeleted).To(Equal("stacks.bucket.deleted"))
	})

	Describe("Validate", func() {
		It("accepts a stamped event", func() {
			event := eventstream.NewBucketEvent(eventstream.EventTypeBucketIngested,
				eventstream.EventSource{Origin: "watch"}, eventstream.BucketMeta{Name: "manual"})
			Expect(event.Validate()).To(Succeed())
		})

		It("rejects nil and incomplete events", func() {
			var nilEvent *eventstream.BucketEvent
			Expect(nilEvent.Validate()).To(MatchError(eventstream.ErrNilBucketEvent))

			Expect((&eventstream.BucketEvent{EventID: "evt_1", Bucket: eventstream.BucketMeta{Name: "b"}}).Validate()).
				To(MatchError(ContainSubstring("missing event type")))
			Expect((&eventstream.BucketEvent{EventType: "t", Bucket: eventstream.BucketMeta{Name: "b"}}).Validate()).
				To(MatchError(ContainSubstring("missing event id")))
			Expect((&eventstream.BucketEvent{EventType: "t", EventID: "evt_1"}).Validate()).
				To(MatchError(eventstream.ErrInvalidBucketEvent))
		})
	})
})
