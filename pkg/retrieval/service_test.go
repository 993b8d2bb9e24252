package retrieval_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/stacks/pkg/chunkstore"
	"github.com/papercomputeco/stacks/pkg/chunkstore/inmemory"
	"github.com/papercomputeco/stacks/pkg/eventstream"
	"github.com/papercomputeco/stacks/pkg/logger"
	"github.com/papercomputeco/stacks/pkg/retrieval"
	testutils "github.com/papercomputeco/stacks/pkg/utils/test"
	"github.com/papercomputeco/stacks/pkg/vector"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []*eventstream.BucketEvent
	err    error
}

func (p *capturePublisher) PublishBucket(_ context.Context, event *eventstream.BucketEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *capturePublisher) Close() error { return nil }

var _ = Describe("Service", func() {
	var (
		ctx   context.Context
		store *inmemory.Store
		pub   *capturePublisher
		svc   *retrieval.Service
	)

	entries := []chunkstore.Entry{
		{Text: "cat", Vector: vector.New(1, 0)},
		{Text: "dog", Vector: vector.New(0, 1)},
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewStore()
		pub = &capturePublisher{}

		embedder := testutils.NewMockEmbedder()
		embedder.Embeddings["cat?"] = vector.New(1, 0)

		var err error
		svc, err = retrieval.NewService(retrieval.ServiceConfig{
			Store:             store,
			Embedder:          embedder,
			Generator:         testutils.NewMockGenerator("meow"),
			Publisher:         pub,
			EmbeddingProvider: "ollama",
			EmbeddingModel:    "nomic-embed-text",
			Logger:            logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Ingest", func() {
		It("creates the bucket and publishes an event", func() {
			result, err := svc.Ingest(ctx, "docs", entries, retrieval.WithOrigin("cli"), retrieval.WithDocument("docs.pdf"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Chunks).To(Equal(2))
			Expect(result.Dimensions).To(Equal(2))
			Expect(result.Replaced).To(BeFalse())

			Expect(pub.events).To(HaveLen(1))
			event := pub.events[0]
			Expect(event.EventType).To(Equal(eventstream.EventTypeBucketIngested))
			Expect(event.Source.Origin).To(Equal("cli"))
			Expect(event.Source.Document).To(Equal("docs.pdf"))
			Expect(event.Source.EmbeddingModel).To(Equal("nomic-embed-text"))
			Expect(event.Bucket.Name).To(Equal("docs"))
			Expect(event.Bucket.Chunks).To(Equal(2))
		})

		It("re-creates an existing bucket", func() {
			_, err := svc.Ingest(ctx, "docs", entries)
			Expect(err).NotTo(HaveOccurred())

			result, err := svc.Ingest(ctx, "docs", entries[:1])
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Chunks).To(Equal(1))
			Expect(result.Replaced).To(BeTrue())

			chunks, err := chunkstore.Collect(ctx, store, "docs")
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(HaveLen(1))
			Expect(chunks[0].ID).To(Equal(uint64(1)))
		})

		It("appends when asked to", func() {
			_, err := svc.Ingest(ctx, "docs", entries)
			Expect(err).NotTo(HaveOccurred())

			result, err := svc.Ingest(ctx, "docs", entries[:1], retrieval.WithAppend())
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Chunks).To(Equal(3))
		})

		It("creates a missing bucket when appending", func() {
			result, err := svc.Ingest(ctx, "fresh", entries, retrieval.WithAppend())
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Chunks).To(Equal(2))
		})

		It("stops on a dimension mismatch and keeps the previous bucket", func() {
			_, err := svc.Ingest(ctx, "docs", entries)
			Expect(err).NotTo(HaveOccurred())
			pub.events = nil

			_, err = svc.Ingest(ctx, "docs", []chunkstore.Entry{
				{Text: "new", Vector: vector.New(1, 0)},
				{Text: "bad", Vector: vector.New(1, 0, 0)},
			})
			Expect(errors.Is(err, vector.ErrDimensionMismatch)).To(BeTrue())
			Expect(pub.events).To(BeEmpty())

			chunks, err := chunkstore.Collect(ctx, store, "docs")
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(HaveLen(2))
			Expect(chunks[0].Text).To(Equal("cat"))
			Expect(chunks[1].Text).To(Equal("dog"))
		})

		It("does not create a bucket for a mismatched batch", func() {
			_, err := svc.Ingest(ctx, "fresh", []chunkstore.Entry{
				{Text: "a", Vector: vector.New(1, 0)},
				{Text: "b", Vector: vector.New(1, 0, 0)},
			})
			Expect(errors.Is(err, vector.ErrDimensionMismatch)).To(BeTrue())

			_, err = store.Info(ctx, "fresh")
			Expect(errors.Is(err, chunkstore.ErrCollectionNotFound)).To(BeTrue())
		})

		It("rejects an append whose dimensionality differs from the bucket", func() {
			_, err := svc.Ingest(ctx, "docs", entries)
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Ingest(ctx, "docs", []chunkstore.Entry{
				{Text: "bird", Vector: vector.New(1, 0, 0)},
			}, retrieval.WithAppend())

			var dimErr *vector.DimensionMismatchError
			Expect(errors.As(err, &dimErr)).To(BeTrue())
			Expect(dimErr.Expected).To(Equal(2))
			Expect(dimErr.Actual).To(Equal(3))

			info, err := store.Info(ctx, "docs")
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Size).To(Equal(2))
		})

		It("rejects empty vectors before writing", func() {
			_, err := svc.Ingest(ctx, "docs", entries)
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Ingest(ctx, "docs", []chunkstore.Entry{{Text: "blank", Vector: vector.New()}})
			Expect(errors.Is(err, chunkstore.ErrEmptyVector)).To(BeTrue())

			info, err := store.Info(ctx, "docs")
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Size).To(Equal(2))
		})

		It("does not fail when publishing fails", func() {
			pub.err = errors.New("broker down")

			_, err := svc.Ingest(ctx, "docs", entries)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Query and Ask", func() {
		BeforeEach(func() {
			_, err := svc.Ingest(ctx, "docs", entries)
			Expect(err).NotTo(HaveOccurred())
		})

		It("queries a bucket", func() {
			result, err := svc.Query(ctx, "docs", "cat?", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Texts()).To(Equal([]string{"cat"}))
		})

		It("answers a question", func() {
			answer, err := svc.Ask(ctx, "docs", "cat?")
			Expect(err).NotTo(HaveOccurred())
			Expect(answer.Answer).To(Equal("meow"))
			Expect(svc.CanAnswer()).To(BeTrue())
		})
	})

	Describe("buckets", func() {
		It("lists buckets with their info", func() {
			_, err := svc.Ingest(ctx, "b", entries)
			Expect(err).NotTo(HaveOccurred())
			Expect(svc.CreateBucket(ctx, "a")).To(Succeed())

			infos, err := svc.Buckets(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(infos).To(Equal([]chunkstore.CollectionInfo{
				{Name: "a", Dimensions: 0, Size: 0},
				{Name: "b", Dimensions: 2, Size: 2},
			}))
		})

		It("deletes buckets idempotently and publishes", func() {
			_, err := svc.Ingest(ctx, "docs", entries)
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.DeleteBucket(ctx, "docs")).To(Succeed())
			Expect(svc.DeleteBucket(ctx, "docs")).To(Succeed())

			_, err = svc.Bucket(ctx, "docs")
			Expect(errors.Is(err, chunkstore.ErrCollectionNotFound)).To(BeTrue())
			Expect(pub.events[len(pub.events)-1].EventType).To(Equal(eventstream.EventTypeBucketDeleted))
		})
	})
})
