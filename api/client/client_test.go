package client_test

import (
	"context"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/stacks/api"
	"github.com/papercomputeco/stacks/api/client"
	"github.com/papercomputeco/stacks/pkg/chunkstore"
	"github.com/papercomputeco/stacks/pkg/chunkstore/inmemory"
	"github.com/papercomputeco/stacks/pkg/ingest"
	"github.com/papercomputeco/stacks/pkg/logger"
	"github.com/papercomputeco/stacks/pkg/retrieval"
	testutils "github.com/papercomputeco/stacks/pkg/utils/test"
	"github.com/papercomputeco/stacks/pkg/vector"
)

var _ = Describe("Client", func() {
	var (
		ctx context.Context
		c   *client.Client
	)

	BeforeEach(func() {
		ctx = context.Background()
		log := logger.Nop()

		embedder := testutils.NewMockEmbedder()
		embedder.Embeddings["kitten"] = vector.New(0.9, 0.1, 0)

		service, err := retrieval.NewService(retrieval.ServiceConfig{
			Store:     inmemory.NewStore(),
			Embedder:  embedder,
			Generator: testutils.NewMockGenerator("cats purr"),
			TopK:      1,
			Logger:    log,
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = service.Ingest(ctx, "animals", []chunkstore.Entry{
			{Text: "cat", Vector: vector.New(1, 0, 0)},
			{Text: "dog", Vector: vector.New(0, 1, 0)},
		})
		Expect(err).NotTo(HaveOccurred())

		pool, err := ingest.NewPool(&ingest.PoolConfig{Embedder: embedder, Logger: log})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(pool.Close)

		pipeline, err := ingest.NewPipeline(ingest.PipelineConfig{Service: service, Pool: pool, Logger: log})
		Expect(err).NotTo(HaveOccurred())

		server, err := api.NewServer(api.Config{}, service, pipeline, log)
		Expect(err).NotTo(HaveOccurred())

		ts := httptest.NewServer(server.Handler())
		DeferCleanup(ts.Close)

		c, err = client.New(ts.URL)
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects targets without a scheme", func() {
		_, err := client.New("localhost:8081")
		Expect(err).To(HaveOccurred())
	})

	It("pings the server", func() {
		Expect(c.Ping(ctx)).To(Succeed())
	})

	It("lists buckets", func() {
		out, err := c.Buckets(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Count).To(Equal(1))
		Expect(out.Buckets[0].Name).To(Equal("animals"))
		Expect(out.Buckets[0].Chunks).To(Equal(2))
	})

	It("queries a bucket", func() {
		out, err := c.Query(ctx, "animals", "kitten", 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Count).To(Equal(2))
		Expect(out.Matches[0].Text).To(Equal("cat"))
	})

	It("asks a bucket", func() {
		out, err := c.Ask(ctx, "animals", "kitten")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Found).To(BeTrue())
		Expect(out.Answer).To(Equal("cats purr"))
	})

	It("surfaces API errors", func() {
		_, err := c.Query(ctx, "missing", "kitten", 0)
		Expect(err).To(HaveOccurred())
		Expect(client.IsNotFound(err)).To(BeTrue())

		var apiErr *client.APIError
		Expect(err).To(BeAssignableToTypeOf(apiErr))
		Expect(err.(*client.APIError).Code).To(Equal("not_found"))
	})
})
