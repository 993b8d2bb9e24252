package ingest_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/stacks/pkg/embeddings"
	"github.com/papercomputeco/stacks/pkg/ingest"
	"github.com/papercomputeco/stacks/pkg/logger"
	testutils "github.com/papercomputeco/stacks/pkg/utils/test"
	"github.com/papercomputeco/stacks/pkg/vector"
)

var _ = Describe("Pool", func() {
	var (
		ctx      context.Context
		embedder *testutils.MockEmbedder
		pool     *ingest.Pool
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder()

		var err error
		pool, err = ingest.NewPool(&ingest.PoolConfig{
			Embedder:   embedder,
			NumWorkers: 4,
			Logger:     logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(pool.Close)
	})

	It("requires an embedder", func() {
		_, err := ingest.NewPool(&ingest.PoolConfig{Logger: logger.Nop()})
		Expect(err).To(HaveOccurred())
	})

	It("returns entries in input order", func() {
		texts := make([]string, 50)
		for i := range texts {
			texts[i] = fmt.Sprintf("chunk-%02d", i)
			embedder.Embeddings[texts[i]] = vector.New(float64(i), 1)
		}

		entries, err := pool.Embed(ctx, texts)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(50))
		for i, e := range entries {
			Expect(e.Text).To(Equal(texts[i]))
			Expect(e.Vector).To(Equal(vector.New(float64(i), 1)))
		}
		Expect(embedder.Calls()).To(HaveLen(50))
	})

	It("returns an empty slice for no texts", func() {
		entries, err := pool.Embed(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())
	})

	It("fails the whole batch on the first embedding error", func() {
		embedder.FailOn = "bad"

		_, err := pool.Embed(ctx, []string{"a", "bad", "c"})
		Expect(errors.Is(err, embeddings.ErrEmbedding)).To(BeTrue())
	})

	It("honors cancellation", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := pool.Embed(cctx, []string{"a", "b"})
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	})

	It("is unusable after Close", func() {
		pool.Close()

		_, err := pool.Embed(ctx, []string{"a"})
		Expect(err).To(MatchError(ingest.ErrPoolClosed))
	})
})
