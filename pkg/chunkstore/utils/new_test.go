package chunkstoreutils_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/stacks/pkg/chunkstore"
	"github.com/papercomputeco/stacks/pkg/chunkstore/chroma"
	"github.com/papercomputeco/stacks/pkg/chunkstore/inmemory"
	"github.com/papercomputeco/stacks/pkg/chunkstore/sqlite"
	"github.com/papercomputeco/stacks/pkg/chunkstore/sqlitevec"
	chunkstoreutils "github.com/papercomputeco/stacks/pkg/chunkstore/utils"
)

var _ = Describe("NewStore", func() {
	ctx := context.Background()

	It("creates an in-memory store", func() {
		s, err := chunkstoreutils.NewStore(ctx, &chunkstoreutils.NewStoreOpts{ProviderType: "inmemory"})
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(BeAssignableToTypeOf(&inmemory.Store{}))
	})

	It("creates a sqlite store", func() {
		s, err := chunkstoreutils.NewStore(ctx, &chunkstoreutils.NewStoreOpts{
			ProviderType: "sqlite",
			SQLitePath:   filepath.Join(GinkgoT().TempDir(), "stacks.sqlite"),
		})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(s.Close)
		Expect(s).To(BeAssignableToTypeOf(&sqlite.Store{}))
	})

	It("requires a path for sqlite", func() {
		_, err := chunkstoreutils.NewStore(ctx, &chunkstoreutils.NewStoreOpts{ProviderType: "sqlite"})
		Expect(err).To(MatchError(ContainSubstring("database path")))
	})

	It("requires a connection string for postgres", func() {
		_, err := chunkstoreutils.NewStore(ctx, &chunkstoreutils.NewStoreOpts{ProviderType: "postgres"})
		Expect(err).To(MatchError(ContainSubstring("connection string")))
	})

	DescribeTable("refuses lossy providers without AllowLossy",
		func(provider string) {
			_, err := chunkstoreutils.NewStore(ctx, &chunkstoreutils.NewStoreOpts{
				ProviderType: provider,
				SQLitePath:   ":memory:",
				TargetURL:    "http://localhost:8000",
				Dimensions:   3,
			})
			Expect(err).To(MatchError(chunkstore.ErrLossyNotAllowed))
		},
		Entry("sqlitevec", "sqlitevec"),
		Entry("qdrant", "qdrant"),
		Entry("chroma", "chroma"),
	)

	It("creates a sqlitevec store when lossy storage is allowed", func() {
		s, err := chunkstoreutils.NewStore(ctx, &chunkstoreutils.NewStoreOpts{
			ProviderType: "sqlitevec",
			SQLitePath:   ":memory:",
			Dimensions:   3,
			AllowLossy:   true,
		})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(s.Close)
		Expect(s).To(BeAssignableToTypeOf(&sqlitevec.Store{}))
	})

	It("creates a chroma store when lossy storage is allowed", func() {
		s, err := chunkstoreutils.NewStore(ctx, &chunkstoreutils.NewStoreOpts{
			ProviderType: "chroma",
			TargetURL:    "http://localhost:8000",
			AllowLossy:   true,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(BeAssignableToTypeOf(&chroma.Store{}))
	})

	It("rejects unknown providers", func() {
		_, err := chunkstoreutils.NewStore(ctx, &chunkstoreutils.NewStoreOpts{ProviderType: "pinecone"})
		Expect(err).To(MatchError("unsupported chunk store provider: pinecone"))
	})
})
