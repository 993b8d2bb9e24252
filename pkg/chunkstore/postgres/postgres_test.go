package postgres_test

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/stacks/pkg/chunkstore"
	"github.com/papercomputeco/stacks/pkg/chunkstore/postgres"
	"github.com/papercomputeco/stacks/pkg/logger"
	testutils "github.com/papercomputeco/stacks/pkg/utils/test"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("STACKS_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("STACKS_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = Describe("Store", func() {
	testutils.DescribeChunkStore(func() chunkstore.Store {
		ctx := context.Background()
		store, err := postgres.NewStore(ctx, connStr(), logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		// Clean all collections before each test for isolation.
		names, err := store.ListCollections(ctx)
		Expect(err).NotTo(HaveOccurred())
		for _, name := range names {
			Expect(store.DeleteCollection(ctx, name)).To(Succeed())
		}
		return store
	})
})
