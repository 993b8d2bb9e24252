package sqlstore_test

import (
	"context"
	"database/sql"

	"entgo.io/ent/dialect"
	_ "github.com/mattn/go-sqlite3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/stacks/pkg/chunkstore/sqlstore"
	"github.com/papercomputeco/stacks/pkg/logger"
	"github.com/papercomputeco/stacks/pkg/vector"
)

var _ = Describe("Store", func() {
	var (
		ctx   context.Context
		db    *sql.DB
		store *sqlstore.Store
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		db, err = sql.Open("sqlite3", ":memory:")
		Expect(err).NotTo(HaveOccurred())
		db.SetMaxOpenConns(1)

		store, err = sqlstore.New(ctx, db, dialect.SQLite, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	It("rejects an unsupported dialect", func() {
		_, err := sqlstore.New(ctx, db, dialect.MySQL, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("unsupported SQL dialect")))
	})

	It("persists the id counter and dimensionality in the collections table", func() {
		Expect(store.CreateCollection(ctx, "docs")).To(Succeed())
		_, err := store.Insert(ctx, "docs", "cat", vector.New(1, 0, 0))
		Expect(err).NotTo(HaveOccurred())

		var dims, nextID int
		err = db.QueryRowContext(ctx,
			`SELECT dimensions, next_id FROM collections WHERE name = ?`, "docs",
		).Scan(&dims, &nextID)
		Expect(err).NotTo(HaveOccurred())
		Expect(dims).To(Equal(3))
		Expect(nextID).To(Equal(2))
	})

	It("stores vectors as exact float64 blobs", func() {
		Expect(store.CreateCollection(ctx, "docs")).To(Succeed())
		_, err := store.Insert(ctx, "docs", "cat", vector.New(0.1, 0.2))
		Expect(err).NotTo(HaveOccurred())

		var blob []byte
		err = db.QueryRowContext(ctx,
			`SELECT vector FROM chunks WHERE collection = ? AND id = 1`, "docs",
		).Scan(&blob)
		Expect(err).NotTo(HaveOccurred())
		Expect(blob).To(HaveLen(16))
	})

	It("does not write a chunk when the dimension check fails", func() {
		Expect(store.CreateCollection(ctx, "docs")).To(Succeed())
		_, err := store.Insert(ctx, "docs", "cat", vector.New(1, 0))
		Expect(err).NotTo(HaveOccurred())
		_, err = store.Insert(ctx, "docs", "dog", vector.New(1))
		Expect(err).To(HaveOccurred())

		var count int
		Expect(db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)).To(Succeed())
		Expect(count).To(Equal(1))
	})
})
