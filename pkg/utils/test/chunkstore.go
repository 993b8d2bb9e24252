package testutils

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/stacks/pkg/chunkstore"
	"github.com/papercomputeco/stacks/pkg/vector"
)

// DescribeChunkStore registers the behavior every chunkstore.Store backend
// must share. newStore is called before each test; the returned store is
// closed after it.
func DescribeChunkStore(newStore func() chunkstore.Store) {
	var (
		store chunkstore.Store
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = newStore()
	})

	AfterEach(func() {
		if store != nil {
			Expect(store.Close()).To(Succeed())
		}
	})

	Describe("CreateCollection", func() {
		It("creates an empty collection", func() {
			Expect(store.CreateCollection(ctx, "docs")).To(Succeed())

			info, err := store.Info(ctx, "docs")
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Size).To(Equal(0))
			Expect(info.Dimensions).To(Equal(0))
		})

		It("rejects a duplicate name", func() {
			Expect(store.CreateCollection(ctx, "docs")).To(Succeed())

			err := store.CreateCollection(ctx, "docs")
			Expect(errors.Is(err, chunkstore.ErrDuplicateCollection)).To(BeTrue())

			var dupErr *chunkstore.DuplicateCollectionError
			Expect(errors.As(err, &dupErr)).To(BeTrue())
			Expect(dupErr.Name).To(Equal("docs"))
		})
	})

	Describe("Insert", func() {
		BeforeEach(func() {
			Expect(store.CreateCollection(ctx, "docs")).To(Succeed())
		})

		It("assigns sequential IDs starting at 1", func() {
			for want := uint64(1); want <= 3; want++ {
				id, err := store.Insert(ctx, "docs", "chunk", vector.New(1, 0))
				Expect(err).NotTo(HaveOccurred())
				Expect(id).To(Equal(want))
			}
		})

		It("establishes dimensionality on the first insert", func() {
			_, err := store.Insert(ctx, "docs", "cat", vector.New(1, 0, 0))
			Expect(err).NotTo(HaveOccurred())

			info, err := store.Info(ctx, "docs")
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Dimensions).To(Equal(3))
			Expect(info.Size).To(Equal(1))
		})

		It("rejects a mismatched dimensionality and leaves the size unchanged", func() {
			_, err := store.Insert(ctx, "docs", "cat", vector.New(1, 0))
			Expect(err).NotTo(HaveOccurred())

			_, err = store.Insert(ctx, "docs", "dog", vector.New(1, 0, 0))
			Expect(errors.Is(err, vector.ErrDimensionMismatch)).To(BeTrue())

			var dimErr *vector.DimensionMismatchError
			Expect(errors.As(err, &dimErr)).To(BeTrue())
			Expect(dimErr.Collection).To(Equal("docs"))
			Expect(dimErr.Expected).To(Equal(2))
			Expect(dimErr.Actual).To(Equal(3))

			info, err := store.Info(ctx, "docs")
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Size).To(Equal(1))

			id, err := store.Insert(ctx, "docs", "kitten", vector.New(0.9, 0.1))
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal(uint64(2)))
		})

		It("rejects an empty vector without fixing the dimensionality", func() {
			_, err := store.Insert(ctx, "docs", "blank", vector.New())
			Expect(errors.Is(err, chunkstore.ErrEmptyVector)).To(BeTrue())

			var emptyErr *chunkstore.EmptyVectorError
			Expect(errors.As(err, &emptyErr)).To(BeTrue())
			Expect(emptyErr.Collection).To(Equal("docs"))

			info, err := store.Info(ctx, "docs")
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Size).To(Equal(0))
			Expect(info.Dimensions).To(Equal(0))

			id, err := store.Insert(ctx, "docs", "cat", vector.New(1, 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal(uint64(1)))

			_, err = store.Insert(ctx, "docs", "dog", vector.New(1, 0, 0))
			Expect(errors.Is(err, vector.ErrDimensionMismatch)).To(BeTrue())

			chunks, err := chunkstore.Collect(ctx, store, "docs")
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(HaveLen(1))
			Expect(chunks[0].Vector.Dim()).To(Equal(2))
		})

		It("fails for a missing collection", func() {
			_, err := store.Insert(ctx, "missing", "cat", vector.New(1, 0))
			Expect(errors.Is(err, chunkstore.ErrCollectionNotFound)).To(BeTrue())
		})

		It("keeps IDs gap-free under concurrent inserts", func() {
			const writers, perWriter = 4, 10

			var wg sync.WaitGroup
			for range writers {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					for range perWriter {
						_, err := store.Insert(ctx, "docs", "chunk", vector.New(1, 0))
						Expect(err).NotTo(HaveOccurred())
					}
				}()
			}
			wg.Wait()

			chunks, err := chunkstore.Collect(ctx, store, "docs")
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(HaveLen(writers * perWriter))
			for i, chunk := range chunks {
				Expect(chunk.ID).To(Equal(uint64(i + 1)))
			}
		})
	})

	Describe("All", func() {
		It("yields chunks in ascending ID order with exact vectors", func() {
			Expect(store.CreateCollection(ctx, "docs")).To(Succeed())
			entries := []chunkstore.Entry{
				{Text: "cat", Vector: vector.New(1, 0)},
				{Text: "dog", Vector: vector.New(0, 1)},
				{Text: "kitten", Vector: vector.New(0.9, 0.1)},
			}
			n, err := chunkstore.InsertBatch(ctx, store, "docs", entries)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(3))

			chunks, err := chunkstore.Collect(ctx, store, "docs")
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(HaveLen(3))
			for i, chunk := range chunks {
				Expect(chunk.ID).To(Equal(uint64(i + 1)))
				Expect(chunk.Text).To(Equal(entries[i].Text))
				Expect(chunk.Vector.Equal(entries[i].Vector)).To(BeTrue())
			}
		})

		It("can be ranged over more than once", func() {
			Expect(store.CreateCollection(ctx, "docs")).To(Succeed())
			_, err := store.Insert(ctx, "docs", "cat", vector.New(1, 0))
			Expect(err).NotTo(HaveOccurred())

			seq, err := store.All(ctx, "docs")
			Expect(err).NotTo(HaveOccurred())

			for range 2 {
				count := 0
				for _, err := range seq {
					Expect(err).NotTo(HaveOccurred())
					count++
				}
				Expect(count).To(Equal(1))
			}
		})

		It("stops early when the consumer breaks", func() {
			Expect(store.CreateCollection(ctx, "docs")).To(Succeed())
			for range 3 {
				_, err := store.Insert(ctx, "docs", "chunk", vector.New(1, 0))
				Expect(err).NotTo(HaveOccurred())
			}

			seq, err := store.All(ctx, "docs")
			Expect(err).NotTo(HaveOccurred())

			var seen []uint64
			for chunk, err := range seq {
				Expect(err).NotTo(HaveOccurred())
				seen = append(seen, chunk.ID)
				break
			}
			Expect(seen).To(Equal([]uint64{1}))
		})

		It("fails for a missing collection", func() {
			_, err := store.All(ctx, "missing")
			Expect(errors.Is(err, chunkstore.ErrCollectionNotFound)).To(BeTrue())
		})
	})

	Describe("ListCollections", func() {
		It("returns every collection sorted by name", func() {
			Expect(store.CreateCollection(ctx, "zeta")).To(Succeed())
			Expect(store.CreateCollection(ctx, "alpha")).To(Succeed())

			names, err := store.ListCollections(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{"alpha", "zeta"}))
		})

		It("returns an empty list for an empty store", func() {
			names, err := store.ListCollections(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(BeEmpty())
		})
	})

	Describe("DeleteCollection", func() {
		It("removes the collection and its chunks", func() {
			Expect(store.CreateCollection(ctx, "docs")).To(Succeed())
			_, err := store.Insert(ctx, "docs", "cat", vector.New(1, 0))
			Expect(err).NotTo(HaveOccurred())

			Expect(store.DeleteCollection(ctx, "docs")).To(Succeed())

			_, err = store.Info(ctx, "docs")
			Expect(errors.Is(err, chunkstore.ErrCollectionNotFound)).To(BeTrue())

			Expect(store.CreateCollection(ctx, "docs")).To(Succeed())
			id, err := store.Insert(ctx, "docs", "dog", vector.New(1, 0, 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal(uint64(1)))
		})

		It("is idempotent", func() {
			Expect(store.DeleteCollection(ctx, "missing")).To(Succeed())
			Expect(store.DeleteCollection(ctx, "missing")).To(Succeed())
		})

		It("does not affect other collections", func() {
			Expect(store.CreateCollection(ctx, "a")).To(Succeed())
			Expect(store.CreateCollection(ctx, "b")).To(Succeed())
			_, err := store.Insert(ctx, "b", "kept", vector.New(1))
			Expect(err).NotTo(HaveOccurred())

			Expect(store.DeleteCollection(ctx, "a")).To(Succeed())

			info, err := store.Info(ctx, "b")
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Size).To(Equal(1))
		})
	})

	Describe("Recreate", func() {
		It("empties an existing collection", func() {
			Expect(store.CreateCollection(ctx, "docs")).To(Succeed())
			_, err := store.Insert(ctx, "docs", "cat", vector.New(1, 0))
			Expect(err).NotTo(HaveOccurred())

			Expect(chunkstore.Recreate(ctx, store, "docs")).To(Succeed())

			info, err := store.Info(ctx, "docs")
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Size).To(Equal(0))
			Expect(info.Dimensions).To(Equal(0))
		})
	})
}
