// Package chunkstore defines the storage contract for bucketed collections of
// text chunks and their embedding vectors.
package chunkstore

import (
	"context"
	"iter"

	"github.com/papercomputeco/stacks/pkg/vector"
)

// Chunk is a stored unit of text paired with its embedding vector.
// A Chunk is never mutated after insertion.
type Chunk struct {
	// ID is assigned on insert. IDs start at 1 and increase by one with
	// every insert into the same collection.
	ID uint64

	// Text is the source text span.
	Text string

	// Vector is the embedding of Text.
	Vector vector.Vector
}

// Entry is a (text, vector) pair waiting to be inserted.
type Entry struct {
	Text   string
	Vector vector.Vector
}

// CollectionInfo describes a collection without reading its chunks.
type CollectionInfo struct {
	Name string `json:"name"`

	// Dimensions is the dimensionality established by the first insert.
	// Zero until the collection holds a chunk.
	Dimensions int `json:"dimensions"`

	// Size is the number of chunks in the collection.
	Size int `json:"size"`
}

// Store persists named collections ("buckets") of chunks.
//
// Implementations must serialize inserts into the same collection so that IDs
// stay gap-free and a reader never sees a half-written chunk. Inserts into
// different collections may proceed in parallel.
type Store interface {
	// CreateCollection creates an empty collection. Returns a
	// *DuplicateCollectionError if the name is already taken.
	CreateCollection(ctx context.Context, name string) error

	// Insert appends a chunk and returns its assigned ID. Returns a
	// *CollectionNotFoundError for unknown collections and a
	// *vector.DimensionMismatchError if vec disagrees with the collection's
	// established dimensionality. A failed insert leaves the collection
	// unchanged.
	Insert(ctx context.Context, name, text string, vec vector.Vector) (uint64, error)

	// ListCollections returns all collection names in ascending order.
	ListCollections(ctx context.Context) ([]string, error)

	// All returns a lazy sequence of every chunk in the collection in
	// ascending ID order. The sequence may be ranged over more than once.
	All(ctx context.Context, name string) (iter.Seq2[Chunk, error], error)

	// Info returns the collection's dimensionality and size.
	Info(ctx context.Context, name string) (CollectionInfo, error)

	// DeleteCollection removes a collection and all of its chunks.
	// Deleting a missing collection is not an error.
	DeleteCollection(ctx context.Context, name string) error

	// Close releases any resources held by the store.
	Close() error
}
