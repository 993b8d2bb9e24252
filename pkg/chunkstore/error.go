package chunkstore

import (
	"errors"
	"fmt"
)

var (
	// ErrCollectionNotFound is returned when an operation references an
	// unknown collection.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrDuplicateCollection is returned when creating a collection whose
	// name is already taken.
	ErrDuplicateCollection = errors.New("collection already exists")

	// ErrLossyNotAllowed is returned when a backend that stores vectors with
	// reduced precision is opened without an explicit opt-in.
	ErrLossyNotAllowed = errors.New("backend stores float32 vectors; set vector_store.allow_lossy to opt in")

	// ErrEmptyVector is returned when inserting a vector with no components.
	// A collection's dimensionality is always at least 1.
	ErrEmptyVector = errors.New("vector has no components")
)

// CollectionNotFoundError names the missing collection.
type CollectionNotFoundError struct {
	Name string
}

func (e *CollectionNotFoundError) Error() string {
	return fmt.Sprintf("collection not found: %s", e.Name)
}

func (e *CollectionNotFoundError) Is(target error) bool {
	return target == ErrCollectionNotFound
}

// DuplicateCollectionError names the collection that already exists.
type DuplicateCollectionError struct {
	Name string
}

func (e *DuplicateCollectionError) Error() string {
	return fmt.Sprintf("collection already exists: %s", e.Name)
}

func (e *DuplicateCollectionError) Is(target error) bool {
	return target == ErrDuplicateCollection
}

// EmptyVectorError names the collection an empty vector was inserted into.
type EmptyVectorError struct {
	Collection string
}

func (e *EmptyVectorError) Error() string {
	return fmt.Sprintf("cannot insert empty vector into collection %q", e.Collection)
}

func (e *EmptyVectorError) Is(target error) bool {
	return target == ErrEmptyVector
}
