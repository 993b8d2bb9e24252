// Package qdrant provides a chunk store backed by a Qdrant server. Each
// bucket is a Qdrant collection whose points are keyed by chunk ID. Qdrant
// stores float32 vectors, so the store must be opened with AllowLossy.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sort"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/stacks/pkg/chunkstore"
	"github.com/papercomputeco/stacks/pkg/vector"
)

const (
	// DefaultCollectionPrefix namespaces stacks buckets on a shared server.
	DefaultCollectionPrefix = "stacks_"

	// DefaultPort is Qdrant's gRPC port.
	DefaultPort = 6334

	textPayloadKey = "text"
	scrollPageSize = 256
)

// Client is the subset of the Qdrant client used by the store.
type Client interface {
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	DeleteCollection(ctx context.Context, collectionName string) error
	ListCollections(ctx context.Context) ([]string, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
	Scroll(ctx context.Context, request *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error)
	Close() error
}

// Config holds configuration for the Qdrant store.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool

	// Dimensions sizes every Qdrant collection. Required.
	Dimensions uint

	// CollectionPrefix defaults to DefaultCollectionPrefix.
	CollectionPrefix string

	// AllowLossy acknowledges that vectors are narrowed to float32.
	AllowLossy bool
}

// Store implements chunkstore.Store on Qdrant. IDs are derived from the
// point count under a per-collection lock, so a bucket must only be written
// by one stacks process at a time.
type Store struct {
	client     Client
	prefix     string
	dimensions int
	locks      chunkstore.Locks
	logger     *slog.Logger
}

// NewStore connects to Qdrant.
func NewStore(c Config, logger *slog.Logger) (*Store, error) {
	if !c.AllowLossy {
		return nil, chunkstore.ErrLossyNotAllowed
	}

	if c.Host == "" {
		return nil, fmt.Errorf("qdrant host is required")
	}

	port := c.Port
	if port == 0 {
		port = DefaultPort
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   c.Host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	store, err := NewStoreWithClient(client, c, logger)
	if err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("connected to qdrant",
		"host", c.Host,
		"port", port,
		"dimensions", c.Dimensions,
	)

	return store, nil
}

// NewStoreWithClient builds a store around an existing client.
func NewStoreWithClient(client Client, c Config, logger *slog.Logger) (*Store, error) {
	if !c.AllowLossy {
		return nil, chunkstore.ErrLossyNotAllowed
	}

	if c.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions cannot be 0, must be configured")
	}

	prefix := c.CollectionPrefix
	if prefix == "" {
		prefix = DefaultCollectionPrefix
	}

	return &Store{
		client:     client,
		prefix:     prefix,
		dimensions: int(c.Dimensions),
		logger:     logger,
	}, nil
}

func (s *Store) remoteName(name string) string {
	return s.prefix + name
}

func (s *Store) exists(ctx context.Context, name string) error {
	ok, err := s.client.CollectionExists(ctx, s.remoteName(name))
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", name, err)
	}
	if !ok {
		return &chunkstore.CollectionNotFoundError{Name: name}
	}
	return nil
}

func (s *Store) count(ctx context.Context, name string) (uint64, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.remoteName(name),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points of %s: %w", name, err)
	}
	return n, nil
}

// CreateCollection creates a Qdrant collection sized to the configured
// dimensions.
func (s *Store) CreateCollection(ctx context.Context, name string) error {
	defer s.locks.Exclusive()()

	err := s.exists(ctx, name)
	if err == nil {
		return &chunkstore.DuplicateCollectionError{Name: name}
	}
	if !isNotFound(err) {
		return err
	}

	if err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.remoteName(name),
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	s.logger.Debug("created qdrant collection", "collection", name)
	return nil
}

// Insert upserts a point whose ID is the collection's current size plus one.
func (s *Store) Insert(ctx context.Context, name, text string, vec vector.Vector) (uint64, error) {
	if vec.Dim() == 0 {
		return 0, &chunkstore.EmptyVectorError{Collection: name}
	}

	defer s.locks.Writer(name)()

	if err := s.exists(ctx, name); err != nil {
		return 0, err
	}

	if vec.Dim() != s.dimensions {
		return 0, &vector.DimensionMismatchError{
			Collection: name,
			Expected:   s.dimensions,
			Actual:     vec.Dim(),
		}
	}

	n, err := s.count(ctx, name)
	if err != nil {
		return 0, err
	}
	id := n + 1

	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.remoteName(name),
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDNum(id),
				Vectors: qdrant.NewVectors(vec.Float32()...),
				Payload: qdrant.NewValueMap(map[string]any{textPayloadKey: text}),
			},
		},
	}); err != nil {
		return 0, fmt.Errorf("upserting chunk %d into %s: %w", id, name, err)
	}

	return id, nil
}

// ListCollections returns the buckets on the server, sorted.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	remote, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}

	names := []string{}
	for _, r := range remote {
		if name, ok := strings.CutPrefix(r, s.prefix); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	return names, nil
}

// All scrolls the collection by ascending point ID, bounded by the point
// count when each iteration began.
func (s *Store) All(ctx context.Context, name string) (iter.Seq2[chunkstore.Chunk, error], error) {
	if err := s.exists(ctx, name); err != nil {
		return nil, err
	}

	return func(yield func(chunkstore.Chunk, error) bool) {
		maxID, err := s.count(ctx, name)
		if err != nil {
			yield(chunkstore.Chunk{}, err)
			return
		}

		next := uint64(1)
		for next <= maxID {
			limit := min(maxID-next+1, scrollPageSize)
			points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
				CollectionName: s.remoteName(name),
				Offset:         qdrant.NewIDNum(next),
				Limit:          qdrant.PtrOf(uint32(limit)),
				WithPayload:    qdrant.NewWithPayload(true),
				WithVectors:    qdrant.NewWithVectors(true),
			})
			if err != nil {
				yield(chunkstore.Chunk{}, fmt.Errorf("scrolling %s: %w", name, err))
				return
			}
			if len(points) == 0 {
				return
			}

			for _, p := range points {
				id := p.GetId().GetNum()
				if id > maxID {
					return
				}

				chunk := chunkstore.Chunk{
					ID:     id,
					Text:   p.GetPayload()[textPayloadKey].GetStringValue(),
					Vector: vector.FromFloat32(denseData(p.GetVectors().GetVector())),
				}
				if !yield(chunk, nil) {
					return
				}
				next = id + 1
			}
		}
	}, nil
}

// Info returns the collection's size. Dimensions is the configured
// dimensionality once the collection holds a chunk.
func (s *Store) Info(ctx context.Context, name string) (chunkstore.CollectionInfo, error) {
	if err := s.exists(ctx, name); err != nil {
		return chunkstore.CollectionInfo{}, err
	}

	n, err := s.count(ctx, name)
	if err != nil {
		return chunkstore.CollectionInfo{}, err
	}

	info := chunkstore.CollectionInfo{Name: name, Size: int(n)}
	if n > 0 {
		info.Dimensions = s.dimensions
	}
	return info, nil
}

// DeleteCollection drops the Qdrant collection.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	defer s.locks.Exclusive()()

	err := s.exists(ctx, name)
	if isNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.client.DeleteCollection(ctx, s.remoteName(name)); err != nil {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}

	s.locks.Forget(name)
	s.logger.Debug("deleted qdrant collection", "collection", name)
	return nil
}

// Close closes the client connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// denseData reads a dense vector from either the legacy data field or the
// dense oneof, depending on the server version.
func denseData(v *qdrant.VectorOutput) []float32 {
	if data := v.GetData(); len(data) > 0 {
		return data
	}
	return v.GetDense().GetData()
}

func isNotFound(err error) bool {
	return errors.Is(err, chunkstore.ErrCollectionNotFound)
}
