package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/stacks/pkg/chunkstore"
	"github.com/papercomputeco/stacks/pkg/embeddings"
	"github.com/papercomputeco/stacks/pkg/eventstream"
	"github.com/papercomputeco/stacks/pkg/eventstream/nop"
	"github.com/papercomputeco/stacks/pkg/generation"
	"github.com/papercomputeco/stacks/pkg/similarity"
	"github.com/papercomputeco/stacks/pkg/vector"
)

// ServiceConfig is the configuration for a Service.
type ServiceConfig struct {
	Store     chunkstore.Store
	Embedder  embeddings.Embedder
	Generator generation.Generator

	// Publisher receives bucket events. Defaults to a no-op publisher.
	Publisher eventstream.Publisher

	Metric          vector.Metric
	TopK            int
	EmbedTimeout    time.Duration
	GenerateTimeout time.Duration

	// EmbeddingProvider and EmbeddingModel are stamped on published events.
	EmbeddingProvider string
	EmbeddingModel    string

	Logger *slog.Logger
}

// Service is the entry point used by the API, MCP tools and CLI. It owns no
// per-request state: every Query and Ask runs in a fresh Session, so requests
// for different callers never wait on each other.
type Service struct {
	config SessionConfig
	pub    eventstream.Publisher
	source eventstream.EventSource
	logger *slog.Logger
}

// IngestResult describes a bucket after an ingestion.
type IngestResult struct {
	Collection string        `json:"collection"`
	Chunks     int           `json:"chunks"`
	Dimensions int           `json:"dimensions"`
	Replaced   bool          `json:"replaced"`
	Duration   time.Duration `json:"duration_ns"`
}

type ingestOptions struct {
	origin   string
	document string
	replace  bool
}

// IngestOption configures a single ingestion.
type IngestOption func(*ingestOptions)

// WithOrigin records which surface triggered the ingestion (cli, api, watch).
func WithOrigin(origin string) IngestOption {
	return func(o *ingestOptions) {
		o.origin = origin
	}
}

// WithDocument records the source document of the ingested chunks.
func WithDocument(document string) IngestOption {
	return func(o *ingestOptions) {
		o.document = document
	}
}

// WithAppend adds the entries to the existing bucket instead of re-creating
// it. The bucket is created when missing.
func WithAppend() IngestOption {
	return func(o *ingestOptions) {
		o.replace = false
	}
}

// NewService creates a Service.
func NewService(c ServiceConfig) (*Service, error) {
	if c.Store == nil {
		return nil, errors.New("chunk store is required")
	}
	if c.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if c.Metric == "" {
		c.Metric = vector.DefaultMetric
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}

	pub := c.Publisher
	if pub == nil {
		pub = nop.NewPublisher()
	}

	return &Service{
		config: SessionConfig{
			Store:           c.Store,
			Embedder:        c.Embedder,
			Generator:       c.Generator,
			Index:           similarity.NewIndex(c.Logger),
			Metric:          c.Metric,
			TopK:            c.TopK,
			EmbedTimeout:    c.EmbedTimeout,
			GenerateTimeout: c.GenerateTimeout,
			Logger:          c.Logger,
		},
		pub: pub,
		source: eventstream.EventSource{
			EmbeddingProvider: c.EmbeddingProvider,
			EmbeddingModel:    c.EmbeddingModel,
		},
		logger: c.Logger,
	}, nil
}

// NewSession creates a Session that shares the service's collaborators.
func (s *Service) NewSession(observer Observer) (*Session, error) {
	c := s.config
	c.Observer = observer
	return NewSession(c)
}

// Store returns the underlying chunk store.
func (s *Service) Store() chunkstore.Store {
	return s.config.Store
}

// Embedder returns the embedder used for questions and ingestion.
func (s *Service) Embedder() embeddings.Embedder {
	return s.config.Embedder
}

// CanAnswer reports whether a generator is configured.
func (s *Service) CanAnswer() bool {
	return s.config.Generator != nil
}

// TopK returns the configured number of chunks forwarded to the generator.
func (s *Service) TopK() int {
	return s.config.TopK
}

// Metric returns the configured ranking metric.
func (s *Service) Metric() vector.Metric {
	return s.config.Metric
}

// Ingest writes already-embedded entries into a bucket. By default the bucket
// is re-created first; see WithAppend. A bucket event is published on
// success; publish failures are logged and do not fail the ingestion.
func (s *Service) Ingest(ctx context.Context, collection string, entries []chunkstore.Entry, opts ...IngestOption) (*IngestResult, error) {
	o := &ingestOptions{replace: true}
	for _, opt := range opts {
		opt(o)
	}

	start := time.Now()
	store := s.config.Store

	current, err := store.Info(ctx, collection)
	existed := err == nil
	if err != nil && !errors.Is(err, chunkstore.ErrCollectionNotFound) {
		return nil, err
	}

	// Reject a bad batch before the bucket is dropped or extended.
	dims := 0
	if existed && !o.replace {
		dims = current.Dimensions
	}
	if _, err := chunkstore.CheckEntries(collection, entries, dims); err != nil {
		return nil, err
	}

	switch {
	case o.replace:
		if err := chunkstore.Recreate(ctx, store, collection); err != nil {
			return nil, err
		}
	case !existed:
		if err := store.CreateCollection(ctx, collection); err != nil && !errors.Is(err, chunkstore.ErrDuplicateCollection) {
			return nil, err
		}
	}

	written, err := chunkstore.InsertBatch(ctx, store, collection, entries)
	if err != nil {
		s.logger.Error("ingestion failed",
			"collection", collection,
			"written", written,
			"total", len(entries),
			"error", err,
		)
		return nil, err
	}

	info, err := store.Info(ctx, collection)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{
		Collection: collection,
		Chunks:     info.Size,
		Dimensions: info.Dimensions,
		Replaced:   existed && o.replace,
		Duration:   time.Since(start),
	}

	s.logger.Info("bucket ingested",
		"collection", collection,
		"inserted", written,
		"chunks", result.Chunks,
		"dimensions", result.Dimensions,
		"replaced", result.Replaced,
	)

	s.publish(ctx, eventstream.EventTypeBucketIngested, o, eventstream.BucketMeta{
		Name:       collection,
		Chunks:     result.Chunks,
		Dimensions: result.Dimensions,
		Replaced:   result.Replaced,
		DurationMs: result.Duration.Milliseconds(),
	})

	return result, nil
}

// Query ranks the bucket against the question and returns the topK matches.
func (s *Service) Query(ctx context.Context, collection, question string, topK int) (*similarity.Result, error) {
	session, err := s.NewSession(nil)
	if err != nil {
		return nil, err
	}
	return session.Query(ctx, collection, question, topK)
}

// Ask answers the question from the configured top-K chunks of the bucket.
func (s *Service) Ask(ctx context.Context, collection, question string) (*Answer, error) {
	session, err := s.NewSession(nil)
	if err != nil {
		return nil, err
	}
	return session.Ask(ctx, collection, question)
}

// Buckets returns every bucket with its dimensionality and size, sorted by
// name.
func (s *Service) Buckets(ctx context.Context) ([]chunkstore.CollectionInfo, error) {
	names, err := s.config.Store.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing buckets: %w", err)
	}

	infos := make([]chunkstore.CollectionInfo, 0, len(names))
	for _, name := range names {
		info, err := s.config.Store.Info(ctx, name)
		if errors.Is(err, chunkstore.ErrCollectionNotFound) {
			// deleted between list and info
			continue
		}
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}

	return infos, nil
}

// Bucket returns a single bucket's info.
func (s *Service) Bucket(ctx context.Context, name string) (chunkstore.CollectionInfo, error) {
	return s.config.Store.Info(ctx, name)
}

// CreateBucket creates an empty bucket.
func (s *Service) CreateBucket(ctx context.Context, name string) error {
	return s.config.Store.CreateCollection(ctx, name)
}

// DeleteBucket removes a bucket. Deleting a missing bucket is not an error.
func (s *Service) DeleteBucket(ctx context.Context, name string, opts ...IngestOption) error {
	o := &ingestOptions{}
	for _, opt := range opts {
		opt(o)
	}

	if err := s.config.Store.DeleteCollection(ctx, name); err != nil {
		return err
	}

	s.logger.Info("bucket deleted", "collection", name)
	s.publish(ctx, eventstream.EventTypeBucketDeleted, o, eventstream.BucketMeta{Name: name})
	return nil
}

func (s *Service) publish(ctx context.Context, eventType string, o *ingestOptions, meta eventstream.BucketMeta) {
	source := s.source
	source.Origin = o.origin
	source.Document = o.document

	event := eventstream.NewBucketEvent(eventType, source, meta)
	if err := s.pub.PublishBucket(ctx, event); err != nil {
		s.logger.Warn("failed to publish bucket event",
			"event_type", eventType,
			"collection", meta.Name,
			"error", err,
		)
	}
}
