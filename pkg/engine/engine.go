// Package engine assembles a chunk store, providers, the retrieval service
// and the ingest pipeline from the effective stacks configuration.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/stacks/pkg/chunkstore"
	chunkstoreutils "github.com/papercomputeco/stacks/pkg/chunkstore/utils"
	"github.com/papercomputeco/stacks/pkg/config"
	"github.com/papercomputeco/stacks/pkg/credentials"
	"github.com/papercomputeco/stacks/pkg/dotdir"
	"github.com/papercomputeco/stacks/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/stacks/pkg/embeddings/utils"
	"github.com/papercomputeco/stacks/pkg/eventstream"
	"github.com/papercomputeco/stacks/pkg/eventstream/kafka"
	"github.com/papercomputeco/stacks/pkg/eventstream/nop"
	"github.com/papercomputeco/stacks/pkg/generation"
	generationutils "github.com/papercomputeco/stacks/pkg/generation/utils"
	"github.com/papercomputeco/stacks/pkg/ingest"
	"github.com/papercomputeco/stacks/pkg/retrieval"
	"github.com/papercomputeco/stacks/pkg/vector"
)

// GenerationDisabled is the generation provider name that turns off "ask".
const GenerationDisabled = "none"

// Options configures New.
type Options struct {
	Config *config.Config

	// ConfigDir overrides .stacks/ resolution for the default SQLite path
	// and stored credentials.
	ConfigDir string

	// SkipGenerator leaves the generator unset even when one is configured.
	// Commands that never answer questions use it to avoid requiring
	// generation credentials.
	SkipGenerator bool

	Logger *slog.Logger
}

// Engine owns every long-lived collaborator of a stacks command.
type Engine struct {
	Store     chunkstore.Store
	Embedder  embeddings.Embedder
	Generator generation.Generator
	Publisher eventstream.Publisher
	Service   *retrieval.Service
	Pool      *ingest.Pool
	Pipeline  *ingest.Pipeline

	logger  *slog.Logger
	closers []func() error
}

// New builds an Engine. On failure everything built so far is closed.
func New(ctx context.Context, o Options) (*Engine, error) {
	if o.Config == nil {
		return nil, errors.New("config is required")
	}
	if o.Logger == nil {
		return nil, errors.New("logger is required")
	}

	e := &Engine{logger: o.Logger}
	if err := e.build(ctx, o); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) build(ctx context.Context, o Options) error {
	cfg := o.Config

	creds, err := credentials.NewManager(o.ConfigDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	metric, err := vector.ParseMetric(cfg.Retrieval.Metric)
	if err != nil {
		return err
	}

	embedTimeout, generateTimeout, err := cfg.Retrieval.Timeouts()
	if err != nil {
		return err
	}

	e.Store, err = newStore(ctx, cfg, o.ConfigDir, creds, o.Logger)
	if err != nil {
		return fmt.Errorf("creating chunk store: %w", err)
	}
	e.closers = append(e.closers, e.Store.Close)

	embeddingKey, err := creds.Resolve(cfg.Embedding.Provider)
	if err != nil {
		return err
	}
	e.Embedder, err = embeddingutils.NewEmbedder(ctx, &embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		APIKey:       embeddingKey.Key,
		Dimensions:   int(cfg.Embedding.Dimensions),
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	e.closers = append(e.closers, e.Embedder.Close)

	if !o.SkipGenerator && generationEnabled(cfg.Generation.Provider) {
		generationKey, err := creds.Resolve(cfg.Generation.Provider)
		if err != nil {
			return err
		}
		e.Generator, err = generationutils.NewGenerator(ctx, &generationutils.NewGeneratorOpts{
			ProviderType: cfg.Generation.Provider,
			TargetURL:    cfg.Generation.Target,
			Model:        cfg.Generation.Model,
			APIKey:       generationKey.Key,
			Temperature:  cfg.Generation.Temperature,
		})
		if err != nil {
			return fmt.Errorf("creating generator: %w", err)
		}
		e.closers = append(e.closers, e.Generator.Close)
	}

	e.Publisher, err = newPublisher(cfg.Events)
	if err != nil {
		return fmt.Errorf("creating event publisher: %w", err)
	}
	e.closers = append(e.closers, e.Publisher.Close)

	e.Service, err = retrieval.NewService(retrieval.ServiceConfig{
		Store:             e.Store,
		Embedder:          e.Embedder,
		Generator:         e.Generator,
		Publisher:         e.Publisher,
		Metric:            metric,
		TopK:              int(cfg.Retrieval.TopK),
		EmbedTimeout:      embedTimeout,
		GenerateTimeout:   generateTimeout,
		EmbeddingProvider: cfg.Embedding.Provider,
		EmbeddingModel:    cfg.Embedding.Model,
		Logger:            o.Logger,
	})
	if err != nil {
		return err
	}

	splitter, err := ingest.NewCharacterSplitter(int(cfg.Ingest.ChunkSize), int(cfg.Ingest.ChunkOverlap))
	if err != nil {
		return err
	}

	e.Pool, err = ingest.NewPool(&ingest.PoolConfig{
		Embedder:   e.Embedder,
		NumWorkers: cfg.Ingest.Workers,
		Logger:     o.Logger,
	})
	if err != nil {
		return err
	}
	e.closers = append(e.closers, func() error { e.Pool.Close(); return nil })

	e.Pipeline, err = ingest.NewPipeline(ingest.PipelineConfig{
		Service: e.Service,
		Chunker: splitter,
		Pool:    e.Pool,
		Logger:  o.Logger,
	})
	if err != nil {
		return err
	}

	o.Logger.Debug("engine ready",
		"store", cfg.VectorStore.Provider,
		"embedding_provider", cfg.Embedding.Provider,
		"embedding_model", cfg.Embedding.Model,
		"generation_provider", cfg.Generation.Provider,
		"ask_enabled", e.Generator != nil,
		"metric", metric,
		"top_k", cfg.Retrieval.TopK,
	)

	return nil
}

// Close releases every collaborator in reverse construction order.
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

func generationEnabled(provider string) bool {
	return provider != "" && provider != GenerationDisabled
}

func newStore(ctx context.Context, cfg *config.Config, configDir string, creds *credentials.Manager, logger *slog.Logger) (chunkstore.Store, error) {
	sqlitePath := cfg.Storage.SQLitePath
	if sqlitePath == "" && (cfg.VectorStore.Provider == "sqlite" || cfg.VectorStore.Provider == "sqlitevec") {
		var err error
		sqlitePath, err = dotdir.NewManager().DefaultSQLitePath(configDir)
		if err != nil {
			return nil, err
		}
	}

	storeKey, err := creds.Resolve(cfg.VectorStore.Provider)
	if err != nil {
		return nil, err
	}

	return chunkstoreutils.NewStore(ctx, &chunkstoreutils.NewStoreOpts{
		ProviderType:     cfg.VectorStore.Provider,
		SQLitePath:       sqlitePath,
		PostgresDSN:      cfg.Storage.PostgresDSN,
		TargetURL:        cfg.VectorStore.Target,
		APIKey:           storeKey.Key,
		Dimensions:       cfg.Embedding.Dimensions,
		CollectionPrefix: cfg.VectorStore.CollectionPrefix,
		AllowLossy:       cfg.VectorStore.AllowLossy,
		Logger:           logger,
	})
}

func newPublisher(c config.EventsConfig) (eventstream.Publisher, error) {
	brokers := c.BrokerList()
	if len(brokers) == 0 {
		return nop.NewPublisher(), nil
	}
	return kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   c.Topic,
	})
}
