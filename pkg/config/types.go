package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent stacks configuration stored as config.toml
// in the .stacks/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Generation  GenerationConfig  `toml:"generation"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
	Ingest      IngestConfig      `toml:"ingest"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	Events      EventsConfig      `toml:"events"`
}

// StorageConfig holds connection settings for the relational chunk stores.
type StorageConfig struct {
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// VectorStoreConfig selects the chunk store backend.
//
// Provider is one of inmemory, sqlite, postgres, sqlitevec, qdrant or chroma.
// The last three narrow vectors to float32 and refuse to start unless
// AllowLossy is set.
type VectorStoreConfig struct {
	Provider         string `toml:"provider,omitempty"`
	Target           string `toml:"target,omitempty"`
	AllowLossy       bool   `toml:"allow_lossy,omitempty"`
	CollectionPrefix string `toml:"collection_prefix,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// GenerationConfig holds answer generation provider settings.
// An empty Provider disables "ask" while leaving "query" available.
type GenerationConfig struct {
	Provider    string  `toml:"provider,omitempty"`
	Target      string  `toml:"target,omitempty"`
	Model       string  `toml:"model,omitempty"`
	Temperature float64 `toml:"temperature,omitempty"`
}

// RetrievalConfig holds ranking and provider timeout settings.
// Timeouts are Go duration strings ("30s", "2m").
type RetrievalConfig struct {
	Metric          string `toml:"metric,omitempty"`
	TopK            uint   `toml:"top_k,omitempty"`
	EmbedTimeout    string `toml:"embed_timeout,omitempty"`
	GenerateTimeout string `toml:"generate_timeout,omitempty"`
}

// IngestConfig holds document chunking and embedding concurrency settings.
type IngestConfig struct {
	ChunkSize    uint `toml:"chunk_size,omitempty"`
	ChunkOverlap uint `toml:"chunk_overlap,omitempty"`
	Workers      uint `toml:"workers,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running
// "stacks serve". Values are full URLs (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// EventsConfig holds the ingestion event publisher settings.
// Brokers is a comma separated list; empty disables publishing.
type EventsConfig struct {
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func uintKey(key string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func durationKey(key string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			*field(c) = v
			return nil
		},
	}
}

// configKeyOrder lists configKeys in config.toml section order.
var configKeyOrder = []string{
	"storage.sqlite_path",
	"storage.postgres_dsn",
	"vector_store.provider",
	"vector_store.target",
	"vector_store.allow_lossy",
	"vector_store.collection_prefix",
	"embedding.provider",
	"embedding.target",
	"embedding.model",
	"embedding.dimensions",
	"generation.provider",
	"generation.target",
	"generation.model",
	"generation.temperature",
	"retrieval.metric",
	"retrieval.top_k",
	"retrieval.embed_timeout",
	"retrieval.generate_timeout",
	"ingest.chunk_size",
	"ingest.chunk_overlap",
	"ingest.workers",
	"api.listen",
	"client.api_target",
	"events.brokers",
	"events.topic",
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"vector_store.provider": {
		get: func(c *Config) string { return c.VectorStore.Provider },
		set: func(c *Config, v string) error { c.VectorStore.Provider = v; return nil },
	},
	"vector_store.target": {
		get: func(c *Config) string { return c.VectorStore.Target },
		set: func(c *Config, v string) error { c.VectorStore.Target = v; return nil },
	},
	"vector_store.allow_lossy": {
		get: func(c *Config) string { return strconv.FormatBool(c.VectorStore.AllowLossy) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for vector_store.allow_lossy: %w", err)
			}
			c.VectorStore.AllowLossy = b
			return nil
		},
	},
	"vector_store.collection_prefix": {
		get: func(c *Config) string { return c.VectorStore.CollectionPrefix },
		set: func(c *Config, v string) error { c.VectorStore.CollectionPrefix = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),
	"generation.provider": {
		get: func(c *Config) string { return c.Generation.Provider },
		set: func(c *Config, v string) error { c.Generation.Provider = v; return nil },
	},
	"generation.target": {
		get: func(c *Config) string { return c.Generation.Target },
		set: func(c *Config, v string) error { c.Generation.Target = v; return nil },
	},
	"generation.model": {
		get: func(c *Config) string { return c.Generation.Model },
		set: func(c *Config, v string) error { c.Generation.Model = v; return nil },
	},
	"generation.temperature": {
		get: func(c *Config) string { return strconv.FormatFloat(c.Generation.Temperature, 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for generation.temperature: %w", err)
			}
			if f < 0 || f > 2 {
				return fmt.Errorf("invalid value for generation.temperature: %v is outside [0, 2]", f)
			}
			c.Generation.Temperature = f
			return nil
		},
	},
	"retrieval.metric": {
		get: func(c *Config) string { return c.Retrieval.Metric },
		set: func(c *Config, v string) error {
			switch v {
			case "cosine", "dot":
				c.Retrieval.Metric = v
				return nil
			default:
				return fmt.Errorf("invalid value for retrieval.metric: %q (available: cosine, dot)", v)
			}
		},
	},
	"retrieval.top_k":            uintKey("retrieval.top_k", func(c *Config) *uint { return &c.Retrieval.TopK }),
	"retrieval.embed_timeout":    durationKey("retrieval.embed_timeout", func(c *Config) *string { return &c.Retrieval.EmbedTimeout }),
	"retrieval.generate_timeout": durationKey("retrieval.generate_timeout", func(c *Config) *string { return &c.Retrieval.GenerateTimeout }),
	"ingest.chunk_size":          uintKey("ingest.chunk_size", func(c *Config) *uint { return &c.Ingest.ChunkSize }),
	"ingest.chunk_overlap":       uintKey("ingest.chunk_overlap", func(c *Config) *uint { return &c.Ingest.ChunkOverlap }),
	"ingest.workers":             uintKey("ingest.workers", func(c *Config) *uint { return &c.Ingest.Workers }),
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return c.Events.Brokers },
		set: func(c *Config, v string) error { c.Events.Brokers = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}
