package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --top-k
// on both "stacks query" and "stacks chat").
type Flag struct {
	// Name is the long flag name (e.g. "top-k").
	Name string

	// Shorthand is the one-letter short flag (e.g. "k"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "retrieval.top_k").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagAPIListen       = "api-listen"
	FlagAPITarget       = "api-target"
	FlagSQLite          = "sqlite"
	FlagPostgres        = "postgres"
	FlagVectorStoreProv = "vector-store-provider"
	FlagVectorStoreTgt  = "vector-store-target"
	FlagAllowLossy      = "allow-lossy"
	FlagEmbeddingProv   = "embedding-provider"
	FlagEmbeddingTgt    = "embedding-target"
	FlagEmbeddingModel  = "embedding-model"
	FlagEmbeddingDims   = "embedding-dimensions"
	FlagGenerationProv  = "generation-provider"
	FlagGenerationTgt   = "generation-target"
	FlagGenerationModel = "generation-model"
	FlagMetric          = "metric"
	FlagTopK            = "top-k"
	FlagChunkSize       = "chunk-size"
	FlagChunkOverlap    = "chunk-overlap"
	FlagWorkers         = "workers"
	FlagKafkaBrokers    = "kafka-brokers"
	FlagKafkaTopic      = "kafka-topic"
)

// StoreFlags are the registry keys for flags that select and configure the
// chunk store. Every command that opens a store registers these.
var StoreFlags = []string{
	FlagSQLite,
	FlagPostgres,
	FlagVectorStoreProv,
	FlagVectorStoreTgt,
	FlagAllowLossy,
	FlagEmbeddingDims,
}

// ProviderFlags are the registry keys for the embedding and generation
// provider flags.
var ProviderFlags = []string{
	FlagEmbeddingProv,
	FlagEmbeddingTgt,
	FlagEmbeddingModel,
	FlagGenerationProv,
	FlagGenerationTgt,
	FlagGenerationModel,
}

// RetrievalFlags are the registry keys for ranking flags.
var RetrievalFlags = []string{
	FlagMetric,
	FlagTopK,
}

// IngestFlags are the registry keys for chunking, embedding concurrency and
// event publishing flags.
var IngestFlags = []string{
	FlagChunkSize,
	FlagChunkOverlap,
	FlagWorkers,
	FlagKafkaBrokers,
	FlagKafkaTopic,
}

// Registry is the FlagSet of every stacks flag.
var Registry = FlagSet{
	FlagAPIListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "api.listen",
		Description: "Address for the API server to listen on",
	},
	FlagAPITarget: {
		Name:        "api-target",
		ViperKey:    "client.api_target",
		Description: "Stacks API server URL",
	},
	FlagSQLite: {
		Name:        "sqlite",
		Shorthand:   "s",
		ViperKey:    "storage.sqlite_path",
		Description: "Path to SQLite database (sqlite and sqlitevec providers)",
	},
	FlagPostgres: {
		Name:        "postgres",
		ViperKey:    "storage.postgres_dsn",
		Description: "PostgreSQL connection string (postgres provider)",
	},
	FlagVectorStoreProv: {
		Name:        "vector-store-provider",
		ViperKey:    "vector_store.provider",
		Description: "Chunk store provider (inmemory, sqlite, postgres, sqlitevec, qdrant, chroma)",
	},
	FlagVectorStoreTgt: {
		Name:        "vector-store-target",
		ViperKey:    "vector_store.target",
		Description: "Chunk store target URL (qdrant, chroma)",
	},
	FlagAllowLossy: {
		Name:        "allow-lossy",
		ViperKey:    "vector_store.allow_lossy",
		Description: "Allow chunk stores that narrow vectors to float32",
	},
	FlagEmbeddingProv: {
		Name:        "embedding-provider",
		ViperKey:    "embedding.provider",
		Description: "Embedding provider (ollama, openai, gemini)",
	},
	FlagEmbeddingTgt: {
		Name:        "embedding-target",
		ViperKey:    "embedding.target",
		Description: "Embedding provider URL",
	},
	FlagEmbeddingModel: {
		Name:        "embedding-model",
		ViperKey:    "embedding.model",
		Description: "Embedding model name",
	},
	FlagEmbeddingDims: {
		Name:        "embedding-dimensions",
		ViperKey:    "embedding.dimensions",
		Description: "Embedding dimensionality (sqlitevec and qdrant collections)",
	},
	FlagGenerationProv: {
		Name:        "generation-provider",
		ViperKey:    "generation.provider",
		Description: "Generation provider (ollama, openai, gemini, anthropic, none)",
	},
	FlagGenerationTgt: {
		Name:        "generation-target",
		ViperKey:    "generation.target",
		Description: "Generation provider URL",
	},
	FlagGenerationModel: {
		Name:        "generation-model",
		ViperKey:    "generation.model",
		Description: "Generation model name",
	},
	FlagMetric: {
		Name:        "metric",
		Shorthand:   "m",
		ViperKey:    "retrieval.metric",
		Description: "Similarity metric (cosine, dot)",
	},
	FlagTopK: {
		Name:        "top-k",
		Shorthand:   "k",
		ViperKey:    "retrieval.top_k",
		Description: "Number of chunks to retrieve",
	},
	FlagChunkSize: {
		Name:        "chunk-size",
		ViperKey:    "ingest.chunk_size",
		Description: "Maximum chunk length in characters",
	},
	FlagChunkOverlap: {
		Name:        "chunk-overlap",
		ViperKey:    "ingest.chunk_overlap",
		Description: "Characters shared between consecutive chunks",
	},
	FlagWorkers: {
		Name:        "workers",
		Shorthand:   "w",
		ViperKey:    "ingest.workers",
		Description: "Number of concurrent embedding workers",
	},
	FlagKafkaBrokers: {
		Name:        "kafka-brokers",
		ViperKey:    "events.brokers",
		Description: "Comma separated Kafka brokers for ingestion events",
	},
	FlagKafkaTopic: {
		Name:        "kafka-topic",
		ViperKey:    "events.topic",
		Description: "Kafka topic for ingestion events",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *bool) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// defaultBool returns the default bool value for a viper key from NewDefaultConfig.
func defaultBool(viperKey string) bool {
	v := viper.New()
	setViperDefaults(v)
	return v.GetBool(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}

// AddFlags registers every registry flag in registryKeys, typed after its
// default value. Values are read back through viper once BindRegisteredFlags
// has run, so the flag targets are not kept.
func AddFlags(cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	v := viper.New()
	setViperDefaults(v)

	for _, key := range registryKeys {
		def, ok := fs[key]
		if !ok || cmd.Flags().Lookup(def.Name) != nil {
			continue
		}

		switch v.Get(def.ViperKey).(type) {
		case bool:
			AddBoolFlag(cmd, fs, key, new(bool))
		case uint:
			AddUintFlag(cmd, fs, key, new(uint))
		default:
			AddStringFlag(cmd, fs, key, new(string))
		}
	}
}
