package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/stacks/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the STACKS_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (STACKS_API_LISTEN, STACKS_RETRIEVAL_TOP_K, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: STACKS_API_LISTEN, STACKS_STORAGE_SQLITE_PATH, etc.
	v.SetEnvPrefix("STACKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// Vector store
	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)
	v.SetDefault("vector_store.allow_lossy", d.VectorStore.AllowLossy)
	v.SetDefault("vector_store.collection_prefix", d.VectorStore.CollectionPrefix)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)

	// Generation
	v.SetDefault("generation.provider", d.Generation.Provider)
	v.SetDefault("generation.target", d.Generation.Target)
	v.SetDefault("generation.model", d.Generation.Model)
	v.SetDefault("generation.temperature", d.Generation.Temperature)

	// Retrieval
	v.SetDefault("retrieval.metric", d.Retrieval.Metric)
	v.SetDefault("retrieval.top_k", d.Retrieval.TopK)
	v.SetDefault("retrieval.embed_timeout", d.Retrieval.EmbedTimeout)
	v.SetDefault("retrieval.generate_timeout", d.Retrieval.GenerateTimeout)

	// Ingest
	v.SetDefault("ingest.chunk_size", d.Ingest.ChunkSize)
	v.SetDefault("ingest.chunk_overlap", d.Ingest.ChunkOverlap)
	v.SetDefault("ingest.workers", d.Ingest.Workers)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Client
	v.SetDefault("client.api_target", d.Client.APITarget)

	// Events
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
}

// FromViper materializes the effective configuration after flags, env and
// config file have been layered by v.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Storage: StorageConfig{
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
		},
		VectorStore: VectorStoreConfig{
			Provider:         v.GetString("vector_store.provider"),
			Target:           v.GetString("vector_store.target"),
			AllowLossy:       v.GetBool("vector_store.allow_lossy"),
			CollectionPrefix: v.GetString("vector_store.collection_prefix"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetUint("embedding.dimensions"),
		},
		Generation: GenerationConfig{
			Provider:    v.GetString("generation.provider"),
			Target:      v.GetString("generation.target"),
			Model:       v.GetString("generation.model"),
			Temperature: v.GetFloat64("generation.temperature"),
		},
		Retrieval: RetrievalConfig{
			Metric:          v.GetString("retrieval.metric"),
			TopK:            v.GetUint("retrieval.top_k"),
			EmbedTimeout:    v.GetString("retrieval.embed_timeout"),
			GenerateTimeout: v.GetString("retrieval.generate_timeout"),
		},
		Ingest: IngestConfig{
			ChunkSize:    v.GetUint("ingest.chunk_size"),
			ChunkOverlap: v.GetUint("ingest.chunk_overlap"),
			Workers:      v.GetUint("ingest.workers"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Client: ClientConfig{
			APITarget: v.GetString("client.api_target"),
		},
		Events: EventsConfig{
			Brokers: v.GetString("events.brokers"),
			Topic:   v.GetString("events.topic"),
		},
	}
}

// Timeouts parses the retrieval timeouts. Empty values yield zero, which
// disables the timeout.
func (r RetrievalConfig) Timeouts() (embed, generate time.Duration, err error) {
	if r.EmbedTimeout != "" {
		embed, err = time.ParseDuration(r.EmbedTimeout)
		if err != nil {
			return 0, 0, fmt.Errorf("parsing retrieval.embed_timeout: %w", err)
		}
	}
	if r.GenerateTimeout != "" {
		generate, err = time.ParseDuration(r.GenerateTimeout)
		if err != nil {
			return 0, 0, fmt.Errorf("parsing retrieval.generate_timeout: %w", err)
		}
	}
	return embed, generate, nil
}

// BrokerList splits the comma separated broker list.
func (e EventsConfig) BrokerList() []string {
	var brokers []string
	for b := range strings.SplitSeq(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// LoadForCommand resolves the effective configuration for cmd: it reads the
// --config-dir flag, initializes viper from it and binds the given registry
// flags so explicitly set flags win over env and config file values.
func LoadForCommand(cmd *cobra.Command, registryKeys []string) (*Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	BindRegisteredFlags(v, cmd, Registry, registryKeys)
	return FromViper(v), nil
}
