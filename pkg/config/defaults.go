package config

const (
	defaultOllamaTarget = "http://localhost:11434"
	defaultAPIListen    = ":8081"

	defaultClientAPITarget = "http://localhost:8081"

	defaultVectorProvider = "sqlite"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingModel      = "embeddinggemma"
	defaultEmbeddingDimensions = 768

	defaultGenerationProvider = "ollama"
	defaultGenerationModel    = "gemma3"

	defaultMetric          = "cosine"
	defaultTopK            = 4
	defaultEmbedTimeout    = "30s"
	defaultGenerateTimeout = "2m"

	defaultChunkSize    = 300
	defaultChunkOverlap = 100
	defaultWorkers      = 3

	defaultEventsTopic = "stacks.bucket.ingested"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultOllamaTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Generation: GenerationConfig{
			Provider: defaultGenerationProvider,
			Target:   defaultOllamaTarget,
			Model:    defaultGenerationModel,
		},
		Retrieval: RetrievalConfig{
			Metric:          defaultMetric,
			TopK:            defaultTopK,
			EmbedTimeout:    defaultEmbedTimeout,
			GenerateTimeout: defaultGenerateTimeout,
		},
		Ingest: IngestConfig{
			ChunkSize:    defaultChunkSize,
			ChunkOverlap: defaultChunkOverlap,
			Workers:      defaultWorkers,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		Events: EventsConfig{
			Topic: defaultEventsTopic,
		},
	}
}
