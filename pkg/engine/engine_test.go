package engine_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/stacks/pkg/chunkstore"
	"github.com/papercomputeco/stacks/pkg/chunkstore/inmemory"
	"github.com/papercomputeco/stacks/pkg/chunkstore/sqlite"
	"github.com/papercomputeco/stacks/pkg/config"
	"github.com/papercomputeco/stacks/pkg/engine"
	"github.com/papercomputeco/stacks/pkg/eventstream/kafka"
	"github.com/papercomputeco/stacks/pkg/eventstream/nop"
	"github.com/papercomputeco/stacks/pkg/logger"
	"github.com/papercomputeco/stacks/pkg/vector"
)

var _ = Describe("New", func() {
	var (
		ctx       context.Context
		configDir string
		cfg       *config.Config
	)

	build := func(o engine.Options) *engine.Engine {
		o.Config = cfg
		o.ConfigDir = configDir
		o.Logger = logger.Nop()
		e, err := engine.New(ctx, o)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(e.Close)
		return e
	}

	BeforeEach(func() {
		ctx = context.Background()
		configDir = GinkgoT().TempDir()
		cfg = config.NewDefaultConfig()
		cfg.VectorStore.Provider = "inmemory"
	})

	It("requires a config", func() {
		_, err := engine.New(ctx, engine.Options{Logger: logger.Nop()})
		Expect(err).To(MatchError("config is required"))
	})

	It("wires the configured collaborators", func() {
		e := build(engine.Options{})

		Expect(e.Store).To(BeAssignableToTypeOf(&inmemory.Store{}))
		Expect(e.Publisher).To(BeAssignableToTypeOf(&nop.Publisher{}))
		Expect(e.Service.CanAnswer()).To(BeTrue())
		Expect(e.Service.TopK()).To(Equal(4))
		Expect(e.Service.Metric()).To(Equal(vector.MetricCosine))
		Expect(e.Pipeline).NotTo(BeNil())
	})

	It("leaves ask disabled for the none provider", func() {
		cfg.Generation.Provider = engine.GenerationDisabled
		e := build(engine.Options{})

		Expect(e.Generator).To(BeNil())
		Expect(e.Service.CanAnswer()).To(BeFalse())
	})

	It("skips the generator on request", func() {
		e := build(engine.Options{SkipGenerator: true})
		Expect(e.Service.CanAnswer()).To(BeFalse())
	})

	It("applies the configured metric and top-K", func() {
		cfg.Retrieval.Metric = "dot"
		cfg.Retrieval.TopK = 7
		e := build(engine.Options{})

		Expect(e.Service.Metric()).To(Equal(vector.MetricDot))
		Expect(e.Service.TopK()).To(Equal(7))
	})

	It("defaults the sqlite database into the config directory", func() {
		cfg.VectorStore.Provider = "sqlite"
		e := build(engine.Options{})

		Expect(e.Store).To(BeAssignableToTypeOf(&sqlite.Store{}))
		Expect(e.Store.CreateCollection(ctx, "docs")).To(Succeed())
		Expect(filepath.Join(configDir, "stacks.sqlite")).To(BeAnExistingFile())
	})

	It("publishes to kafka when brokers are configured", func() {
		cfg.Events.Brokers = "localhost:9092, localhost:9093"
		e := build(engine.Options{})
		Expect(e.Publisher).To(BeAssignableToTypeOf(&kafka.Publisher{}))
	})

	It("refuses lossy stores without opt-in", func() {
		cfg.VectorStore.Provider = "sqlitevec"
		cfg.Storage.SQLitePath = filepath.Join(configDir, "vec.sqlite")

		_, err := engine.New(ctx, engine.Options{Config: cfg, ConfigDir: configDir, Logger: logger.Nop()})
		Expect(err).To(MatchError(chunkstore.ErrLossyNotAllowed))
	})

	It("rejects an unknown metric", func() {
		cfg.Retrieval.Metric = "euclidean"
		_, err := engine.New(ctx, engine.Options{Config: cfg, ConfigDir: configDir, Logger: logger.Nop()})
		Expect(err).To(MatchError(ContainSubstring("unknown similarity metric")))
	})

	It("rejects invalid chunking", func() {
		cfg.Ingest.ChunkOverlap = 500
		_, err := engine.New(ctx, engine.Options{Config: cfg, ConfigDir: configDir, Logger: logger.Nop()})
		Expect(err).To(MatchError(ContainSubstring("chunk overlap")))
	})

	It("requires credentials for hosted generators", func() {
		GinkgoT().Setenv("ANTHROPIC_API_KEY", "")
		cfg.Generation.Provider = "anthropic"

		_, err := engine.New(ctx, engine.Options{Config: cfg, ConfigDir: configDir, Logger: logger.Nop()})
		Expect(err).To(MatchError(ContainSubstring("API key")))
	})

	It("uses stored credentials", func() {
		Expect(os.WriteFile(filepath.Join(configDir, "credentials.toml"),
			[]byte("version = 1\n\n[keys.anthropic]\napi_key = \"sk-ant-test\"\n"), 0o600)).To(Succeed())
		cfg.Generation.Provider = "anthropic"

		e := build(engine.Options{})
		Expect(e.Service.CanAnswer()).To(BeTrue())
	})
})
