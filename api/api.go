package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/stacks/api/mcp"
	"github.com/papercomputeco/stacks/pkg/ingest"
	"github.com/papercomputeco/stacks/pkg/retrieval"
)

// Server is the API server for managing and querying stacks buckets.
type Server struct {
	config   Config
	service  *retrieval.Service
	pipeline *ingest.Pipeline
	mcp      *mcp.Server
	logger   *slog.Logger
	app      *fiber.App
}

// NewServer creates a new API server.
// The service and pipeline are injected so the CLI and the server share one
// store and one embedding pool.
func NewServer(config Config, service *retrieval.Service, pipeline *ingest.Pipeline, logger *slog.Logger) (*Server, error) {
	if service == nil {
		return nil, errors.New("retrieval service is required")
	}
	if pipeline == nil {
		return nil, errors.New("ingest pipeline is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Service: service,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             config.BodyLimit,
	})

	s := &Server{
		config:   config,
		service:  service,
		pipeline: pipeline,
		mcp:      mcpServer,
		logger:   logger,
		app:      app,
	}

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1")
	v1.Get("/buckets", s.handleListBuckets)
	v1.Post("/buckets", s.handleCreateBucket)
	v1.Get("/buckets/:name", s.handleGetBucket)
	v1.Delete("/buckets/:name", s.handleDeleteBucket)
	v1.Post("/buckets/:name/chunks", s.handleIngestChunks)
	v1.Post("/buckets/:name/documents", s.handleIngestDocument)
	v1.Post("/buckets/:name/query", s.handleQuery)
	v1.Post("/buckets/:name/ask", s.handleAsk)

	app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
		"ask_enabled", s.service.CanAnswer(),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// shutdownTimeout bounds how long in-flight requests may take to finish.
const shutdownTimeout = 10 * time.Second

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(shutdownTimeout)
}

// Handler exposes the server as a net/http handler.
func (s *Server) Handler() http.Handler {
	return adaptor.FiberApp(s.app)
}
