// Package mcp provides an MCP (Model Context Protocol) server exposing bucket
// retrieval as tools.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/stacks/pkg/retrieval"
	"github.com/papercomputeco/stacks/pkg/utils"
)

type Config struct {
	// Service runs queries and answers questions against buckets.
	Service *retrieval.Service

	// Noop for empty MCP server
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the query, ask and list_buckets
// tools. The ask tool is only registered when the service can answer.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "stacks",
			Version: utils.BuildInfo().Version,
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.Service == nil {
			return nil, errors.New("retrieval service is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        listBucketsToolName,
			Description: listBucketsDescription,
		}, s.handleListBuckets)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        queryToolName,
			Description: queryDescription,
		}, s.handleQuery)

		if c.Service.CanAnswer() {
			mcp.AddTool(mcpServer, &mcp.Tool{
				Name:        askToolName,
				Description: askDescription,
			}, s.handleAsk)
		}
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// MCPServer returns the underlying server, e.g. to run it over stdio.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}
