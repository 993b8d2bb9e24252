// Package servecmder provides the serve command for running the stacks API
// and MCP server.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/stacks/api"
	apimcp "github.com/papercomputeco/stacks/api/mcp"
	"github.com/papercomputeco/stacks/pkg/config"
	"github.com/papercomputeco/stacks/pkg/engine"
	"github.com/papercomputeco/stacks/pkg/logger"
	"github.com/papercomputeco/stacks/pkg/serverstate"
)

type serveCommander struct {
	stdio   bool
	logFile string

	configDir string
	cfg       *config.Config

	debug  bool
	logger *slog.Logger
}

const serveLongDesc string = `Run the stacks API server.

The server exposes bucket management, ingestion, query and ask over HTTP
under /v1, and the same retrieval as MCP tools at /mcp. Only one server may
run against a .stacks/ directory at a time; its address and PID are
recorded for "stacks status".

Use --stdio to serve the MCP tools over stdin/stdout instead, e.g. when the
server is launched by an MCP client. Logs always go to stderr; --log-file
additionally appends them to a file as JSON.

Examples:
  stacks serve
  stacks serve --listen :9090 --vector-store-provider postgres --postgres "postgres://localhost/stacks"
  stacks serve --stdio --log-file ~/.stacks/serve.log`

const serveShortDesc string = "Run the stacks API server"

var flagKeys = func() []string {
	keys := []string{config.FlagAPIListen}
	keys = append(keys, config.StoreFlags...)
	keys = append(keys, config.ProviderFlags...)
	keys = append(keys, config.RetrievalFlags...)
	return append(keys, config.IngestFlags...)
}()

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = config.LoadForCommand(cmd, flagKeys)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&cmder.stdio, "stdio", false, "Serve the MCP tools over stdin/stdout")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")
	config.AddFlags(cmd, config.Registry, flagKeys)

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	var closeLog func() error
	var err error
	c.logger, closeLog, err = logger.NewServeLogger(c.debug, c.logFile)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if c.stdio {
		return c.runStdio(ctx)
	}

	states, err := serverstate.NewManager(c.configDir)
	if err != nil {
		return err
	}

	lock, err := states.TryLock()
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			c.logger.Warn("releasing server lock", "error", err)
		}
	}()

	e, err := engine.New(ctx, engine.Options{
		Config:    c.cfg,
		ConfigDir: c.configDir,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	defer e.Close()

	server, err := api.NewServer(api.Config{
		ListenAddr: c.cfg.API.Listen,
	}, e.Service, e.Pipeline, c.logger)
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}

	now := time.Now()
	if err := states.SaveState(&serverstate.State{
		PID:           os.Getpid(),
		Listen:        c.cfg.API.Listen,
		StoreProvider: c.cfg.VectorStore.Provider,
		AskEnabled:    e.Service.CanAnswer(),
		StartedAt:     now,
		UpdatedAt:     now,
	}); err != nil {
		return err
	}
	defer func() {
		if err := states.ClearState(); err != nil {
			c.logger.Warn("clearing server state", "error", err)
		}
	}()

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run()
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("api server error: %w", err)
	case <-ctx.Done():
		c.logger.Info("received signal, shutting down")
	}

	return server.Shutdown()
}

func (c *serveCommander) runStdio(ctx context.Context) error {
	e, err := engine.New(ctx, engine.Options{
		Config:    c.cfg,
		ConfigDir: c.configDir,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	defer e.Close()

	server, err := apimcp.NewServer(apimcp.Config{
		Service: e.Service,
		Logger:  c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating mcp server: %w", err)
	}

	c.logger.Info("serving MCP over stdio", "ask_enabled", e.Service.CanAnswer())

	if err := server.MCPServer().Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
