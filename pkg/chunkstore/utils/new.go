// Package chunkstoreutils is the chunk store utility package
package chunkstoreutils

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"

	"github.com/papercomputeco/stacks/pkg/chunkstore"
	"github.com/papercomputeco/stacks/pkg/chunkstore/chroma"
	"github.com/papercomputeco/stacks/pkg/chunkstore/inmemory"
	"github.com/papercomputeco/stacks/pkg/chunkstore/postgres"
	"github.com/papercomputeco/stacks/pkg/chunkstore/qdrant"
	"github.com/papercomputeco/stacks/pkg/chunkstore/sqlite"
	"github.com/papercomputeco/stacks/pkg/chunkstore/sqlitevec"
)

// SupportedProviders lists the chunk store provider names NewStore accepts.
var SupportedProviders = []string{"inmemory", "sqlite", "postgres", "sqlitevec", "qdrant", "chroma"}

type NewStoreOpts struct {
	ProviderType string

	// SQLitePath is used by the sqlite and sqlitevec providers.
	SQLitePath string

	// PostgresDSN is used by the postgres provider.
	PostgresDSN string

	// TargetURL is the qdrant ("host:port") or chroma ("http://host:port")
	// server address.
	TargetURL string

	// APIKey authenticates against qdrant.
	APIKey string

	// Dimensions sizes sqlitevec and qdrant collections.
	Dimensions uint

	CollectionPrefix string
	AllowLossy       bool
	Logger           *slog.Logger
}

func NewStore(ctx context.Context, o *NewStoreOpts) (chunkstore.Store, error) {
	logger := o.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	switch o.ProviderType {
	case "inmemory":
		logger.Info("using in-memory chunk store")
		return inmemory.NewStore(), nil
	case "sqlite":
		if o.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite chunk store requires a database path")
		}
		return wrap(sqlite.NewStore(ctx, o.SQLitePath, logger))
	case "postgres":
		if o.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres chunk store requires a connection string")
		}
		return wrap(postgres.NewStore(ctx, o.PostgresDSN, logger))
	case "sqlitevec":
		return wrap(sqlitevec.NewStore(ctx, sqlitevec.Config{
			DBPath:     o.SQLitePath,
			Dimensions: o.Dimensions,
			AllowLossy: o.AllowLossy,
		}, logger))
	case "qdrant":
		host, port, useTLS, err := parseQdrantTarget(o.TargetURL)
		if err != nil {
			return nil, err
		}
		return wrap(qdrant.NewStore(qdrant.Config{
			Host:             host,
			Port:             port,
			APIKey:           o.APIKey,
			UseTLS:           useTLS,
			Dimensions:       o.Dimensions,
			CollectionPrefix: o.CollectionPrefix,
			AllowLossy:       o.AllowLossy,
		}, logger))
	case "chroma":
		return wrap(chroma.NewStore(chroma.Config{
			URL:              o.TargetURL,
			CollectionPrefix: o.CollectionPrefix,
			AllowLossy:       o.AllowLossy,
		}, logger))
	default:
		return nil, fmt.Errorf("unsupported chunk store provider: %s", o.ProviderType)
	}
}

// wrap keeps a failed constructor's typed nil out of the returned interface.
func wrap[S chunkstore.Store](s S, err error) (chunkstore.Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

// parseQdrantTarget accepts "host", "host:port" or "https://host:port".
// The port defaults to Qdrant's gRPC port.
func parseQdrantTarget(target string) (string, int, bool, error) {
	if target == "" {
		return "localhost", qdrant.DefaultPort, false, nil
	}

	useTLS := false
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		useTLS = u.Scheme == "https"
		target = u.Host
	}

	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return target, qdrant.DefaultPort, useTLS, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, false, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}

	return host, port, useTLS, nil
}
