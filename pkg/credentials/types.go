package credentials

import "time"

// File is the on-disk layout of credentials.toml.
type File struct {
	Version int            `toml:"version"`
	Keys    map[string]Key `toml:"keys"`
}

// Key is one stored API key.
type Key struct {
	APIKey   string    `toml:"api_key"`
	StoredAt time.Time `toml:"stored_at"`
}

// Source says where a resolved key came from.
type Source string

const (
	SourceNone        Source = ""
	SourceCredentials Source = "credentials.toml"
	SourceEnv         Source = "env"
)

// Resolved is the key a service will authenticate with.
type Resolved struct {
	Key    string
	Source Source

	// EnvVar names the variable the key was read from when Source is SourceEnv.
	EnvVar string
}

// Stored describes a stored key without exposing it.
type Stored struct {
	Service  string
	StoredAt time.Time
}
