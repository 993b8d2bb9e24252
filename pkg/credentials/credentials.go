// Package credentials stores API keys for the embedding, generation and
// vector store services stacks talks to.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/stacks/pkg/dotdir"
)

const (
	credentialsFile = "credentials.toml"

	currentVersion = 1
)

// serviceEnvVars lists, per service, the environment variables checked when
// no key is stored. The first entry is the canonical one.
var serviceEnvVars = map[string][]string{
	"openai":    {"OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
	"gemini":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"qdrant":    {"QDRANT_API_KEY"},
}

// Manager reads and writes credentials.toml in the .stacks/ directory.
type Manager struct {
	path string
	now  func() time.Time
}

// NewManager creates a Manager for the stacks directory resolved from
// override (see dotdir.Manager.Locate), creating the directory if needed.
func NewManager(override string) (*Manager, error) {
	target, err := dotdir.NewManager().Target(override)
	if err != nil {
		return nil, err
	}

	return &Manager{
		path: filepath.Join(target, credentialsFile),
		now:  time.Now,
	}, nil
}

// Path returns the credentials file location.
func (m *Manager) Path() string {
	return m.path
}

// Load reads credentials.toml. A missing file yields an empty File.
func (m *Manager) Load() (*File, error) {
	f := &File{Version: currentVersion}

	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		f.Keys = map[string]Key{}
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	if err := toml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parsing credentials %s: %w", m.path, err)
	}
	if f.Keys == nil {
		f.Keys = map[string]Key{}
	}
	return f, nil
}

// Save writes f with 0600 permissions.
func (m *Manager) Save(f *File) error {
	if f == nil {
		return errors.New("cannot save nil credentials")
	}
	f.Version = currentVersion

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(f); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if err := os.WriteFile(m.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}

// Set stores key for service.
func (m *Manager) Set(service, key string) error {
	if !IsSupported(service) {
		return fmt.Errorf("unsupported service %q", service)
	}

	f, err := m.Load()
	if err != nil {
		return err
	}
	f.Keys[service] = Key{APIKey: key, StoredAt: m.now().UTC().Truncate(time.Second)}
	return m.Save(f)
}

// Get returns the stored key for service, or "" when none is stored.
func (m *Manager) Get(service string) (string, error) {
	f, err := m.Load()
	if err != nil {
		return "", err
	}
	return f.Keys[service].APIKey, nil
}

// Remove deletes the stored key for service and reports whether one existed.
func (m *Manager) Remove(service string) (bool, error) {
	f, err := m.Load()
	if err != nil {
		return false, err
	}
	if _, ok := f.Keys[service]; !ok {
		return false, nil
	}
	delete(f.Keys, service)
	return true, m.Save(f)
}

// List returns the stored keys' services, sorted by name.
func (m *Manager) List() ([]Stored, error) {
	f, err := m.Load()
	if err != nil {
		return nil, err
	}

	stored := make([]Stored, 0, len(f.Keys))
	for service, k := range f.Keys {
		stored = append(stored, Stored{Service: service, StoredAt: k.StoredAt})
	}
	slices.SortFunc(stored, func(a, b Stored) int {
		return strings.Compare(a.Service, b.Service)
	})
	return stored, nil
}

// Resolve returns the key service will use: the stored key first, then the
// service's environment variables in order. Services without keys (ollama,
// sqlite, ...) resolve to SourceNone.
func (m *Manager) Resolve(service string) (Resolved, error) {
	key, err := m.Get(service)
	if err != nil {
		return Resolved{}, err
	}
	if key != "" {
		return Resolved{Key: key, Source: SourceCredentials}, nil
	}

	for _, env := range serviceEnvVars[service] {
		if v := os.Getenv(env); v != "" {
			return Resolved{Key: v, Source: SourceEnv, EnvVar: env}, nil
		}
	}
	return Resolved{}, nil
}

// EnvVar returns the canonical environment variable for service, or "".
func EnvVar(service string) string {
	if vars := serviceEnvVars[service]; len(vars) > 0 {
		return vars[0]
	}
	return ""
}

// Services returns the services that take API keys.
func Services() []string {
	return []string{"openai", "anthropic", "gemini", "qdrant"}
}

// IsSupported reports whether service takes an API key.
func IsSupported(service string) bool {
	return slices.Contains(Services(), service)
}
