// Package dotdir manages the .stacks/ and ~/.stacks directories.
//
// The directory holds config.toml, credentials.toml, the default SQLite chunk
// database and the currently selected bucket.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the stacks directory.
	dirName = ".stacks"

	// EnvHome points every command at a fixed stacks directory.
	EnvHome = "STACKS_HOME"

	sqliteFile = "stacks.sqlite"
)

// Origin records which rule picked a stacks directory.
type Origin string

const (
	OriginFlag    Origin = "--config-dir"
	OriginEnv     Origin = "$" + EnvHome
	OriginProject Origin = "project"
	OriginHome    Origin = "home"
)

// Location is a resolved stacks directory.
type Location struct {
	Dir    string
	Origin Origin
}

type Manager struct {
	getwd   func() (string, error)
	homeDir func() (string, error)
}

func NewManager() *Manager {
	return &Manager{
		getwd:   os.Getwd,
		homeDir: os.UserHomeDir,
	}
}

// Locate resolves the stacks directory without creating it.
// Order of precedence is as follows:
//  1. Provided override (--config-dir)
//  2. $STACKS_HOME
//  3. The nearest .stacks/ in the working directory or one of its parents
//  4. Home ~/.stacks/
func (m *Manager) Locate(overrideDir string) (Location, error) {
	if overrideDir != "" {
		return absLocation(overrideDir, OriginFlag)
	}
	if env := os.Getenv(EnvHome); env != "" {
		return absLocation(env, OriginEnv)
	}

	home, err := m.homeDir()
	if err != nil {
		return Location{}, fmt.Errorf("getting home directory: %w", err)
	}
	homeDir := filepath.Join(home, dirName)

	if project := m.findProjectDir(); project != "" && project != homeDir {
		return Location{Dir: project, Origin: OriginProject}, nil
	}
	return absLocation(homeDir, OriginHome)
}

// Target returns the absolute path of the resolved stacks directory,
// creating it if needed.
func (m *Manager) Target(overrideDir string) (string, error) {
	loc, err := m.Locate(overrideDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(loc.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating stacks directory %s: %w", loc.Dir, err)
	}
	return loc.Dir, nil
}

// DefaultSQLitePath returns the chunk database path inside the resolved
// .stacks/ directory.
func (m *Manager) DefaultSQLitePath(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, sqliteFile), nil
}

// findProjectDir walks up from the working directory to the filesystem root
// and returns the first .stacks/ directory found.
func (m *Manager) findProjectDir() string {
	dir, err := m.getwd()
	if err != nil {
		return ""
	}

	for {
		candidate := filepath.Join(dir, dirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func absLocation(dir string, origin Origin) (Location, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Location{}, fmt.Errorf("resolving %s: %w", dir, err)
	}
	return Location{Dir: abs, Origin: origin}, nil
}
