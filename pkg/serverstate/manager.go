// Package serverstate records the "stacks serve" process running against a
// .stacks/ directory. The server holds an exclusive lock for its lifetime so
// a second server cannot write the same chunk store.
package serverstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/papercomputeco/stacks/pkg/dotdir"
)

const (
	stateFileName = "serve.json"
	lockFileName  = "serve.lock"
	stateVersion  = 1
)

// ErrLocked is returned by TryLock when another process holds the lock.
var ErrLocked = errors.New("another stacks server is running against this directory")

// State describes a running server.
type State struct {
	Version       int       `json:"version"`
	PID           int       `json:"pid"`
	Listen        string    `json:"listen"`
	StoreProvider string    `json:"store_provider"`
	AskEnabled    bool      `json:"ask_enabled"`
	StartedAt     time.Time `json:"started_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Alive reports whether the recorded process still exists.
func (s *State) Alive() bool {
	if s == nil || s.PID <= 0 {
		return false
	}
	err := syscall.Kill(s.PID, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

type Manager struct {
	Dir       string
	StatePath string
	LockPath  string
}

type Lock struct {
	file *os.File
}

func NewManager(configDir string) (*Manager, error) {
	dir, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return nil, err
	}

	return &Manager{
		Dir:       dir,
		StatePath: filepath.Join(dir, stateFileName),
		LockPath:  filepath.Join(dir, lockFileName),
	}, nil
}

// TryLock takes the server lock without blocking. It returns ErrLocked when
// another process holds it.
func (m *Manager) TryLock() (*Lock, error) {
	file, err := os.OpenFile(m.LockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("locking server file: %w", err)
	}

	return &Lock{file: file}, nil
}

func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("unlocking server file: %w", err)
	}
	return l.file.Close()
}

// LoadState returns the recorded server, or nil when none was recorded.
func (m *Manager) LoadState() (*State, error) {
	data, err := os.ReadFile(m.StatePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading server state: %w", err)
	}

	state := &State{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing server state: %w", err)
	}

	return state, nil
}

func (m *Manager) SaveState(state *State) error {
	if state == nil {
		return errors.New("cannot save nil state")
	}
	if state.Version == 0 {
		state.Version = stateVersion
	}
	state.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling server state: %w", err)
	}

	tmpFile, err := os.CreateTemp(m.Dir, "serve-state-*.json")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}

	if err := tmpFile.Chmod(0o600); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp state file: %w", err)
	}

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("writing temp state file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp state file: %w", err)
	}

	if err := os.Rename(tmpFile.Name(), m.StatePath); err != nil {
		return fmt.Errorf("persisting state file: %w", err)
	}

	return nil
}

func (m *Manager) ClearState() error {
	if err := os.Remove(m.StatePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing server state: %w", err)
	}
	return nil
}
