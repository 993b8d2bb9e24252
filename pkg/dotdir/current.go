package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	currentFile = "current.json"
)

// CurrentBucket is the bucket selected with "stacks use". Commands that take
// an optional bucket argument fall back to it.
type CurrentBucket struct {
	Name       string    `json:"name"`
	SelectedAt time.Time `json:"selected_at"`
}

// LoadCurrentBucket loads the selected bucket from a target .stacks/current.json.
// Returns nil, nil if no bucket is selected.
// If overrideDir is non-empty, it is used instead of the default .stacks/ location.
func (m *Manager) LoadCurrentBucket(overrideDir string) (*CurrentBucket, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, currentFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading current bucket: %w", err)
	}

	current := &CurrentBucket{}
	if err := json.Unmarshal(data, current); err != nil {
		return nil, fmt.Errorf("parsing current bucket: %w", err)
	}

	return current, nil
}

// SaveCurrentBucket persists the selected bucket to a target .stacks/current.json.
func (m *Manager) SaveCurrentBucket(current *CurrentBucket, overrideDir string) error {
	if current == nil || current.Name == "" {
		return errors.New("cannot save empty bucket selection")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling current bucket: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, currentFile), data, 0o600); err != nil {
		return fmt.Errorf("writing current bucket: %w", err)
	}

	return nil
}

// ClearCurrentBucket removes the selection. Returns nil if nothing is selected.
func (m *Manager) ClearCurrentBucket(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(dir, currentFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing current bucket: %w", err)
	}

	return nil
}

// ErrNoBucket is returned by ResolveBucket when no bucket was given and none
// is selected.
var ErrNoBucket = errors.New(`no bucket given and none selected; pass a bucket or run "stacks use <bucket>"`)

// ResolveBucket returns explicit when set, otherwise the selected bucket.
func (m *Manager) ResolveBucket(explicit, overrideDir string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	current, err := m.LoadCurrentBucket(overrideDir)
	if err != nil {
		return "", err
	}
	if current == nil {
		return "", ErrNoBucket
	}

	return current.Name, nil
}
