// Package checkpoint records the progress of long proposer pipelines so an
// interrupted build or extract run can resume where it stopped.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrInvalidRunID is returned when a run ID contains invalid characters
var ErrInvalidRunID = errors.New("invalid run ID: contains path traversal or invalid characters")

// Manager stores run checkpoints as JSON files in one directory.
type Manager struct {
	dir string
}

// NewManager creates a new checkpoint manager.
// If dir is empty, uses os.TempDir()/ontoweave-checkpoints
func NewManager(dir string) (*Manager, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "ontoweave-checkpoints")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &Manager{dir: dir}, nil
}

// Dir returns the checkpoint directory path
func (m *Manager) Dir() string { return m.dir }

// validateRunID rejects IDs containing path separators, path traversal
// sequences, or null bytes.
func validateRunID(id string) error {
	if id == "" || strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, '\x00') {
		return ErrInvalidRunID
	}
	return nil
}

// isPathWithinDirectory checks that the resolved path is within the expected directory.
func isPathWithinDirectory(path, directory string) bool {
	cleanPath := filepath.Clean(path)
	cleanDir := filepath.Clean(directory)
	if !strings.HasSuffix(cleanDir, string(filepath.Separator)) {
		cleanDir += string(filepath.Separator)
	}
	return strings.HasPrefix(cleanPath, cleanDir)
}

// Path returns the file path for a run's checkpoint.
func (m *Manager) Path(runID string) (string, error) {
	if err := validateRunID(runID); err != nil {
		return "", err
	}
	full := filepath.Join(m.dir, fmt.Sprintf("checkpoint_%s.json", runID))
	if !isPathWithinDirectory(full, m.dir) {
		return "", ErrInvalidRunID
	}
	return full, nil
}

// Save persists the checkpoint to disk
func (m *Manager) Save(ctx context.Context, run *Run) error {
	path, err := m.Path(run.ID)
	if err != nil {
		return err
	}
	run.LastUpdatedAt = time.Now()

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	// Write to a temporary file first, then rename for atomic write
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to rename checkpoint file: %w", err)
	}
	return nil
}

// Load retrieves a checkpoint from disk. It returns nil and no error when
// none exists.
func (m *Manager) Load(ctx context.Context, runID string) (*Run, error) {
	path, err := m.Path(runID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &run, nil
}

// Delete removes a checkpoint from disk
func (m *Manager) Delete(ctx context.Context, runID string) error {
	path, err := m.Path(runID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint file: %w", err)
	}
	return nil
}

// List returns every readable checkpoint, oldest update first.
func (m *Manager) List(ctx context.Context) ([]*Run, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint directory: %w", err)
	}

	var runs []*Run
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.dir, entry.Name()))
		if err != nil {
			continue
		}
		var run Run
		if err := json.Unmarshal(data, &run); err != nil {
			continue
		}
		runs = append(runs, &run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].LastUpdatedAt.Before(runs[j].LastUpdatedAt) })
	return runs, nil
}

// RecordError stores err on the checkpoint and saves it.
func (m *Manager) RecordError(ctx context.Context, run *Run, err error) error {
	run.AttemptCount++
	run.LastError = err.Error()
	return m.Save(ctx, run)
}

// CleanOld removes checkpoints not updated within maxAge
func (m *Manager) CleanOld(ctx context.Context, maxAge time.Duration) (int, error) {
	runs, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, run := range runs {
		if !run.LastUpdatedAt.Before(cutoff) {
			continue
		}
		if err := m.Delete(ctx, run.ID); err != nil {
			continue
		}
		removed++
	}
	return removed, nil
}
