package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const snapshotExt = ".json"

// FileRepository keeps one JSON file per snapshot in a directory.
type FileRepository struct {
	dir string
}

// NewFileRepository creates a repository in dir.
// If dir is empty, uses os.TempDir()/ontoweave-snapshots
func NewFileRepository(dir string) (*FileRepository, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "ontoweave-snapshots")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &FileRepository{dir: dir}, nil
}

// Dir returns the snapshot directory.
func (r *FileRepository) Dir() string { return r.dir }

func (r *FileRepository) path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	full := filepath.Join(r.dir, name+snapshotExt)
	if !isPathWithinDirectory(full, r.dir) {
		return "", ErrInvalidArtifactName
	}
	return full, nil
}

// isPathWithinDirectory checks that the resolved path is within directory.
func isPathWithinDirectory(path, directory string) bool {
	cleanPath := filepath.Clean(path)
	cleanDir := filepath.Clean(directory)
	if !strings.HasSuffix(cleanDir, string(filepath.Separator)) {
		cleanDir += string(filepath.Separator)
	}
	return strings.HasPrefix(cleanPath, cleanDir)
}

// Save writes the snapshot atomically.
func (r *FileRepository) Save(ctx context.Context, snapshot *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := r.path(snapshot.Name)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	snapshot.SavedAt = time.Now().UTC()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// Write to a temporary file first, then rename for atomic write
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename snapshot file: %w", err)
	}
	return nil
}

// Load reads a snapshot.
func (r *FileRepository) Load(ctx context.Context, name string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := r.path(name)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot %s: %w", name, err)
	}
	return &snapshot, nil
}

// Delete removes a snapshot. Deleting a missing snapshot is not an error.
func (r *FileRepository) Delete(ctx context.Context, name string) error {
	path, err := r.path(name)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete snapshot file: %w", err)
	}
	return nil
}

// List returns the names of all snapshots, sorted.
func (r *FileRepository) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		// Only .json files; .tmp files are partial writes
		if entry.IsDir() || filepath.Ext(entry.Name()) != snapshotExt {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), snapshotExt))
	}
	sort.Strings(names)
	return names, nil
}

// Close is a no-op.
func (r *FileRepository) Close() error { return nil }
