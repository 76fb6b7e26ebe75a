// Package storage persists ontology and knowledge graph snapshots.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soundprediction/ontoweave/pkg/config"
	"github.com/soundprediction/ontoweave/pkg/ontology"
	"github.com/soundprediction/ontoweave/pkg/types"
)

var (
	// ErrNotFound is returned when no snapshot exists under a name.
	ErrNotFound = errors.New("snapshot not found")

	// ErrInvalidArtifactName is returned when a snapshot name contains path
	// traversal or invalid characters.
	ErrInvalidArtifactName = errors.New("invalid artifact name: contains path traversal or invalid characters")
)

// Snapshot is the persisted state of one engine.
type Snapshot struct {
	Name       string             `json:"name"`
	SavedAt    time.Time          `json:"saved_at"`
	Generation uint64             `json:"generation"`
	Ontology   *ontology.Document `json:"ontology"`
	KG         *types.KG          `json:"kg,omitempty"`
}

// Repository stores snapshots by name.
type Repository interface {
	Save(ctx context.Context, snapshot *Snapshot) error
	// Load returns ErrNotFound when name was never saved.
	Load(ctx context.Context, name string) (*Snapshot, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]string, error)
	Close() error
}

// Open creates the repository selected by cfg.Driver.
func Open(cfg config.StorageConfig) (Repository, error) {
	switch cfg.Driver {
	case "", "file":
		return NewFileRepository(cfg.Path)
	case "badger":
		return OpenBadger(cfg.Path, false)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

// ValidateName checks that name is safe to use as a file name or key.
func ValidateName(name string) error {
	if name == "" {
		return ErrInvalidArtifactName
	}
	if strings.Contains(name, "..") {
		return ErrInvalidArtifactName
	}
	if strings.ContainsAny(name, `/\`) {
		return ErrInvalidArtifactName
	}
	if strings.ContainsRune(name, '\x00') {
		return ErrInvalidArtifactName
	}
	return nil
}
