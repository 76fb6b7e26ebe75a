package ontoweave

import (
	"context"
	"fmt"
	"time"

	"github.com/soundprediction/ontoweave/pkg/ontology"
	"github.com/soundprediction/ontoweave/pkg/storage"
)

// Save implements Engine.
func (c *Client) Save(ctx context.Context) error {
	if c.repo == nil {
		return ErrNoRepository
	}
	snap := &storage.Snapshot{
		Name:       c.name,
		SavedAt:    time.Now().UTC(),
		Generation: c.store.Generation(),
		Ontology:   c.store.Document(),
		KG:         c.KnowledgeGraph(),
	}
	if err := c.repo.Save(ctx, snap); err != nil {
		return fmt.Errorf("save %q: %w", c.name, err)
	}
	c.logger.Info("saved snapshot",
		"name", c.name,
		"classes", c.store.Len(),
		"triplets", len(snap.KG.Triplets))
	return nil
}

// Load implements Engine. The knowledge graph is re-checked against the
// loaded ontology; if it does not conform, ErrInconsistentState is returned
// and the current state is kept.
func (c *Client) Load(ctx context.Context) error {
	if c.repo == nil {
		return ErrNoRepository
	}
	snap, err := c.repo.Load(ctx, c.name)
	if err != nil {
		return fmt.Errorf("load %q: %w", c.name, err)
	}

	store := ontology.New()
	if snap.Ontology != nil {
		store, err = ontology.FromDocument(snap.Ontology)
		if err != nil {
			return fmt.Errorf("%w: ontology of %q: %v", ErrInconsistentState, c.name, err)
		}
	}
	checker := c.newChecker(store)
	if snap.KG != nil && len(snap.KG.Triplets) > 0 {
		if err := checker.Restore(snap.KG); err != nil {
			return fmt.Errorf("%w: %v", ErrInconsistentState, err)
		}
	}

	c.store = store
	c.checker = checker
	c.history = nil
	c.recordOntology()
	c.logger.Info("loaded snapshot",
		"name", c.name,
		"saved_at", snap.SavedAt,
		"classes", store.Len(),
		"clusters", c.ClusterCount(),
		"triplets", checker.Len())
	return nil
}
