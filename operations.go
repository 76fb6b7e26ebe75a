package ontoweave

import (
	"context"
	"fmt"
	"time"

	"github.com/soundprediction/ontoweave/pkg/conformance"
	"github.com/soundprediction/ontoweave/pkg/ontology"
	"github.com/soundprediction/ontoweave/pkg/types"
	"github.com/soundprediction/ontoweave/pkg/validator"
	"github.com/soundprediction/ontoweave/pkg/weaver"
)

// AddConcepts implements Engine. A rejected batch returns an *issues.Error
// and leaves the ontology unchanged.
func (c *Client) AddConcepts(ctx context.Context, batch []types.Concept) (*ontology.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	next, err := c.validator.Validate(c.store, batch)
	c.metrics.ObserveBatch(validator.Op, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	if next != c.store {
		c.setOntology(next)
		c.logger.Info("committed concept batch",
			"concepts", len(batch),
			"classes", next.Len(),
			"generation", next.Generation())
	}
	return next, nil
}

// ApplyOperation implements Engine. Classes and properties removed by a
// Prune are cascaded into the knowledge graph.
func (c *Client) ApplyOperation(ctx context.Context, op weaver.Operation) (*weaver.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := weaver.New(c.store, c.weaverOptions()...)
	out, err := w.Apply(op)
	if err != nil {
		return nil, err
	}
	c.setOntology(out.Store)
	c.cascade(out.RemovedClasses, out.RemovedProperties)
	return out, nil
}

// Stitch implements Engine. A nil p falls back to the proposer set with
// WithStitchProposer. The ontology only changes when the run unifies it.
func (c *Client) Stitch(ctx context.Context, p weaver.Proposer) (*weaver.Summary, error) {
	if p == nil {
		p = c.stitcher
	}
	if p == nil {
		return nil, ErrNoStitchProposer
	}

	opts := append(c.weaverOptions(), weaver.WithMaxRejections(c.maxRejections))
	w := weaver.New(c.store, opts...)
	c.history = w.History()
	sum, err := w.Run(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("stitch: %w", err)
	}
	if list := sum.Store.CheckTree(); len(list) > 0 {
		return nil, fmt.Errorf("%w: stitched ontology: %s", ErrInconsistentState, list[0])
	}

	c.setOntology(sum.Store)
	c.cascade(sum.RemovedClasses, sum.RemovedProperties)
	c.logger.Info("stitched ontology",
		"run_id", c.history.RunID,
		"initial_clusters", sum.InitialClusters,
		"accepted", sum.Accepted,
		"rejected", sum.Rejected,
		"removed_classes", len(sum.RemovedClasses))
	return sum, nil
}

// AddTriplets implements Engine. A rejected batch returns an *issues.Error
// and leaves the knowledge graph unchanged.
func (c *Client) AddTriplets(ctx context.Context, batch []types.Triplet) (*conformance.Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	plan, err := c.checker.Commit(batch)
	c.metrics.ObserveBatch(conformance.Op, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	c.metrics.SetTriplets(c.checker.Len())
	return plan, nil
}

func (c *Client) weaverOptions() []weaver.Option {
	return []weaver.Option{
		weaver.WithLogger(c.logger),
		weaver.WithObserver(func(op weaver.Operation, err error) {
			kind := "unknown"
			if op != nil {
				kind = string(op.Kind())
			}
			c.metrics.ObserveOperation(kind, err)
		}),
	}
}

func (c *Client) setOntology(store *ontology.Store) {
	c.store = store
	c.checker.SetOntology(store)
	c.recordOntology()
}

// cascade drops knowledge graph triplets that depend on removed classes or
// properties.
func (c *Client) cascade(classes, properties []string) {
	if len(classes) == 0 && len(properties) == 0 {
		return
	}
	report := c.checker.Prune(classes, properties)
	c.metrics.SetTriplets(c.checker.Len())
	if len(report.RemovedTriplets) > 0 {
		c.logger.Warn("pruned knowledge graph",
			"removed_classes", classes,
			"removed_properties", properties,
			"removed_triplets", len(report.RemovedTriplets),
			"untyped_entities", report.UntypedEntities)
	}
}
