package ontoweave

import (
	"context"
	"errors"
	"log/slog"

	"github.com/soundprediction/ontoweave/pkg/config"
	"github.com/soundprediction/ontoweave/pkg/conformance"
	"github.com/soundprediction/ontoweave/pkg/ontology"
	"github.com/soundprediction/ontoweave/pkg/proposer"
	"github.com/soundprediction/ontoweave/pkg/storage"
	"github.com/soundprediction/ontoweave/pkg/telemetry"
	"github.com/soundprediction/ontoweave/pkg/types"
	"github.com/soundprediction/ontoweave/pkg/validator"
	"github.com/soundprediction/ontoweave/pkg/weaver"
)

var (
	// ErrInconsistentState is returned when state that passed validation
	// turns out not to hold together, e.g. a persisted knowledge graph that
	// no longer conforms to its persisted ontology.
	ErrInconsistentState = errors.New("inconsistent engine state")
	// ErrNoRepository is returned by Save and Load without a repository.
	ErrNoRepository = errors.New("no repository configured")
	// ErrNoStitchProposer is returned by Stitch when neither an argument
	// nor a default stitch proposer is available.
	ErrNoStitchProposer = errors.New("no stitch proposer configured")
)

// Engine keeps an ontology and a knowledge graph consistent with each
// other. Every mutation is validated first and committed only as a whole.
type Engine interface {
	// Ontology returns the committed ontology snapshot.
	Ontology() *ontology.Store

	// ClusterCount returns the number of disconnected class clusters.
	ClusterCount() int

	// AddConcepts validates a batch of concepts and commits it.
	AddConcepts(ctx context.Context, batch []types.Concept) (*ontology.Store, error)

	// ApplyOperation applies a single stitching operation.
	ApplyOperation(ctx context.Context, op weaver.Operation) (*weaver.Outcome, error)

	// Stitch asks p for operations until the ontology is a single cluster.
	Stitch(ctx context.Context, p weaver.Proposer) (*weaver.Summary, error)

	// AddTriplets checks a batch of triplets and commits it.
	AddTriplets(ctx context.Context, batch []types.Triplet) (*conformance.Plan, error)

	// KnowledgeGraph returns the committed triplets.
	KnowledgeGraph() *types.KG

	// EntityType returns the current class of an entity.
	EntityType(entity string) (string, bool)

	// BuildOntology grows the ontology from groups of competency questions.
	BuildOntology(ctx context.Context, questionGroups [][]string, p proposer.ConceptProposer) (*Report, error)

	// ExtractKG grows the knowledge graph from texts.
	ExtractKG(ctx context.Context, texts []string, p proposer.TripletProposer) (*Report, error)

	// Save persists the ontology and knowledge graph.
	Save(ctx context.Context) error

	// Load replaces the state with the last saved snapshot.
	Load(ctx context.Context) error
}

// Client is the main implementation of Engine. It is meant for a single
// writer; callers sharing a Client between goroutines serialise access.
type Client struct {
	store     *ontology.Store
	validator *validator.Validator
	checker   *conformance.Checker
	history   *weaver.History

	repo     storage.Repository
	name     string
	stitcher weaver.Proposer
	metrics  *telemetry.Metrics
	logger   *slog.Logger

	maxRemedyAttempts int
	maxRejections     int
	cacheSize         int
	autoStitch        bool
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics records batch and stitching activity in m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithRepository persists state in repo under name.
func WithRepository(repo storage.Repository, name string) Option {
	return func(c *Client) {
		c.repo = repo
		c.name = name
	}
}

// WithStitchProposer sets the proposer used by automatic stitching and by
// Stitch calls without a proposer.
func WithStitchProposer(p weaver.Proposer) Option {
	return func(c *Client) {
		c.stitcher = p
	}
}

// WithMaxRemedyAttempts sets how often a rejected batch is re-proposed.
func WithMaxRemedyAttempts(n int) Option {
	return func(c *Client) {
		c.maxRemedyAttempts = n
	}
}

// WithMaxRejections sets how many consecutive rejected stitching
// operations Stitch tolerates.
func WithMaxRejections(n int) Option {
	return func(c *Client) {
		c.maxRejections = n
	}
}

// WithAncestorCacheSize sets the capacity of the conformance checker's
// ancestor cache.
func WithAncestorCacheSize(n int) Option {
	return func(c *Client) {
		c.cacheSize = n
	}
}

// WithEngineConfig applies the engine section of the configuration.
func WithEngineConfig(cfg config.EngineConfig) Option {
	return func(c *Client) {
		if cfg.MaxRemedyAttempts > 0 {
			c.maxRemedyAttempts = cfg.MaxRemedyAttempts
		}
		if cfg.MaxRejections > 0 {
			c.maxRejections = cfg.MaxRejections
		}
		if cfg.AncestorCacheSize > 0 {
			c.cacheSize = cfg.AncestorCacheSize
		}
		c.autoStitch = cfg.AutoStitch
	}
}

// New creates a Client over store. A nil store starts from an empty
// ontology.
func New(store *ontology.Store, opts ...Option) *Client {
	if store == nil {
		store = ontology.New()
	}
	c := &Client{
		store:             store,
		name:              "default",
		logger:            slog.Default(),
		maxRemedyAttempts: 3,
		maxRejections:     weaver.DefaultMaxRejections,
		cacheSize:         conformance.DefaultCacheSize,
		autoStitch:        true,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.validator = validator.New(validator.WithLogger(c.logger))
	c.checker = c.newChecker(store)
	c.recordOntology()
	return c
}

func (c *Client) newChecker(store *ontology.Store) *conformance.Checker {
	return conformance.New(store,
		conformance.WithLogger(c.logger),
		conformance.WithCacheSize(c.cacheSize))
}

// Ontology implements Engine.
func (c *Client) Ontology() *ontology.Store { return c.store }

// ClusterCount implements Engine.
func (c *Client) ClusterCount() int { return len(c.store.Components()) }

// Clusters returns the clusters of the committed ontology.
func (c *Client) Clusters() []weaver.Cluster { return weaver.FindClusters(c.store) }

// KnowledgeGraph implements Engine.
func (c *Client) KnowledgeGraph() *types.KG { return c.checker.KG(c.name) }

// EntityType implements Engine.
func (c *Client) EntityType(entity string) (string, bool) { return c.checker.EntityType(entity) }

// Entities returns every typed entity, sorted.
func (c *Client) Entities() []string { return c.checker.Entities() }

// LastStitch returns the history of the most recent Stitch call, or nil.
func (c *Client) LastStitch() *weaver.History { return c.history }

func (c *Client) recordOntology() {
	c.metrics.SetOntology(c.store.Len(), c.ClusterCount())
	c.metrics.SetTriplets(c.checker.Len())
}

var _ Engine = (*Client)(nil)
