package weaver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/soundprediction/ontoweave/pkg/issues"
	"github.com/soundprediction/ontoweave/pkg/ontology"
)

// State is the stitching state of an ontology.
type State string

const (
	Fragmented State = "fragmented"
	Unified    State = "unified"
)

// DefaultMaxRejections bounds consecutive rejected proposals in Run.
const DefaultMaxRejections = 25

// ErrTooManyRejections is returned by Run when the proposer keeps
// producing operations that are rejected.
var ErrTooManyRejections = errors.New("too many rejected stitching operations")

// ErrInvalidProposal marks proposer errors caused by an unusable answer,
// such as a reply that does not decode. Run treats them as rejections.
var ErrInvalidProposal = errors.New("invalid stitching proposal")

// Input is what a proposer sees before choosing the next operation.
type Input struct {
	Ontology *ontology.Store
	Clusters []Cluster
	History  []Operation
	// Feedback holds the issues of the previously rejected proposal.
	Feedback []issues.Issue
}

// Proposer suggests the next stitching operation.
type Proposer interface {
	ProposeOperation(ctx context.Context, in Input) (Operation, error)
}

// ProposerFunc adapts a function to Proposer.
type ProposerFunc func(ctx context.Context, in Input) (Operation, error)

// ProposeOperation calls f.
func (f ProposerFunc) ProposeOperation(ctx context.Context, in Input) (Operation, error) {
	return f(ctx, in)
}

// Weaver drives a fragmented ontology towards a single cluster. Every
// accepted operation strictly lowers the cluster count, so at most
// len(initial clusters)-1 operations are ever accepted.
type Weaver struct {
	store         *ontology.Store
	clusters      []Cluster
	history       *History
	logger        *slog.Logger
	maxRejections int
	observe       func(Operation, error)
}

// Option configures a Weaver.
type Option func(*Weaver)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Weaver) {
		w.logger = logger
	}
}

// WithMaxRejections sets how many consecutive rejections Run tolerates.
// Zero or less disables the limit.
func WithMaxRejections(n int) Option {
	return func(w *Weaver) {
		w.maxRejections = n
	}
}

// WithObserver registers fn to be called after every Apply with the
// operation and its result.
func WithObserver(fn func(op Operation, err error)) Option {
	return func(w *Weaver) {
		w.observe = fn
	}
}

// WithRunID sets the run id recorded in the history.
func WithRunID(id string) Option {
	return func(w *Weaver) {
		w.history.RunID = id
	}
}

// New creates a Weaver for store and records the starting point.
func New(store *ontology.Store, opts ...Option) *Weaver {
	clusters := FindClusters(store)
	w := &Weaver{
		store:         store,
		clusters:      clusters,
		logger:        slog.Default(),
		maxRejections: DefaultMaxRejections,
		history: &History{
			RunID:            uuid.NewString(),
			OriginalOntology: store.Document(),
			OriginalClusters: clusters,
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Store returns the current snapshot.
func (w *Weaver) Store() *ontology.Store { return w.store }

// Clusters returns the clusters of the current snapshot.
func (w *Weaver) Clusters() []Cluster { return w.clusters }

// History returns the record of accepted operations.
func (w *Weaver) History() *History { return w.history }

// State reports whether more than one cluster remains.
func (w *Weaver) State() State {
	if len(w.clusters) > 1 {
		return Fragmented
	}
	return Unified
}

// Apply validates op, checks that it lowers the cluster count and commits
// it. A rejected operation leaves the Weaver unchanged.
func (w *Weaver) Apply(op Operation) (*Outcome, error) {
	out, err := w.apply(op)
	if w.observe != nil {
		w.observe(op, err)
	}
	return out, err
}

func (w *Weaver) apply(op Operation) (*Outcome, error) {
	if w.State() == Unified {
		return nil, issues.New(OpApply, []issues.Issue{{
			Code:    issues.CodeInvalidOperation,
			Path:    "operation",
			Message: "The ontology is already a single cluster",
		}})
	}

	out, err := ApplyOperation(w.store, op, w.clusters)
	if err != nil {
		return nil, err
	}

	before, after := len(w.clusters), len(out.Clusters)
	w.logger.Debug("simulated stitching operation", "operation", op.Kind(), "before", before, "after", after)
	if after >= before {
		return nil, issues.New(OpApply, []issues.Issue{{
			Code:    issues.CodeClusterCountNotReduced,
			Path:    string(op.Kind()),
			Message: fmt.Sprintf("Operation %s did not reduce clusters: before=%d after=%d", op.Kind(), before, after),
			Hint:    "Propose an operation that reduces the number of clusters.",
		}})
	}

	w.store = out.Store
	w.clusters = out.Clusters
	w.history.Steps = append(w.history.Steps, Step{Operation: op})
	w.logger.Info("accepted stitching operation",
		"run_id", w.history.RunID,
		"operation", op.Kind(),
		"clusters", after)
	return out, nil
}

// Summary describes a finished Run.
type Summary struct {
	Store             *ontology.Store
	InitialClusters   int
	Accepted          int
	Rejected          int
	RemovedClasses    []string
	RemovedProperties []string
}

// Run asks p for operations until the ontology is unified. Rejected
// proposals are answered with their issues as feedback on the next call.
func (w *Weaver) Run(ctx context.Context, p Proposer) (*Summary, error) {
	sum := &Summary{InitialClusters: len(w.clusters)}
	removedClasses := make(map[string]struct{})
	removedProps := make(map[string]struct{})

	var feedback []issues.Issue
	streak := 0
	for w.State() == Fragmented {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := w.step(ctx, p, feedback)
		if err != nil {
			var ierr *issues.Error
			if !errors.As(err, &ierr) {
				return nil, err
			}
			sum.Rejected++
			streak++
			feedback = ierr.Issues
			w.logger.Warn("rejected stitching operation",
				"run_id", w.history.RunID,
				"issues", len(ierr.Issues),
				"codes", issues.Codes(ierr.Issues))
			if w.maxRejections > 0 && streak >= w.maxRejections {
				return nil, fmt.Errorf("%w: %d in a row: %v", ErrTooManyRejections, streak, err)
			}
			continue
		}

		sum.Accepted++
		streak = 0
		feedback = nil
		for _, c := range out.RemovedClasses {
			removedClasses[c] = struct{}{}
		}
		for _, name := range out.RemovedProperties {
			removedProps[name] = struct{}{}
		}
	}

	sum.Store = w.store
	sum.RemovedClasses = sortedKeys(removedClasses)
	sum.RemovedProperties = sortedKeys(removedProps)
	return sum, nil
}

// step asks p for one operation and applies it. Unusable proposals come
// back as an *issues.Error like any other rejection.
func (w *Weaver) step(ctx context.Context, p Proposer, feedback []issues.Issue) (*Outcome, error) {
	op, err := p.ProposeOperation(ctx, Input{
		Ontology: w.store,
		Clusters: w.clusters,
		History:  w.history.Operations(),
		Feedback: feedback,
	})
	if errors.Is(err, ErrInvalidProposal) {
		return nil, issues.New(OpApply, []issues.Issue{{
			Code:    issues.CodeInvalidOperation,
			Path:    "operation",
			Message: err.Error(),
			Hint:    "Answer with exactly one merge, bridge or prune operation as JSON.",
		}})
	}
	if err != nil {
		return nil, fmt.Errorf("propose operation: %w", err)
	}
	return w.Apply(op)
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
