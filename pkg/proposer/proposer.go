// Package proposer produces candidate ontology concepts, triplets and
// stitching operations. Proposals are opaque to the engine: everything a
// proposer returns is validated before it is committed.
package proposer

import (
	"context"
	"errors"

	"github.com/soundprediction/ontoweave/pkg/issues"
	"github.com/soundprediction/ontoweave/pkg/ontology"
	"github.com/soundprediction/ontoweave/pkg/types"
)

var (
	// ErrMalformedProposal is returned when a response cannot be decoded,
	// even after JSON repair.
	ErrMalformedProposal = errors.New("malformed proposal")

	// ErrEmptyResponse is returned when the model returns no content.
	ErrEmptyResponse = errors.New("empty response")

	// ErrScriptExhausted is returned by a Script with no responses left.
	ErrScriptExhausted = errors.New("script exhausted")
)

// ConceptRequest asks for concepts answering a group of competency
// questions.
type ConceptRequest struct {
	Questions []string
	Ontology  *ontology.Store
	// Feedback holds the issues of the previous rejected attempt.
	Feedback []issues.Issue
	// Attempt counts from 1.
	Attempt int
}

// ConceptProposer proposes ontology additions.
type ConceptProposer interface {
	ProposeConcepts(ctx context.Context, req ConceptRequest) ([]types.Concept, error)
}

// ConceptProposerFunc adapts a function to ConceptProposer.
type ConceptProposerFunc func(ctx context.Context, req ConceptRequest) ([]types.Concept, error)

// ProposeConcepts calls f.
func (f ConceptProposerFunc) ProposeConcepts(ctx context.Context, req ConceptRequest) ([]types.Concept, error) {
	return f(ctx, req)
}

// TripletRequest asks for triplets extracted from one text.
type TripletRequest struct {
	Text     string
	Ontology *ontology.Store
	// Entities maps already typed entities to their class.
	Entities map[string]string
	Feedback []issues.Issue
	Attempt  int
}

// TripletProposer proposes knowledge graph triplets.
type TripletProposer interface {
	ProposeTriplets(ctx context.Context, req TripletRequest) ([]types.Triplet, error)
}

// TripletProposerFunc adapts a function to TripletProposer.
type TripletProposerFunc func(ctx context.Context, req TripletRequest) ([]types.Triplet, error)

// ProposeTriplets calls f.
func (f TripletProposerFunc) ProposeTriplets(ctx context.Context, req TripletRequest) ([]types.Triplet, error) {
	return f(ctx, req)
}
