package dto

import (
	"errors"
	"fmt"

	"github.com/soundprediction/ontoweave/pkg/types"
	"github.com/soundprediction/ontoweave/pkg/weaver"
)

// Validation errors
var (
	ErrEmptyConcepts = errors.New("concepts cannot be empty")
	ErrEmptyTriplets = errors.New("triplets cannot be empty")
)

// MaxBatchSize bounds concepts or triplets in one request to prevent abuse.
const MaxBatchSize = 10000

// AddConceptsRequest represents a request to add a concept batch
type AddConceptsRequest struct {
	Concepts types.Concepts `json:"concepts"`
}

// Validate performs validation on AddConceptsRequest
func (r *AddConceptsRequest) Validate() error {
	if len(r.Concepts) == 0 {
		return ErrEmptyConcepts
	}
	if len(r.Concepts) > MaxBatchSize {
		return fmt.Errorf("concepts count exceeds maximum (%d)", MaxBatchSize)
	}
	return nil
}

// AddConceptsResponse reports the committed ontology after a batch.
type AddConceptsResponse struct {
	Classes    int    `json:"classes"`
	Clusters   int    `json:"clusters"`
	Generation uint64 `json:"generation"`
}

// ClustersResponse lists the clusters of the ontology.
type ClustersResponse struct {
	Count    int              `json:"count"`
	Clusters []weaver.Cluster `json:"clusters"`
}

// OperationResponse reports an applied stitching operation.
type OperationResponse struct {
	Operation         weaver.OperationKind `json:"operation"`
	Clusters          int                  `json:"clusters"`
	RemovedClasses    []string             `json:"removed_classes,omitempty"`
	RemovedProperties []string             `json:"removed_properties,omitempty"`
}

// AddTripletsRequest represents a request to add a triplet batch
type AddTripletsRequest struct {
	Triplets []types.Triplet `json:"triplets"`
}

// Validate performs validation on AddTripletsRequest
func (r *AddTripletsRequest) Validate() error {
	if len(r.Triplets) == 0 {
		return ErrEmptyTriplets
	}
	if len(r.Triplets) > MaxBatchSize {
		return fmt.Errorf("triplets count exceeds maximum (%d)", MaxBatchSize)
	}
	return nil
}

// AddTripletsResponse reports a committed triplet batch.
type AddTripletsResponse struct {
	Accepted   int `json:"accepted"`
	Duplicates int `json:"duplicates"`
	Total      int `json:"total"`
}

// EntityResponse describes one typed entity.
type EntityResponse struct {
	Name     string          `json:"name"`
	Class    string          `json:"class"`
	Triplets []types.Triplet `json:"triplets"`
}
