package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/ontoweave/pkg/ontology"
	"github.com/soundprediction/ontoweave/pkg/server/dto"
	"github.com/soundprediction/ontoweave/pkg/weaver"
)

// maxOperationBytes bounds the body of an operation request.
const maxOperationBytes = 1 << 20

// OntologyHandler serves the ontology and accepts concept batches and
// stitching operations.
type OntologyHandler struct {
	guard *Guard
}

// NewOntologyHandler creates a new ontology handler
func NewOntologyHandler(guard *Guard) *OntologyHandler {
	return &OntologyHandler{guard: guard}
}

// GetOntology handles GET /api/v1/ontology. ?format=yaml returns YAML.
func (h *OntologyHandler) GetOntology(c *gin.Context) {
	var doc *ontology.Document
	h.guard.Read(func(e Engine) {
		doc = e.Ontology().Document()
	})
	if c.Query("format") == "yaml" {
		c.YAML(http.StatusOK, doc)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// AddConcepts handles POST /api/v1/ontology/concepts
func (h *OntologyHandler) AddConcepts(c *gin.Context) {
	var req dto.AddConceptsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(c, err)
		return
	}

	var resp dto.AddConceptsResponse
	err := h.guard.Write(c.Request.Context(), func(e Engine) error {
		store, err := e.AddConcepts(c.Request.Context(), req.Concepts)
		if err != nil {
			return err
		}
		resp = dto.AddConceptsResponse{
			Classes:    store.Len(),
			Clusters:   e.ClusterCount(),
			Generation: store.Generation(),
		}
		return nil
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetClusters handles GET /api/v1/ontology/clusters
func (h *OntologyHandler) GetClusters(c *gin.Context) {
	var resp dto.ClustersResponse
	h.guard.Read(func(e Engine) {
		resp.Clusters = e.Clusters()
		resp.Count = len(resp.Clusters)
	})
	c.JSON(http.StatusOK, resp)
}

// ApplyOperation handles POST /api/v1/ontology/operations. The body is a
// single merge, bridge or prune operation.
func (h *OntologyHandler) ApplyOperation(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxOperationBytes))
	if err != nil {
		badRequest(c, err)
		return
	}
	op, err := weaver.DecodeOperation(body)
	if err != nil {
		badRequest(c, fmt.Errorf("invalid operation: %w", err))
		return
	}

	var resp dto.OperationResponse
	err = h.guard.Write(c.Request.Context(), func(e Engine) error {
		out, err := e.ApplyOperation(c.Request.Context(), op)
		if err != nil {
			return err
		}
		resp = dto.OperationResponse{
			Operation:         op.Kind(),
			Clusters:          len(out.Clusters),
			RemovedClasses:    out.RemovedClasses,
			RemovedProperties: out.RemovedProperties,
		}
		return nil
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
