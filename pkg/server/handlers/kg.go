package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/ontoweave/pkg/server/dto"
	"github.com/soundprediction/ontoweave/pkg/types"
)

// KGHandler serves the knowledge graph and accepts triplet batches.
type KGHandler struct {
	guard *Guard
}

// NewKGHandler creates a new knowledge graph handler
func NewKGHandler(guard *Guard) *KGHandler {
	return &KGHandler{guard: guard}
}

// GetKG handles GET /api/v1/kg
func (h *KGHandler) GetKG(c *gin.Context) {
	var kg *types.KG
	h.guard.Read(func(e Engine) {
		kg = e.KnowledgeGraph()
	})
	c.JSON(http.StatusOK, kg)
}

// AddTriplets handles POST /api/v1/kg/triplets
func (h *KGHandler) AddTriplets(c *gin.Context) {
	var req dto.AddTripletsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(c, err)
		return
	}

	var resp dto.AddTripletsResponse
	err := h.guard.Write(c.Request.Context(), func(e Engine) error {
		plan, err := e.AddTriplets(c.Request.Context(), req.Triplets)
		if err != nil {
			return err
		}
		resp = dto.AddTripletsResponse{
			Accepted:   len(plan.Accepted),
			Duplicates: plan.Duplicates,
			Total:      len(e.KnowledgeGraph().Triplets),
		}
		return nil
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetEntity handles GET /api/v1/entities/:name. The response lists the
// entity's class and every triplet it takes part in.
func (h *KGHandler) GetEntity(c *gin.Context) {
	name := c.Param("name")
	var (
		resp  dto.EntityResponse
		found bool
	)
	h.guard.Read(func(e Engine) {
		resp.Class, found = e.EntityType(name)
		if !found {
			return
		}
		resp.Name = name
		resp.Triplets = []types.Triplet{}
		for _, t := range e.KnowledgeGraph().Triplets {
			if t.Subject == name || t.Object == name {
				resp.Triplets = append(resp.Triplets, t)
			}
		}
	})
	if !found {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   dto.ErrCodeNotFound,
			Message: "entity '" + name + "' has no class assignment",
		})
		return
	}
	c.JSON(http.StatusOK, resp)
}
