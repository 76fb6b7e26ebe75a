package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// Build information - can be set at build time using ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// HealthHandler handles health check requests
type HealthHandler struct {
	guard   *Guard
	started time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(guard *Guard) *HealthHandler {
	return &HealthHandler{guard: guard, started: time.Now()}
}

// HealthCheck handles GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	response := gin.H{
		"status":    "healthy",
		"service":   "ontoweave",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
		"build_info": gin.H{
			"git_commit": GitCommit,
			"build_time": BuildTime,
			"go_version": GoVersion,
		},
		"uptime": time.Since(h.started).Round(time.Second).String(),
	}
	if h.guard == nil {
		response["status"] = "unhealthy"
		response["error"] = "engine not initialized"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	h.guard.Read(func(e Engine) {
		clusters := e.ClusterCount()
		response["ontology"] = gin.H{
			"classes":    e.Ontology().Len(),
			"clusters":   clusters,
			"generation": e.Ontology().Generation(),
		}
		response["kg"] = gin.H{"triplets": len(e.KnowledgeGraph().Triplets)}
		if clusters > 1 {
			response["status"] = "degraded"
			response["note"] = "ontology is fragmented; stitch it before adding concepts"
		}
	})
	c.JSON(http.StatusOK, response)
}

// ReadinessCheck handles GET /ready
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if h.guard == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "engine not initialized",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// LivenessCheck handles GET /live
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
