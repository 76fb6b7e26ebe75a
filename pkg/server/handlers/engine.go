package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/ontoweave"
	"github.com/soundprediction/ontoweave/pkg/issues"
	"github.com/soundprediction/ontoweave/pkg/server/dto"
	"github.com/soundprediction/ontoweave/pkg/weaver"
)

// Engine is the engine surface used by the handlers.
type Engine interface {
	ontoweave.Engine
	Clusters() []weaver.Cluster
}

// Guard serialises access to an Engine, which has no locking of its own.
// Reads share the lock; writes hold it exclusively and, when persist is
// set, save the engine before releasing it.
type Guard struct {
	mu      sync.RWMutex
	engine  Engine
	persist bool
	logger  *slog.Logger
}

// NewGuard creates a Guard for engine.
func NewGuard(engine Engine, persist bool, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{engine: engine, persist: persist, logger: logger}
}

// Read runs fn under the shared lock.
func (g *Guard) Read(fn func(Engine)) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fn(g.engine)
}

// errPersist marks a write that was committed but not saved.
var errPersist = errors.New("failed to persist engine state")

// Write runs fn under the exclusive lock and saves the engine when fn
// succeeds.
func (g *Guard) Write(ctx context.Context, fn func(Engine) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := fn(g.engine); err != nil {
		return err
	}
	if !g.persist {
		return nil
	}
	if err := g.engine.Save(ctx); err != nil {
		g.logger.Error("failed to persist engine state", "error", err)
		return errors.Join(errPersist, err)
	}
	return nil
}

// writeError maps err to a status code and an ErrorResponse.
func writeError(c *gin.Context, err error) {
	var ierr *issues.Error
	switch {
	case errors.As(err, &ierr):
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{
			Error:   dto.ErrCodeValidationFailed,
			Message: ierr.Op + " rejected",
			Issues:  ierr.Issues,
		})
	case errors.Is(err, errPersist):
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   dto.ErrCodePersistFailed,
			Message: err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   dto.ErrCodeInternal,
			Message: err.Error(),
		})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:   dto.ErrCodeInvalidRequest,
		Message: err.Error(),
	})
}
