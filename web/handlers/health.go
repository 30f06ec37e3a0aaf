package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// remoteHealth is satisfied by *noderag.Client.
type remoteHealth interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	nodeRAG remoteHealth
	logger  *zap.Logger
}

func NewHealthHandler(nodeRAG remoteHealth, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{nodeRAG: nodeRAG, logger: logger}
}

// Health reports gateway liveness. NodeRAG reachability is best-effort
// diagnostics; an unreachable v2 backend does not make the gateway unhealthy.
func (h *HealthHandler) Health(c *gin.Context) {
	status := gin.H{"status": "ok"}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.nodeRAG.Health(ctx); err != nil {
		h.logger.Debug("NodeRAG health check failed", zap.Error(err))
		status["noderag"] = "unreachable"
	} else {
		status["noderag"] = "ok"
	}

	c.JSON(http.StatusOK, status)
}
