package handlers

import (
	"context"
	"fmt"
	"net/http"

	"rag-gateway/config"
	apperrors "rag-gateway/errors"
	"rag-gateway/router"
	"rag-gateway/web/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// queryRouter is the slice of the router the handler needs; *router.Router
// satisfies it.
type queryRouter interface {
	Route(ctx context.Context, req router.Request) (*router.Envelope, error)
}

type ChatHandler struct {
	router queryRouter
	config *config.Config
	logger *zap.Logger
}

type ChatRequest struct {
	Query      string          `json:"query"`
	OrgID      string          `json:"orgId"`
	RAGVersion string          `json:"ragversion"`
	History    []types.Message `json:"history"`
}

func NewChatHandler(router queryRouter, config *config.Config, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		router: router,
		config: config,
		logger: logger,
	}
}

// Chat answers one query against the requested backend version and returns
// the unified envelope.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithClientError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Query == "" {
		respondWithClientError(c, http.StatusBadRequest, "Query cannot be empty")
		return
	}
	if req.OrgID == "" {
		respondWithClientError(c, http.StatusBadRequest, "Organization ID is required")
		return
	}

	versionStr := req.RAGVersion
	if versionStr == "" {
		versionStr = h.config.RAGVersion
	}
	version, err := router.ParseVersion(versionStr)
	if err != nil {
		respondWithClientError(c, http.StatusBadRequest,
			fmt.Sprintf("Unknown rag version %q; expected v1 or v2", versionStr))
		return
	}

	envelope, err := h.router.Route(c.Request.Context(), router.Request{
		Query:   req.Query,
		OrgID:   req.OrgID,
		Version: version,
		History: req.History,
	})
	if err != nil {
		if apperrors.IsBackendUnavailable(err) {
			respondWithError(c, http.StatusBadGateway, err,
				fmt.Sprintf("The %s backend is currently unavailable", version),
				h.logger,
				zap.String("org_id", req.OrgID),
				zap.String("version", version.String()))
			return
		}
		respondWithError(c, http.StatusInternalServerError, err, "Failed to answer query", h.logger)
		return
	}

	c.JSON(http.StatusOK, envelope)
}
