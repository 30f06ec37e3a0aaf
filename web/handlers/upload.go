package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"rag-gateway/config"
	"rag-gateway/database"
	apperrors "rag-gateway/errors"
	"rag-gateway/ingest"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ingestionStore is the slice of the database the handler needs;
// *database.Store satisfies it.
type ingestionStore interface {
	SaveIngestion(ctx context.Context, orgID, filename string, res *ingest.Result) error
	GetIngestion(ctx context.Context, fileID string) (*database.StoredDocument, error)
}

type UploadHandler struct {
	chain  *ingest.Chain
	store  ingestionStore
	config *config.Config
	logger *zap.Logger
}

func NewUploadHandler(chain *ingest.Chain, store ingestionStore, config *config.Config, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{
		chain:  chain,
		store:  store,
		config: config,
		logger: logger,
	}
}

// Upload runs a document through the ingestion fallback chain and persists
// the extracted content. Returns 202 on success; 422 with the attempt trail
// when every strategy failed.
func (h *UploadHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		respondWithClientError(c, http.StatusBadRequest, "A file is required")
		return
	}
	orgID := c.PostForm("orgId")
	if orgID == "" {
		respondWithClientError(c, http.StatusBadRequest, "Organization ID is required")
		return
	}
	fileID := c.PostForm("fileId")

	filename := sanitizeFilename(file.Filename)
	if filename == "" {
		respondWithClientError(c, http.StatusBadRequest, "Invalid or unsafe filename")
		return
	}

	// Per-request scratch dir; nothing is shared across requests.
	scratchDir, err := os.MkdirTemp("", "ingest-")
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "Could not stage uploaded file", h.logger)
		return
	}
	defer os.RemoveAll(scratchDir)

	localPath := filepath.Join(scratchDir, filename)
	if err := c.SaveUploadedFile(file, localPath); err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "Could not stage uploaded file", h.logger)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.config.IngestionTimeout)
	defer cancel()

	result, err := h.chain.Ingest(ctx, fileID, localPath, file.Header.Get("Content-Type"))
	if err != nil {
		var exhausted *ingest.ExhaustedError
		if errors.As(err, &exhausted) {
			h.logger.Warn("Ingestion exhausted all strategies",
				zap.String("org_id", orgID),
				zap.String("filename", filename))
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":    "Document could not be ingested by any strategy",
				"attempts": exhausted.Attempts,
			})
			return
		}
		respondWithError(c, http.StatusInternalServerError, err, "Ingestion failed", h.logger,
			zap.String("org_id", orgID))
		return
	}

	if err := h.store.SaveIngestion(ctx, orgID, filename, result); err != nil {
		respondWithError(c, http.StatusInternalServerError, err, "Could not persist ingested document", h.logger,
			zap.String("file_id", result.FileID))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":  "Document ingested",
		"fileId":   result.FileID,
		"strategy": result.FinalStrategy.String(),
		"nodes":    len(result.Nodes),
		"attempts": result.Attempts,
	})
}

// GetDocument returns a stored ingestion result with its audit trail.
func (h *UploadHandler) GetDocument(c *gin.Context) {
	fileID := c.Param("fileID")
	doc, err := h.store.GetIngestion(c.Request.Context(), fileID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			respondWithClientError(c, http.StatusNotFound, "Document not found")
			return
		}
		respondWithError(c, http.StatusInternalServerError, err, "Could not load document", h.logger,
			zap.String("file_id", fileID))
		return
	}
	c.JSON(http.StatusOK, doc)
}

// sanitizeFilename strips path components and rejects names that could
// escape the scratch directory.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return ""
	}
	if strings.ContainsAny(name, "/\\") {
		return ""
	}
	return name
}
