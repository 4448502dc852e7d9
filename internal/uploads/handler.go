// Package uploads hands out presigned URLs for direct-to-bucket uploads.
package uploads

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"askmydocs-backend/internal/doctype"
	"askmydocs-backend/internal/documents"
	"askmydocs-backend/internal/shared/auth"
	"askmydocs-backend/internal/shared/server/middleware"
	"askmydocs-backend/internal/shared/server/respond"
	"askmydocs-backend/internal/shared/telemetry"
	"askmydocs-backend/internal/shared/util"
)

const maxUploadBytes = 25 << 20

// Presigner issues a presigned upload for a new document.
type Presigner interface {
	Presign(ctx context.Context, sess auth.Session, filename, contentType string) (documents.Upload, error)
}

// Handler serves POST /uploads/presign.
type Handler struct {
	svc Presigner
}

// NewHandler constructs a Handler.
func NewHandler(svc Presigner) *Handler {
	return &Handler{svc: svc}
}

type presignRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

// RegisterRoutes attaches upload routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/uploads/presign", h.presign)
}

func (h *Handler) presign(c *gin.Context) {
	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	req.FileName = strings.TrimSpace(req.FileName)
	req.ContentType = strings.TrimSpace(req.ContentType)

	if req.FileName == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "fileName is required", nil)
		return
	}
	name, err := util.SanitizeFileName(req.FileName)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid fileName", nil)
		return
	}
	req.FileName = name
	if !doctype.Classify(req.FileName).Extractable() {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file type is not supported", nil)
		return
	}
	if req.ContentType == "" {
		req.ContentType = doctype.ContentType(req.FileName)
	}
	if req.SizeBytes <= 0 || req.SizeBytes > maxUploadBytes {
		respond.Error(c, http.StatusBadRequest, "validation_error", "sizeBytes exceeds limit", nil)
		return
	}

	sess, _ := middleware.SessionFromContext(c)
	out, err := h.svc.Presign(c.Request.Context(), sess, req.FileName, req.ContentType)
	if err != nil {
		switch {
		case errors.Is(err, documents.ErrPresignUnsupported):
			respond.Error(c, http.StatusNotImplemented, "not_supported", "uploads not configured", nil)
		case errors.Is(err, documents.ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid fileName", nil)
		default:
			telemetry.Error("uploads.presign.failed", map[string]any{
				"err":         err.Error(),
				"contentType": req.ContentType,
				"sizeBytes":   req.SizeBytes,
				"request_id":  c.GetString("requestId"),
			})
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to generate upload url", nil)
		}
		return
	}
	c.Set(middleware.DocPathKey, out.Path)
	respond.JSON(c, http.StatusOK, out)
}
