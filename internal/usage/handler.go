package usage

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"askmydocs-backend/internal/shared/server/middleware"
	"askmydocs-backend/internal/shared/server/respond"
)

// Handler exposes usage endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches usage routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/usage", h.getUsage)
}

// getUsage returns the snapshot for every kind. With ?kind= it returns the
// Check decision for that kind and ?count= units (default 1) instead.
func (h *Handler) getUsage(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if raw := strings.TrimSpace(c.Query("kind")); raw != "" {
		h.checkKind(c, userID, raw)
		return
	}
	snap, err := h.Svc.Counts(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, snap)
}

func (h *Handler) checkKind(c *gin.Context, userID, raw string) {
	kind, ok := ParseKind(strings.ToLower(raw))
	if !ok {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unknown usage kind", gin.H{"kind": raw})
		return
	}
	n := 1
	if rawCount := strings.TrimSpace(c.Query("count")); rawCount != "" {
		parsed, err := strconv.Atoi(rawCount)
		if err != nil || parsed < 1 {
			respond.Error(c, http.StatusBadRequest, "validation_error", "count must be a positive integer", nil)
			return
		}
		n = parsed
	}
	decision, err := h.Svc.Check(c.Request.Context(), userID, kind, n)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, decision)
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	case errors.Is(err, ErrUnknownKind):
		respond.Error(c, http.StatusBadRequest, "validation_error", "unknown usage kind", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch usage", nil)
	}
}
