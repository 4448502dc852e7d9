package documents

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"askmydocs-backend/internal/extract"
	"askmydocs-backend/internal/llm"
	"askmydocs-backend/internal/shared/server/middleware"
	"askmydocs-backend/internal/shared/server/respond"
	"askmydocs-backend/internal/shared/storage/object"
	"askmydocs-backend/internal/transcribe"
	"askmydocs-backend/internal/usage"
)

const maxUploadSize = 25 << 20 // 25MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/documents", h.list)
	rg.POST("/documents", h.upload)
	rg.POST("/documents/register", h.register)
	rg.POST("/documents/extract", h.extract)
	rg.POST("/documents/summarize", h.summarize)
	rg.POST("/documents/ask", h.ask)
	rg.GET("/documents/answers", h.answers)
}

func (h *Handler) list(c *gin.Context) {
	sess, _ := middleware.SessionFromContext(c)
	docs, err := h.Svc.List(c.Request.Context(), sess)
	if err != nil {
		h.fail(c, err, "failed to list documents")
		return
	}
	respond.JSON(c, http.StatusOK, listResponse{Documents: docs})
}

func (h *Handler) upload(c *gin.Context) {
	sess, _ := middleware.SessionFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	c.Set(middleware.DocPathKey, fileHeader.Filename)
	doc, err := h.Svc.Upload(c.Request.Context(), sess, fileHeader.Filename, fileHeader.Size, file)
	if err != nil {
		h.fail(c, err, "failed to upload document")
		return
	}
	c.Set(middleware.DocPathKey, doc.Path)
	respond.JSON(c, http.StatusCreated, doc)
}

func (h *Handler) register(c *gin.Context) {
	sess, _ := middleware.SessionFromContext(c)
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	req.Path = strings.TrimSpace(req.Path)
	if req.Path == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "path is required", nil)
		return
	}
	c.Set(middleware.DocPathKey, req.Path)
	doc, err := h.Svc.Register(c.Request.Context(), sess, req.Path, strings.TrimSpace(req.Name), req.SizeBytes)
	if err != nil {
		h.fail(c, err, "failed to register document")
		return
	}
	respond.JSON(c, http.StatusCreated, doc)
}

func (h *Handler) extract(c *gin.Context) {
	sess, _ := middleware.SessionFromContext(c)
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Path) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "path is required", nil)
		return
	}
	c.Set(middleware.DocPathKey, req.Path)
	doc, err := h.Svc.Extract(c.Request.Context(), sess, req.Path)
	if err != nil {
		h.fail(c, err, "Could not extract text for this file.")
		return
	}
	respond.JSON(c, http.StatusOK, doc)
}

func (h *Handler) summarize(c *gin.Context) {
	sess, _ := middleware.SessionFromContext(c)
	var req summarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	results, decision, err := h.Svc.Summarize(c.Request.Context(), sess, req.Paths)
	if errors.Is(err, usage.ErrLimitReached) {
		respond.Error(c, http.StatusTooManyRequests, "limit_reached", "Daily summary limit reached. Please try again tomorrow.", decision)
		return
	}
	if err != nil {
		h.fail(c, err, "Summarize selected failed")
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"results": results, "usage": decision})
}

func (h *Handler) ask(c *gin.Context) {
	sess, _ := middleware.SessionFromContext(c)
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	results, decision, err := h.Svc.Ask(c.Request.Context(), sess, req.Question, req.Paths)
	if errors.Is(err, usage.ErrLimitReached) {
		respond.Error(c, http.StatusTooManyRequests, "limit_reached", "Daily question limit reached. Please try again tomorrow.", decision)
		return
	}
	if err != nil {
		h.fail(c, err, "Ask failed")
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"results": results, "usage": decision})
}

func (h *Handler) answers(c *gin.Context) {
	sess, _ := middleware.SessionFromContext(c)
	p := strings.TrimSpace(c.Query("path"))
	if p == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "path is required", nil)
		return
	}
	c.Set(middleware.DocPathKey, p)
	answers, err := h.Svc.Answers(c.Request.Context(), sess, p)
	if err != nil {
		h.fail(c, err, "failed to load answers")
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"path": p, "answers": answers})
}

func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	var (
		llmErr        *llm.UpstreamError
		transcribeErr *transcribe.UpstreamError
	)
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid document path", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, object.ErrExists):
		respond.Error(c, http.StatusConflict, "conflict", "a document with this path already exists", nil)
	case errors.Is(err, ErrNoText):
		respond.Error(c, http.StatusBadRequest, "no_text", "No selected docs with extracted text.", nil)
	case errors.Is(err, ErrNoParsedText):
		respond.Error(c, http.StatusBadRequest, "no_text", "No parsed text. Extract first.", nil)
	case errors.Is(err, ErrEmptyQuestion):
		respond.Error(c, http.StatusBadRequest, "validation_error", "Type a question first.", nil)
	case errors.Is(err, extract.ErrNotExtractable):
		respond.Error(c, http.StatusUnprocessableEntity, "not_extractable", "this file type has no text to extract", nil)
	case errors.As(err, &llmErr):
		respond.Error(c, http.StatusBadGateway, "upstream_error", "OpenAI error", llmErr.Detail)
	case errors.As(err, &transcribeErr):
		respond.Error(c, http.StatusBadGateway, "upstream_error", "OpenAI error", transcribeErr.Detail)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
