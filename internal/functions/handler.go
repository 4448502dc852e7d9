// Package functions serves the remote function endpoints the web client calls
// directly: summarize, ask, transcribe and share.
package functions

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"askmydocs-backend/internal/llm"
	"askmydocs-backend/internal/share"
	"askmydocs-backend/internal/shared/server/middleware"
	"askmydocs-backend/internal/shared/server/respond"
	"askmydocs-backend/internal/shared/telemetry"
	"askmydocs-backend/internal/shared/util"
	"askmydocs-backend/internal/transcribe"
	"askmydocs-backend/internal/usage"
)

const (
	noSummaryGenerated = "No summary generated."
	noAnswerGenerated  = "No answer generated."

	msgMethodNotAllowed = "Method not allowed"
	msgMissingKey       = "Server missing OPENAI_API_KEY"
	msgUpstream         = "OpenAI error"
	msgLimitReached     = "Daily limit reached"
)

// Handler serves the function endpoints.
type Handler struct {
	LLM         llm.Generator
	Transcriber transcribe.Transcriber
	Usage       *usage.Service
	Publisher   *share.Publisher
	HTTP        *http.Client
}

// NewHandler wires a Handler. Nil providers are treated as not configured.
func NewHandler(gen llm.Generator, tr transcribe.Transcriber, gate *usage.Service, pub *share.Publisher) *Handler {
	if gen == nil {
		gen = llm.Disabled{}
	}
	if tr == nil {
		tr = transcribe.Disabled{}
	}
	if pub == nil {
		pub = share.NewPublisher(nil)
	}
	return &Handler{
		LLM:         gen,
		Transcriber: tr,
		Usage:       gate,
		Publisher:   pub,
		HTTP:        &http.Client{Timeout: 2 * time.Minute},
	}
}

// RegisterRoutes attaches the functions to rg. requireAuth guards every
// function except share.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	guarded := []gin.HandlerFunc{}
	if requireAuth != nil {
		guarded = append(guarded, requireAuth)
	}
	rg.Any("/summarize", append(guarded, postOnly, h.summarize)...)
	rg.Any("/ask", append(guarded, postOnly, h.ask)...)
	rg.Any("/transcribe", append(guarded, postOnly, h.transcribe)...)
	rg.Any("/share", postOnly, h.share)
}

func postOnly(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodPost:
		c.Next()
	case http.MethodOptions:
		c.AbortWithStatus(http.StatusOK)
	default:
		respond.Function(c, http.StatusMethodNotAllowed, respond.FunctionError{Error: msgMethodNotAllowed})
	}
}

type summarizeRequest struct {
	Text string `json:"text"`
	Name string `json:"name"`
}

type askRequest struct {
	Question string    `json:"question"`
	Docs     []llm.Doc `json:"docs"`
}

type transcribeRequest struct {
	URL string `json:"url"`
}

type shareRequest struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

func (h *Handler) summarize(c *gin.Context) {
	var req summarizeRequest
	_ = c.ShouldBindJSON(&req)
	if req.Text == "" {
		respond.Function(c, http.StatusBadRequest, respond.FunctionError{Error: "Missing 'text'"})
		return
	}
	if !h.llmConfigured() {
		respond.Function(c, http.StatusInternalServerError, respond.FunctionError{Error: msgMissingKey})
		return
	}
	if !h.reserve(c, usage.KindSummary) {
		return
	}

	out, err := h.LLM.Generate(c.Request.Context(), llm.SummarizeRequest(req.Name, req.Text))
	if err != nil {
		h.llmFailure(c, err)
		return
	}
	if out = strings.TrimSpace(out); out == "" {
		out = noSummaryGenerated
	}
	respond.JSON(c, http.StatusOK, gin.H{"summary": out})
}

func (h *Handler) ask(c *gin.Context) {
	var req askRequest
	_ = c.ShouldBindJSON(&req)
	if req.Question == "" || len(req.Docs) == 0 {
		respond.Function(c, http.StatusBadRequest, respond.FunctionError{Error: "Missing 'question' or 'docs'"})
		return
	}
	if !h.llmConfigured() {
		respond.Function(c, http.StatusInternalServerError, respond.FunctionError{Error: msgMissingKey})
		return
	}
	if !h.reserve(c, usage.KindQuestion) {
		return
	}

	out, err := h.LLM.Generate(c.Request.Context(), llm.AskRequest(req.Question, req.Docs))
	if err != nil {
		h.llmFailure(c, err)
		return
	}
	if out = strings.TrimSpace(out); out == "" {
		out = noAnswerGenerated
	}
	respond.JSON(c, http.StatusOK, gin.H{"answer": out})
}

func (h *Handler) transcribe(c *gin.Context) {
	var req transcribeRequest
	_ = c.ShouldBindJSON(&req)
	if strings.TrimSpace(req.URL) == "" {
		respond.Function(c, http.StatusBadRequest, respond.FunctionError{Error: "Missing 'url'"})
		return
	}
	if _, disabled := h.Transcriber.(transcribe.Disabled); disabled {
		respond.Function(c, http.StatusInternalServerError, respond.FunctionError{Error: msgMissingKey})
		return
	}

	ctx := c.Request.Context()
	audio, err := transcribe.Download(ctx, h.HTTP, req.URL)
	if err != nil {
		telemetry.Warn("functions.transcribe.download_failed", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"err":        err.Error(),
		})
		respond.Function(c, http.StatusBadRequest, respond.FunctionError{Error: "Could not download audio"})
		return
	}

	text, err := h.Transcriber.Transcribe(ctx, audio)
	if err != nil {
		var upstream *transcribe.UpstreamError
		switch {
		case errors.As(err, &upstream):
			respond.Function(c, http.StatusBadGateway, respond.FunctionError{Error: msgUpstream, Detail: upstream.Detail})
		case errors.Is(err, transcribe.ErrNotConfigured):
			respond.Function(c, http.StatusInternalServerError, respond.FunctionError{Error: msgMissingKey})
		default:
			respond.Function(c, http.StatusBadGateway, respond.FunctionError{Error: msgUpstream, Detail: err.Error()})
		}
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"text": text})
}

func (h *Handler) share(c *gin.Context) {
	var req shareRequest
	_ = c.ShouldBindJSON(&req)

	url, err := h.Publisher.Publish(c.Request.Context(), req.Name, req.Summary)
	switch {
	case errors.Is(err, share.ErrNotConfigured):
		respond.Function(c, http.StatusInternalServerError, respond.FunctionError{Error: "Share function not configured"})
	case errors.Is(err, share.ErrMissingFields):
		respond.Function(c, http.StatusBadRequest, respond.FunctionError{Error: "Missing name or summary"})
	case err != nil:
		respond.Function(c, http.StatusInternalServerError, respond.FunctionError{Error: "Share failed", Detail: err.Error()})
	default:
		respond.JSON(c, http.StatusOK, gin.H{"url": url})
	}
}

func (h *Handler) llmConfigured() bool {
	_, disabled := h.LLM.(llm.Disabled)
	return !disabled
}

// reserve takes one unit of kind for the caller and writes the 429 itself
// when the daily limit is spent.
func (h *Handler) reserve(c *gin.Context, kind usage.Kind) bool {
	if h.Usage == nil {
		return true
	}
	userID := middleware.UserIDFromContext(c)
	decision, err := h.Usage.Reserve(c.Request.Context(), userID, kind, 1)
	switch {
	case err == nil:
		return true
	case errors.Is(err, usage.ErrLimitReached):
		respond.Function(c, http.StatusTooManyRequests, respond.FunctionError{
			Error: msgLimitReached,
			Kind:  string(kind),
			Limit: decision.Limit,
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Function(c, http.StatusRequestTimeout, respond.FunctionError{Error: "Request canceled"})
	default:
		telemetry.Error("functions.usage_failed", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"user_id":    userID,
			"kind":       string(kind),
			"err":        err.Error(),
		})
		respond.Function(c, http.StatusInternalServerError, respond.FunctionError{Error: "Usage check failed"})
	}
	return false
}

func (h *Handler) llmFailure(c *gin.Context, err error) {
	var upstream *llm.UpstreamError
	switch {
	case errors.As(err, &upstream):
		respond.Function(c, http.StatusBadGateway, respond.FunctionError{Error: msgUpstream, Detail: upstream.Detail})
	case errors.Is(err, llm.ErrNotConfigured):
		respond.Function(c, http.StatusInternalServerError, respond.FunctionError{Error: msgMissingKey})
	default:
		respond.Function(c, http.StatusBadGateway, respond.FunctionError{Error: msgUpstream, Detail: util.Truncate(err.Error(), 2000)})
	}
}
