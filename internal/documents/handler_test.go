package documents

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"askmydocs-backend/internal/usage"
)

func newTestRouter(t *testing.T, limits usage.Limits) (*gin.Engine, *fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := newFixture(t, limits)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", alice.UserID)
		c.Set("session", alice)
		c.Next()
	})
	NewHandler(f.svc).RegisterRoutes(r.Group("/api/v1"))
	return r, f
}

func doJSON(r *gin.Engine, method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func uploadFile(t *testing.T, r *gin.Engine, name, content string) Document {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = part.Write([]byte(content))
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("upload: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return doc
}

func TestHandlerUploadAndList(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	doc := uploadFile(t, r, "memo.png", "hi")

	resp := doJSON(r, http.MethodGet, "/api/v1/documents", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var out listResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Documents) != 1 || out.Documents[0].Path != doc.Path || out.Documents[0].Summary != SummaryPlaceholder {
		t.Fatalf("unexpected list %+v", out.Documents)
	}
}

func TestHandlerUploadRequiresFile(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	resp := doJSON(r, http.MethodPost, "/api/v1/documents", nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestHandlerSummarizeLimit(t *testing.T) {
	r, f := newTestRouter(t, usage.Limits{usage.KindSummary: 1})
	a := uploadFile(t, r, "a.png", "one")
	b := uploadFile(t, r, "b.png", "two")

	resp := doJSON(r, http.MethodPost, "/api/v1/documents/summarize", summarizeRequest{Paths: []string{a.Path, b.Path}})
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details usage.Decision `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Error.Code != "limit_reached" || payload.Error.Details.Limit != 1 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.Error.Message != "Daily summary limit reached. Please try again tomorrow." {
		t.Fatalf("unexpected message %q", payload.Error.Message)
	}
	if len(f.gen.calls) != 0 {
		t.Fatalf("expected no model calls, got %d", len(f.gen.calls))
	}
}

func TestHandlerSummarizeNoText(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	zip := uploadFile(t, r, "a.zip", "PK")

	resp := doJSON(r, http.MethodPost, "/api/v1/documents/summarize", summarizeRequest{Paths: []string{zip.Path}})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte("No selected docs with extracted text.")) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestHandlerAskAndAnswers(t *testing.T) {
	r, f := newTestRouter(t, nil)
	a := uploadFile(t, r, "a.png", "one")
	f.gen.replies = []string{"42"}

	resp := doJSON(r, http.MethodPost, "/api/v1/documents/ask", askRequest{Question: "meaning?", Paths: []string{a.Path}})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(r, http.MethodGet, "/api/v1/documents/answers?path="+a.Path, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte(`"a":"42"`)) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestHandlerAskEmptyQuestion(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	resp := doJSON(r, http.MethodPost, "/api/v1/documents/ask", askRequest{Question: " "})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte("Type a question first.")) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestHandlerExtractForeignPath(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	resp := doJSON(r, http.MethodPost, "/api/v1/documents/extract", extractRequest{Path: "bob/1-a.png"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

