package bootstrap

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"askmydocs-backend/internal/llm"
	"askmydocs-backend/internal/shared/auth"
	"askmydocs-backend/internal/shared/config"
)

const testOrigin = "http://localhost:5173"

func devConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Port:               "8080",
		Env:                "dev",
		AllowedOrigin:      testOrigin,
		CORSAllowOrigin:    []string{testOrigin},
		PublicAPIKey:       "anon",
		AuthMode:           "jwt",
		AuthJWTSecret:      "secret",
		UsageStore:         "auto",
		SummaryDailyLimit:  50,
		QuestionDailyLimit: 100,
		ObjectStoreType:    "local",
		LocalStoreDir:      t.TempDir(),
		PublicBaseURL:      "http://localhost:8080",
		DocsBucket:         "docs",
		SharesBucket:       "shares",
		SigningSecret:      "sign",
		SignedURLTTL:       time.Hour,
		LLMProvider:        "openai",
		TranscribeProvider: "openai",
		OCRProvider:        "none",
	}
}

func buildApp(t *testing.T, cfg config.Config) *App {
	t.Helper()
	app, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func authedRequest(t *testing.T, method, target string, body io.Reader) *http.Request {
	t.Helper()
	token, err := auth.SignJWT("secret", "user-1", "u@example.com", time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", "anon")
	return req
}

func TestBuildDevFallsBackToMemory(t *testing.T) {
	app := buildApp(t, devConfig(t))
	if app.DB != nil || app.Redis != nil {
		t.Fatalf("expected no database or redis in dev without urls")
	}
	if _, ok := app.LLM.(llm.Disabled); !ok {
		t.Fatalf("expected disabled llm without api key, got %T", app.LLM)
	}
	if app.Router == nil {
		t.Fatalf("expected router")
	}
}

func TestBuildProductionRequiresDatabase(t *testing.T) {
	cfg := devConfig(t)
	cfg.Env = "production"
	if _, err := Build(cfg); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected DATABASE_URL error, got %v", err)
	}
}

func TestBuildProductionRequiresSigningSecret(t *testing.T) {
	cfg := devConfig(t)
	cfg.Env = "production"
	cfg.SigningSecret = ""
	if _, err := Build(cfg); err == nil || !strings.Contains(err.Error(), "SIGNING_SECRET") {
		t.Fatalf("expected SIGNING_SECRET error, got %v", err)
	}
}

func TestBuildDevSigningSecretFallback(t *testing.T) {
	cfg := devConfig(t)
	cfg.SigningSecret = ""
	app := buildApp(t, cfg)
	if app.Config.SigningSecret == "" {
		t.Fatalf("expected dev signing secret fallback")
	}
}

func TestBuildRemoteAuthRequiresURL(t *testing.T) {
	cfg := devConfig(t)
	cfg.AuthMode = "remote"
	if _, err := Build(cfg); err == nil {
		t.Fatalf("expected AUTH_URL error")
	}
}

func TestRouterHealthAndMe(t *testing.T) {
	app := buildApp(t, devConfig(t))

	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, authedRequest(t, http.MethodGet, "/api/v1/me", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", resp.Code)
	}
	var me map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if me["userId"] != "user-1" || me["email"] != "u@example.com" {
		t.Fatalf("unexpected me %v", me)
	}

	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("me without token: expected 401, got %d", resp.Code)
	}
}

func TestRouterUploadListAndDownload(t *testing.T) {
	app := buildApp(t, devConfig(t))

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, _ := w.CreateFormFile("file", "notes.txt")
	_, _ = part.Write([]byte("hello"))
	_ = w.Close()

	req := authedRequest(t, http.MethodPost, "/api/v1/documents", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("upload: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, authedRequest(t, http.MethodGet, "/api/v1/documents", nil))
	var list struct {
		Documents []struct {
			Path string `json:"path"`
			URL  string `json:"url"`
		} `json:"documents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Documents) != 1 || !strings.HasPrefix(list.Documents[0].Path, "user-1/") {
		t.Fatalf("unexpected list %+v", list.Documents)
	}

	download := strings.TrimPrefix(list.Documents[0].URL, "http://localhost:8080")
	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, download, nil))
	if resp.Code != http.StatusOK || resp.Body.String() != "hello" {
		t.Fatalf("download: got %d %q", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/files/"+list.Documents[0].Path, nil))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("unsigned download: expected 403, got %d", resp.Code)
	}
}

func TestRouterShareIsPublic(t *testing.T) {
	app := buildApp(t, devConfig(t))

	req := httptest.NewRequest(http.MethodPost, "/share", strings.NewReader(`{"name":"Q3","summary":"- up"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", testOrigin)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("share: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}

	page := strings.TrimPrefix(out["url"], "http://localhost:8080")
	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, page, nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "- up") {
		t.Fatalf("share page: got %d", resp.Code)
	}
}

func TestRouterFunctionsRequireKey(t *testing.T) {
	app := buildApp(t, devConfig(t))

	req := authedRequest(t, http.MethodPost, "/summarize", strings.NewReader(`{"text":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusInternalServerError || !strings.Contains(resp.Body.String(), "Server missing OPENAI_API_KEY") {
		t.Fatalf("expected missing key error, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestRouterAPIPreflight(t *testing.T) {
	app := buildApp(t, devConfig(t))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/documents", nil)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != testOrigin {
		t.Fatalf("unexpected Allow-Origin %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app := buildApp(t, devConfig(t))
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "llm_calls_total") {
		t.Fatalf("unexpected metrics response %d", resp.Code)
	}
}
