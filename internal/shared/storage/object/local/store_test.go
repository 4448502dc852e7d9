package local

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"askmydocs-backend/internal/shared/storage/object"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir(), Options{BaseURL: "http://localhost:8080/", Route: "files", Secret: "s3cret"})
}

func TestPutOpenRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.Put(ctx, "user-1/100-a.txt", "text/plain", strings.NewReader("hello"), false)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 bytes, got %d", n)
	}

	rc, err := s.Open(ctx, "user-1/100-a.txt")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "hello" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestPutWithoutOverwriteRejectsExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Put(ctx, "u/a.txt", "", strings.NewReader("1"), false); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if _, err := s.Put(ctx, "u/a.txt", "", strings.NewReader("2"), false); !errors.Is(err, object.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := s.Put(ctx, "u/a.txt", "", strings.NewReader("3"), true); err != nil {
		t.Fatalf("overwrite put: %v", err)
	}
}

type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestPutFailureLeavesNoPartialObject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	disconnect := errors.New("client disconnected")

	for _, overwrite := range []bool{false, true} {
		body := &failingReader{data: []byte("0123456789"), err: disconnect}
		if _, err := s.Put(ctx, "u1/1-doc.pdf", "application/pdf", body, overwrite); !errors.Is(err, disconnect) {
			t.Fatalf("overwrite=%v: expected copy error, got %v", overwrite, err)
		}
		infos, err := s.List(ctx, "u1/", 0)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(infos) != 0 {
			t.Fatalf("overwrite=%v: expected no objects after failed put, got %+v", overwrite, infos)
		}
		if _, err := s.Stat(ctx, "u1/1-doc.pdf"); !errors.Is(err, object.ErrNotFound) {
			t.Fatalf("overwrite=%v: expected ErrNotFound, got %v", overwrite, err)
		}
	}

	if _, err := s.Put(ctx, "u1/1-doc.pdf", "application/pdf", strings.NewReader("ok"), false); err != nil {
		t.Fatalf("retry put: %v", err)
	}
}

func TestOpenMissingAndTraversal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Open(ctx, "u/missing.txt"); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Open(ctx, "../outside.txt"); err == nil {
		t.Fatalf("expected traversal to fail")
	}
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, k := range []string{"u/1-old.pdf", "u/2-new.pdf"} {
		if _, err := s.Put(ctx, k, "", strings.NewReader(k), false); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(s.baseDir, "u", "1-old.pdf"), old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	infos, err := s.List(ctx, "u/", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(infos))
	}
	if infos[0].Key != "u/2-new.pdf" || infos[1].Key != "u/1-old.pdf" {
		t.Fatalf("unexpected order: %+v", infos)
	}
	if infos[0].ContentType != "application/pdf" {
		t.Fatalf("unexpected content type %q", infos[0].ContentType)
	}

	empty, err := s.List(ctx, "nobody/", 10)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty listing, got %v, %v", empty, err)
	}
}

func TestSignedURLServedOnlyWithValidSignature(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Put(ctx, "u/1-a.txt", "", strings.NewReader("signed body"), false); err != nil {
		t.Fatalf("put: %v", err)
	}

	raw, err := s.SignedURL(ctx, "u/1-a.txt", time.Hour)
	if err != nil {
		t.Fatalf("signed url: %v", err)
	}
	if !strings.HasPrefix(raw, "http://localhost:8080/files/u/1-a.txt?") {
		t.Fatalf("unexpected url %q", raw)
	}

	r := gin.New()
	r.GET("/files/*key", s.SignedHandler())

	parsed, _ := url.Parse(raw)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, parsed.RequestURI(), nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp.Body.String() != "signed body" {
		t.Fatalf("unexpected body %q", resp.Body.String())
	}

	q := parsed.Query()
	q.Set("sig", "tampered")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, parsed.Path+"?"+q.Encode(), nil))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for tampered signature, got %d", resp.Code)
	}

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, parsed.RequestURI(), nil))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for expired link, got %d", resp.Code)
	}
}

func TestPublicHandlerServesHTML(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := New(t.TempDir(), Options{BaseURL: "http://localhost:8080", Route: "/public"})
	if _, err := s.Put(context.Background(), "1-doc.html", "text/html", strings.NewReader("<p>x</p>"), true); err != nil {
		t.Fatalf("put: %v", err)
	}
	if got := s.PublicURL("1-doc.html"); got != "http://localhost:8080/public/1-doc.html" {
		t.Fatalf("unexpected public url %q", got)
	}

	r := gin.New()
	r.GET("/public/*key", s.PublicHandler())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/public/1-doc.html", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.HasPrefix(resp.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("unexpected content type %q", resp.Header().Get("Content-Type"))
	}
}
