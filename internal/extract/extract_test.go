package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askmydocs-backend/internal/doctype"
	"askmydocs-backend/internal/ocr"
	"askmydocs-backend/internal/shared/storage/object"
	"askmydocs-backend/internal/transcribe"
)

type fakeStore struct {
	objects   map[string][]byte
	openErr   error
	signedURL string
	opened    int
}

func (f *fakeStore) Put(ctx context.Context, key, contentType string, r io.Reader, overwrite bool) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	f.objects[key] = data
	return int64(len(data)), nil
}

func (f *fakeStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f.opened++
	if f.openErr != nil {
		return nil, f.openErr
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, object.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStore) Stat(ctx context.Context, key string) (object.Info, error) {
	return object.Info{}, object.ErrNotFound
}

func (f *fakeStore) List(ctx context.Context, prefix string, limit int) ([]object.Info, error) {
	return nil, nil
}

func (f *fakeStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if f.signedURL == "" {
		return "", errors.New("signing disabled")
	}
	return f.signedURL + "/" + key, nil
}

func (f *fakeStore) PublicURL(key string) string { return "" }

type fakeOCR struct {
	text  string
	err   error
	calls int
	got   []byte
}

func (f *fakeOCR) Recognize(ctx context.Context, image []byte, mimeType string) (string, error) {
	f.calls++
	f.got = image
	return f.text, f.err
}

type fakeTranscriber struct {
	text string
	err  error
	got  transcribe.Audio
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio transcribe.Audio) (string, error) {
	f.got = audio
	return f.text, f.err
}

// minimalPDF renders a one-page PDF that shows text in Helvetica.
func minimalPDF(text string) []byte {
	content := fmt.Sprintf("BT /F1 24 Tf 72 700 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestPDFText(t *testing.T) {
	text, err := PDFText(minimalPDF("Hello PDF"))
	require.NoError(t, err)
	assert.Equal(t, "Hello PDF", text)
}

func TestPDFTextRejectsGarbage(t *testing.T) {
	_, err := PDFText([]byte("not a pdf"))
	assert.Error(t, err)
}

func TestExtractPDFDegradesToEmptyOnParseFailure(t *testing.T) {
	store := &fakeStore{objects: map[string][]byte{"u1/1-broken.pdf": []byte("%PDF-1.4 garbage")}}
	ex := New(store, nil, nil)

	text, err := ex.Extract(context.Background(), Document{Path: "u1/1-broken.pdf", Name: "broken.pdf", Type: doctype.PDF})
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestExtractPDF(t *testing.T) {
	store := &fakeStore{objects: map[string][]byte{"u1/1-a.pdf": minimalPDF("Quarterly results")}}
	ex := New(store, nil, nil)

	text, err := ex.Extract(context.Background(), Document{Path: "u1/1-a.pdf", Name: "a.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "Quarterly results", text)
}

func TestExtractImageFallsBackToSignedURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/u1/1-scan.png", r.URL.Path)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	store := &fakeStore{objects: map[string][]byte{}, openErr: errors.New("access denied"), signedURL: srv.URL}
	recognizer := &fakeOCR{text: "  scanned text \n"}
	ex := New(store, recognizer, nil)
	ex.HTTP = srv.Client()

	text, err := ex.Extract(context.Background(), Document{Path: "u1/1-scan.png", Name: "scan.png", Type: doctype.Image})
	require.NoError(t, err)
	assert.Equal(t, "scanned text", text)
	assert.Equal(t, []byte("png-bytes"), recognizer.got)
}

func TestExtractImageWithoutOCRDegrades(t *testing.T) {
	store := &fakeStore{objects: map[string][]byte{"u1/1-scan.png": []byte("png")}}
	ex := New(store, ocr.Disabled{}, nil)

	text, err := ex.Extract(context.Background(), Document{Path: "u1/1-scan.png", Name: "scan.png", Type: doctype.Image})
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestExtractAudioPropagatesUpstreamError(t *testing.T) {
	store := &fakeStore{objects: map[string][]byte{"u1/1-memo.m4a": []byte("aac")}}
	tr := &fakeTranscriber{err: &transcribe.UpstreamError{Status: 500, Detail: "boom"}}
	ex := New(store, nil, tr)

	_, err := ex.Extract(context.Background(), Document{Path: "u1/1-memo.m4a", Name: "memo.m4a", Type: doctype.Audio})
	var upstream *transcribe.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, "boom", upstream.Detail)
	assert.Equal(t, "memo.m4a", tr.got.Name)
	assert.Equal(t, "audio/mp4", tr.got.ContentType)
}

func TestExtractFileIsNotExtractable(t *testing.T) {
	ex := New(&fakeStore{objects: map[string][]byte{}}, nil, nil)
	_, err := ex.Extract(context.Background(), Document{Path: "u1/1-a.zip", Name: "a.zip"})
	assert.ErrorIs(t, err, ErrNotExtractable)
}

func TestEnsureTextSkipsCachedText(t *testing.T) {
	store := &fakeStore{objects: map[string][]byte{}}
	recognizer := &fakeOCR{}
	ex := New(store, recognizer, nil)

	text, ran, err := ex.EnsureText(context.Background(), Document{Path: "u1/1-scan.png", Type: doctype.Image, Text: "cached"})
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, "cached", text)
	assert.Zero(t, store.opened)
	assert.Zero(t, recognizer.calls)

	_, ran, _ = ex.EnsureText(context.Background(), Document{Path: "u1/1-scan.png", Type: doctype.Image, Text: strings.Repeat(" ", 3)})
	assert.True(t, ran)
}
