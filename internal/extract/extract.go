// Package extract pulls plain text out of stored documents.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"askmydocs-backend/internal/doctype"
	"askmydocs-backend/internal/ocr"
	"askmydocs-backend/internal/shared/metrics"
	"askmydocs-backend/internal/shared/storage/object"
	"askmydocs-backend/internal/shared/telemetry"
	"askmydocs-backend/internal/transcribe"
)

// ErrNotExtractable is returned for documents of type file.
var ErrNotExtractable = errors.New("document type is not extractable")

// Document identifies a stored object and any text already extracted from it.
type Document struct {
	Path string
	Name string
	Type doctype.Type
	Text string
}

// Extractor dispatches on document type.
type Extractor struct {
	Store       object.Store
	OCR         ocr.OCR
	Transcriber transcribe.Transcriber
	HTTP        *http.Client
	// URLTTL is the lifetime of signed URLs used when a direct read fails.
	URLTTL time.Duration
}

// New builds an Extractor. Nil providers are replaced by disabled ones.
func New(store object.Store, recognizer ocr.OCR, transcriber transcribe.Transcriber) *Extractor {
	if recognizer == nil {
		recognizer = ocr.Disabled{}
	}
	if transcriber == nil {
		transcriber = transcribe.Disabled{}
	}
	return &Extractor{
		Store:       store,
		OCR:         recognizer,
		Transcriber: transcriber,
		HTTP:        &http.Client{Timeout: 2 * time.Minute},
		URLTTL:      time.Hour,
	}
}

// EnsureText returns doc.Text when it is already non-empty and otherwise
// extracts it. The boolean reports whether an extraction path ran.
func (e *Extractor) EnsureText(ctx context.Context, doc Document) (string, bool, error) {
	if strings.TrimSpace(doc.Text) != "" {
		return doc.Text, false, nil
	}
	text, err := e.Extract(ctx, doc)
	return text, true, err
}

// Extract runs the extraction path for doc.Type.
func (e *Extractor) Extract(ctx context.Context, doc Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	typ := doc.Type
	if typ == "" {
		typ = doctype.Classify(doc.Name)
	}

	var (
		text string
		err  error
	)
	switch typ {
	case doctype.PDF:
		text, err = e.extractPDF(ctx, doc)
	case doctype.Image:
		text, err = e.extractImage(ctx, doc)
	case doctype.Audio:
		text, err = e.extractAudio(ctx, doc)
	default:
		return "", ErrNotExtractable
	}
	if err != nil {
		metrics.IncExtractionFailure()
		telemetry.Warn("extract.failed", map[string]any{
			"doc_path": doc.Path,
			"type":     string(typ),
			"err":      err.Error(),
		})
		return "", err
	}
	metrics.IncExtraction()
	return text, nil
}

func (e *Extractor) extractPDF(ctx context.Context, doc Document) (string, error) {
	data, _, err := e.load(ctx, doc.Path)
	if err != nil {
		return "", err
	}
	text, err := PDFText(data)
	if err != nil {
		metrics.IncExtractionFailure()
		telemetry.Warn("extract.pdf_unreadable", map[string]any{
			"doc_path": doc.Path,
			"err":      err.Error(),
		})
		return "", nil
	}
	return text, nil
}

func (e *Extractor) extractImage(ctx context.Context, doc Document) (string, error) {
	data, contentType, err := e.load(ctx, doc.Path)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = doctype.ContentType(doc.Name)
	}
	text, err := e.OCR.Recognize(ctx, data, contentType)
	if errors.Is(err, ocr.ErrOCRUnavailable) {
		telemetry.Warn("extract.ocr_unavailable", map[string]any{"doc_path": doc.Path})
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (e *Extractor) extractAudio(ctx context.Context, doc Document) (string, error) {
	data, contentType, err := e.load(ctx, doc.Path)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = doctype.ContentType(doc.Name)
	}
	text, err := e.Transcriber.Transcribe(ctx, transcribe.Audio{
		Name:        doc.Name,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// load reads the object directly and falls back to its signed URL.
func (e *Extractor) load(ctx context.Context, key string) ([]byte, string, error) {
	rc, err := e.Store.Open(ctx, key)
	if err == nil {
		defer rc.Close()
		data, readErr := io.ReadAll(rc)
		if readErr == nil {
			return data, "", nil
		}
		err = readErr
	}
	directErr := err

	url, err := e.Store.SignedURL(ctx, key, e.URLTTL)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", key, errors.Join(directErr, err))
	}
	audio, err := transcribe.Download(ctx, e.HTTP, url)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", key, errors.Join(directErr, err))
	}
	return audio.Data, audio.ContentType, nil
}

// PDFText joins the text rows of every page with single spaces, one page per
// line. Parser panics are reported as errors.
func PDFText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("pdf page %d: %w", i, err)
		}
		runs := make([]string, 0, len(rows))
		for _, row := range rows {
			var run strings.Builder
			for _, glyph := range row.Content {
				run.WriteString(glyph.S)
			}
			runs = append(runs, run.String())
		}
		b.WriteString(strings.Join(runs, " "))
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String()), nil
}
