// Package share publishes summaries as standalone HTML pages.
package share

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"askmydocs-backend/internal/shared/metrics"
	"askmydocs-backend/internal/shared/storage/object"
	"askmydocs-backend/internal/shared/telemetry"
	"askmydocs-backend/internal/shared/util"
)

var (
	// ErrNotConfigured is returned when no shares bucket is wired.
	ErrNotConfigured = errors.New("share function not configured")
	// ErrMissingFields is returned when name or summary is empty.
	ErrMissingFields = errors.New("missing name or summary")
)

// ContentType of published pages.
const ContentType = "text/html; charset=utf-8"

// Values are inserted verbatim; callers sanitize first.
var page = template.Must(template.New("share").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8" />
<title>{{.Name}} — Summary</title>
<meta name="viewport" content="width=device-width,initial-scale=1" />
<style>
body{font-family:system-ui,-apple-system,Segoe UI,Roboto,Inter,Arial,sans-serif;margin:2rem;line-height:1.6}
h1{font-size:1.4rem;margin:0 0 1rem}
pre{white-space:pre-wrap;background:#f6f8fa;border:1px solid #e5e7eb;padding:1rem;border-radius:12px}
footer{margin-top:2rem;color:#6b7280;font-size:.85rem}
</style>
</head>
<body>
  <h1>{{.Name}} — Summary</h1>
  <pre>{{.Summary}}</pre>
  <footer>Shared via AskMyDocs</footer>
</body>
</html>`))

// Publisher writes share pages into a public bucket.
type Publisher struct {
	store object.Store
	now   func() time.Time
}

// NewPublisher returns a Publisher over store. A nil store yields
// ErrNotConfigured on every call.
func NewPublisher(store object.Store) *Publisher {
	return &Publisher{store: store, now: time.Now}
}

// Configured reports whether a bucket is wired.
func (p *Publisher) Configured() bool {
	return p != nil && p.store != nil
}

// Publish renders the page, stores it under a timestamped key and returns its
// public URL.
func (p *Publisher) Publish(ctx context.Context, name, summary string) (string, error) {
	if !p.Configured() {
		return "", ErrNotConfigured
	}
	if name == "" || summary == "" {
		return "", ErrMissingFields
	}

	safeName := SanitizeName(name)
	html, err := Render(safeName, EscapeSummary(summary))
	if err != nil {
		return "", err
	}
	key := Key(p.now(), safeName)
	if _, err := p.store.Put(ctx, key, ContentType, bytes.NewReader(html), true); err != nil {
		return "", fmt.Errorf("upload share page: %w", err)
	}

	url := p.store.PublicURL(key)
	metrics.IncSharePublished()
	telemetry.Info("share.published", map[string]any{
		"key":   key,
		"bytes": len(html),
	})
	return url, nil
}

// SanitizeName strips <, > and &.
func SanitizeName(name string) string {
	return strings.NewReplacer("<", "", ">", "", "&", "").Replace(name)
}

// EscapeSummary escapes < so the summary cannot open tags inside <pre>.
func EscapeSummary(summary string) string {
	return strings.ReplaceAll(summary, "<", "&lt;")
}

// Render fills the share page template.
func Render(safeName, safeSummary string) ([]byte, error) {
	var buf bytes.Buffer
	if err := page.Execute(&buf, struct{ Name, Summary string }{safeName, safeSummary}); err != nil {
		return nil, fmt.Errorf("render share page: %w", err)
	}
	return buf.Bytes(), nil
}

// Key builds <unix-millis>-<name>.html.
func Key(at time.Time, safeName string) string {
	return strconv.FormatInt(at.UnixMilli(), 10) + "-" + util.SafeName(safeName) + ".html"
}
