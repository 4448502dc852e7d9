package documents

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askmydocs-backend/internal/extract"
	"askmydocs-backend/internal/llm"
	"askmydocs-backend/internal/shared/auth"
	"askmydocs-backend/internal/shared/storage/object/local"
	"askmydocs-backend/internal/usage"
)

type scriptedLLM struct {
	mu      sync.Mutex
	calls   []llm.Request
	replies []string
	errs    []error
}

func (s *scriptedLLM) Generate(ctx context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.calls)
	s.calls = append(s.calls, req)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	reply := ""
	if i < len(s.replies) {
		reply = s.replies[i]
	}
	return reply, err
}

type textOCR struct {
	calls int
}

func (o *textOCR) Recognize(ctx context.Context, image []byte, mimeType string) (string, error) {
	o.calls++
	return "scanned: " + string(image), nil
}

type fixture struct {
	svc *Service
	gen *scriptedLLM
	ocr *textOCR
}

func newFixture(t *testing.T, limits usage.Limits) *fixture {
	t.Helper()
	store := local.New(t.TempDir(), local.Options{BaseURL: "http://localhost:8080", Secret: "s3cret"})
	rec := &textOCR{}
	gen := &scriptedLLM{}
	svc := NewService(store, NewMemoryRepo(), extract.New(store, rec, nil), usage.NewService(usage.NewMemoryStore(), limits), gen, time.Hour)

	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return &fixture{svc: svc, gen: gen, ocr: rec}
}

var alice = auth.Session{UserID: "alice"}

func (f *fixture) upload(t *testing.T, name, body string) Document {
	t.Helper()
	doc, err := f.svc.Upload(context.Background(), alice, name, 0, strings.NewReader(body))
	require.NoError(t, err)
	return doc
}

func TestUploadThenList(t *testing.T) {
	f := newFixture(t, nil)
	doc := f.upload(t, "Scan 1.png", "receipt")

	assert.True(t, strings.HasPrefix(doc.Path, "alice/"))
	assert.True(t, strings.HasSuffix(doc.Path, "-Scan_1.png"))
	assert.Equal(t, "Scan 1.png", doc.Name)
	assert.Equal(t, "scanned: receipt", doc.Text)
	assert.Equal(t, SummaryPlaceholder, doc.Summary)
	assert.Equal(t, int64(7), doc.Size)

	docs, err := f.svc.List(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.Path, docs[0].Path)
	assert.Equal(t, "Scan 1.png", docs[0].Name)
	assert.Equal(t, int64(7), docs[0].Size)
	assert.Equal(t, "7.0 B", docs[0].SizeLabel)
	assert.Equal(t, SummaryPlaceholder, docs[0].Summary)
	assert.Contains(t, docs[0].URL, "http://localhost:8080/files/")
}

func TestListIsScopedToUser(t *testing.T) {
	f := newFixture(t, nil)
	f.upload(t, "a.png", "x")

	docs, err := f.svc.List(context.Background(), auth.Session{UserID: "bob"})
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = f.svc.List(context.Background(), auth.Session{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUploadUnknownTypeHasNoText(t *testing.T) {
	f := newFixture(t, nil)
	doc := f.upload(t, "notes.zip", "PK")
	assert.Empty(t, doc.Text)
	assert.Equal(t, 0, f.ocr.calls)
}

func TestSummarizeStoresSummaries(t *testing.T) {
	f := newFixture(t, nil)
	a := f.upload(t, "a.png", "one")
	b := f.upload(t, "b.png", "two")
	f.gen.replies = []string{"First summary", "  "}

	results, decision, err := f.svc.Summarize(context.Background(), alice, []string{a.Path, b.Path, a.Path})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "First summary", results[0].Summary)
	assert.Equal(t, "No summary.", results[1].Summary)
	assert.Equal(t, 2, decision.Count)
	assert.Contains(t, f.gen.calls[0].Prompt, `titled "a.png"`)

	docs, err := f.svc.List(context.Background(), alice)
	require.NoError(t, err)
	byPath := map[string]string{}
	for _, d := range docs {
		byPath[d.Path] = d.Summary
	}
	assert.Equal(t, "First summary", byPath[a.Path])
}

func TestSummarizeFailureIsRecordedPerDocument(t *testing.T) {
	f := newFixture(t, nil)
	a := f.upload(t, "a.png", "one")
	f.gen.errs = []error{&llm.UpstreamError{Status: 500, Detail: "boom"}}

	results, _, err := f.svc.Summarize(context.Background(), alice, []string{a.Path})
	require.NoError(t, err)
	assert.Equal(t, "Summary unavailable.", results[0].Summary)
}

func TestSummarizeLimitRunsNothing(t *testing.T) {
	f := newFixture(t, usage.Limits{usage.KindSummary: 1})
	a := f.upload(t, "a.png", "one")
	b := f.upload(t, "b.png", "two")

	_, decision, err := f.svc.Summarize(context.Background(), alice, []string{a.Path, b.Path})
	require.ErrorIs(t, err, usage.ErrLimitReached)
	assert.False(t, decision.Allowed)
	assert.Equal(t, 1, decision.Limit)
	assert.Empty(t, f.gen.calls)
}

func TestSummarizeWithoutTextOrForeignPaths(t *testing.T) {
	f := newFixture(t, nil)
	zip := f.upload(t, "a.zip", "PK")

	_, _, err := f.svc.Summarize(context.Background(), alice, []string{zip.Path, "bob/1-x.png", "alice/../bob/1-x.png"})
	assert.ErrorIs(t, err, ErrNoText)
}

func TestAskRecordsAnswersNewestFirst(t *testing.T) {
	f := newFixture(t, nil)
	a := f.upload(t, "a.png", "one")
	f.gen.replies = []string{"It says one.", ""}

	results, decision, err := f.svc.Ask(context.Background(), alice, "  what?  ", []string{a.Path})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "It says one.", results[0].Answer.Answer)
	assert.Equal(t, "what?", results[0].Answer.Question)
	assert.Equal(t, 1, decision.Count)
	assert.Contains(t, f.gen.calls[0].Prompt, "scanned: one")

	_, _, err = f.svc.Ask(context.Background(), alice, "again?", []string{a.Path})
	require.NoError(t, err)

	answers, err := f.svc.Answers(context.Background(), alice, a.Path)
	require.NoError(t, err)
	require.Len(t, answers, 2)
	assert.Equal(t, "again?", answers[0].Question)
	assert.Equal(t, "No answer.", answers[0].Answer)
	assert.Equal(t, "what?", answers[1].Question)
}

func TestAskFailureBecomesAnswerText(t *testing.T) {
	f := newFixture(t, nil)
	a := f.upload(t, "a.png", "one")
	b := f.upload(t, "b.png", "two")
	f.gen.errs = []error{&llm.UpstreamError{Status: 429, Detail: "slow down"}, errors.New("network down")}

	results, _, err := f.svc.Ask(context.Background(), alice, "q", []string{a.Path, b.Path})
	require.NoError(t, err)
	assert.Equal(t, "Ask failed: OpenAI error", results[0].Answer.Answer)
	assert.Equal(t, "Ask failed: network down", results[1].Answer.Answer)
}

func TestAskValidation(t *testing.T) {
	f := newFixture(t, nil)
	zip := f.upload(t, "a.zip", "PK")

	_, _, err := f.svc.Ask(context.Background(), alice, "   ", []string{zip.Path})
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	_, _, err = f.svc.Ask(context.Background(), alice, "q", []string{zip.Path})
	assert.ErrorIs(t, err, ErrNoParsedText)
}

func TestAskLimit(t *testing.T) {
	f := newFixture(t, usage.Limits{usage.KindQuestion: 1})
	a := f.upload(t, "a.png", "one")
	f.gen.replies = []string{"ok"}

	_, _, err := f.svc.Ask(context.Background(), alice, "q", []string{a.Path})
	require.NoError(t, err)
	_, decision, err := f.svc.Ask(context.Background(), alice, "q", []string{a.Path})
	require.ErrorIs(t, err, usage.ErrLimitReached)
	assert.Equal(t, usage.KindQuestion, decision.Kind)
	assert.Len(t, f.gen.calls, 1)
}

func TestExtractUsesCachedText(t *testing.T) {
	f := newFixture(t, nil)
	a := f.upload(t, "a.png", "one")
	require.Equal(t, 1, f.ocr.calls)

	doc, err := f.svc.Extract(context.Background(), alice, a.Path)
	require.NoError(t, err)
	assert.Equal(t, "scanned: one", doc.Text)
	assert.Equal(t, 1, f.ocr.calls)
}

func TestExtractErrors(t *testing.T) {
	f := newFixture(t, nil)
	zip := f.upload(t, "a.zip", "PK")

	_, err := f.svc.Extract(context.Background(), alice, zip.Path)
	assert.ErrorIs(t, err, extract.ErrNotExtractable)

	_, err = f.svc.Extract(context.Background(), alice, "alice/404-missing.png")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Extract(context.Background(), alice, "bob/1-a.png")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRegisterUsesStoredSize(t *testing.T) {
	f := newFixture(t, nil)
	p := PathFor("alice", time.UnixMilli(1700000000000), "memo.png")
	_, err := f.svc.Store.Put(context.Background(), p, "image/png", strings.NewReader("hello"), false)
	require.NoError(t, err)

	doc, err := f.svc.Register(context.Background(), alice, p, "memo.png", 999)
	require.NoError(t, err)
	assert.Equal(t, int64(5), doc.Size)
	assert.Equal(t, "scanned: hello", doc.Text)

	_, err = f.svc.Register(context.Background(), alice, "alice/1-nope.png", "", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPresignUnsupportedOnLocalStore(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Presign(context.Background(), alice, "a.pdf", "")
	assert.ErrorIs(t, err, ErrPresignUnsupported)
}

func TestPathFor(t *testing.T) {
	got := PathFor("u1", time.UnixMilli(1700000000000), "Q3 report (final).pdf")
	assert.Equal(t, "u1/1700000000000-Q3_report_final_.pdf", got)
}

func TestUsageCounts(t *testing.T) {
	f := newFixture(t, nil)
	a := f.upload(t, "a.png", "one")
	f.gen.replies = []string{"s"}
	_, _, err := f.svc.Summarize(context.Background(), alice, []string{a.Path})
	require.NoError(t, err)

	snap, err := f.svc.UsageCounts(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Summaries)
	assert.Equal(t, 0, snap.Questions)
}
