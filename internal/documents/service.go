package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"askmydocs-backend/internal/doctype"
	"askmydocs-backend/internal/extract"
	"askmydocs-backend/internal/llm"
	"askmydocs-backend/internal/shared/auth"
	"askmydocs-backend/internal/shared/storage/object"
	"askmydocs-backend/internal/shared/telemetry"
	"askmydocs-backend/internal/shared/util"
	"askmydocs-backend/internal/usage"
)

const (
	listLimit      = 1000
	signFanOut     = 8
	defaultURLTTL  = time.Hour
	presignExpires = 15 * time.Minute

	summaryUnavailable = "Summary unavailable."
	noSummary          = "No summary."
	noAnswer           = "No answer."
)

// Service holds a user's library state.
type Service struct {
	Store     object.Store
	Repo      Repo
	Extractor *extract.Extractor
	Usage     *usage.Service
	LLM       llm.Generator
	URLTTL    time.Duration

	now func() time.Time
}

// NewService wires a Service. A zero ttl uses one hour.
func NewService(store object.Store, repo Repo, extractor *extract.Extractor, gate *usage.Service, gen llm.Generator, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = defaultURLTTL
	}
	if gen == nil {
		gen = llm.Disabled{}
	}
	return &Service{
		Store:     store,
		Repo:      repo,
		Extractor: extractor,
		Usage:     gate,
		LLM:       gen,
		URLTTL:    ttl,
		now:       time.Now,
	}
}

// PathFor builds <userID>/<unix-millis>-<safe name>.
func PathFor(userID string, at time.Time, filename string) string {
	return userID + "/" + strconv.FormatInt(at.UnixMilli(), 10) + "-" + util.SafeName(filename)
}

func owns(sess auth.Session, p string) bool {
	return sess.UserID != "" && strings.HasPrefix(p, sess.UserID+"/") && !strings.Contains(p, "..")
}

// List returns the user's documents, newest first, merged with persisted state.
func (s *Service) List(ctx context.Context, sess auth.Session) ([]Document, error) {
	if !sess.Valid() {
		return nil, ErrInvalidInput
	}
	infos, err := s.Store.List(ctx, sess.UserID+"/", listLimit)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	metas, err := s.Repo.ListMeta(ctx, sess.UserID)
	if err != nil {
		telemetry.Warn("documents.meta_unavailable", map[string]any{"user_id": sess.UserID, "err": err.Error()})
		metas = nil
	}
	byPath := make(map[string]Meta, len(metas))
	for _, m := range metas {
		byPath[m.Path] = m
	}

	docs := make([]Document, len(infos))
	for i, info := range infos {
		m, ok := byPath[info.Key]
		docs[i] = s.toDocument(info, m, ok)
	}

	// Signed URLs are resolved concurrently; a failure leaves url empty.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(signFanOut)
	for i := range docs {
		i := i
		g.Go(func() error {
			url, err := s.Store.SignedURL(gctx, docs[i].Path, s.URLTTL)
			if err != nil {
				telemetry.Warn("documents.sign_failed", map[string]any{"doc_path": docs[i].Path, "err": err.Error()})
				return nil
			}
			docs[i].URL = url
			return nil
		})
	}
	_ = g.Wait()
	return docs, nil
}

func (s *Service) toDocument(info object.Info, m Meta, hasMeta bool) Document {
	name := path.Base(info.Key)
	summary := SummaryPlaceholder
	text := ""
	if hasMeta {
		if m.Name != "" {
			name = m.Name
		}
		if m.LastSummary != "" {
			summary = m.LastSummary
		}
		text = m.ExtractedText
	}
	doc := Document{
		ID:        info.Key,
		Path:      info.Key,
		Name:      name,
		Type:      doctype.Classify(name),
		Size:      info.Size,
		Text:      text,
		Summary:   summary,
		UpdatedAt: info.UpdatedAt,
	}
	if info.Size > 0 {
		doc.SizeLabel = util.HumanSize(info.Size)
	}
	return doc
}

// Upload stores a new file and extracts its text. Extraction failures leave
// the text empty.
func (s *Service) Upload(ctx context.Context, sess auth.Session, filename string, size int64, r io.Reader) (Document, error) {
	if !sess.Valid() || strings.TrimSpace(filename) == "" {
		return Document{}, ErrInvalidInput
	}
	now := s.now().UTC()
	p := PathFor(sess.UserID, now, filename)
	n, err := s.Store.Put(ctx, p, doctype.ContentType(filename), r, false)
	if err != nil {
		return Document{}, fmt.Errorf("store %s: %w", p, err)
	}
	if size <= 0 {
		size = n
	}
	return s.finalize(ctx, sess, p, filename, size, now)
}

// Register finalizes a direct-to-bucket upload made through Presign.
// The stored object's size wins over size when the store reports one.
func (s *Service) Register(ctx context.Context, sess auth.Session, p, name string, size int64) (Document, error) {
	if !owns(sess, p) {
		return Document{}, ErrInvalidInput
	}
	info, err := s.Store.Stat(ctx, p)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	if strings.TrimSpace(name) == "" {
		name = path.Base(p)
	}
	if info.Size > 0 {
		size = info.Size
	}
	return s.finalize(ctx, sess, p, name, size, s.now().UTC())
}

func (s *Service) finalize(ctx context.Context, sess auth.Session, p, name string, size int64, at time.Time) (Document, error) {
	typ := doctype.Classify(name)
	text := ""
	if typ.Extractable() && s.Extractor != nil {
		extracted, err := s.Extractor.Extract(ctx, extract.Document{Path: p, Name: name, Type: typ})
		if err == nil {
			text = extracted
		}
	}
	if err := s.Repo.SaveText(ctx, Meta{UserID: sess.UserID, Path: p, Name: name, ExtractedText: text, UpdatedAt: at}); err != nil {
		return Document{}, fmt.Errorf("save meta: %w", err)
	}

	doc := Document{
		ID:        p,
		Path:      p,
		Name:      name,
		Type:      typ,
		Size:      size,
		SizeLabel: util.HumanSize(size),
		Text:      text,
		Summary:   SummaryPlaceholder,
		UpdatedAt: at,
	}
	if url, err := s.Store.SignedURL(ctx, p, s.URLTTL); err == nil {
		doc.URL = url
	}
	telemetry.Info("documents.uploaded", map[string]any{
		"user_id":  sess.UserID,
		"doc_path": p,
		"type":     string(typ),
		"bytes":    size,
		"has_text": text != "",
	})
	return doc, nil
}

// Extract returns the document's text, extracting and persisting it when it
// is not cached yet.
func (s *Service) Extract(ctx context.Context, sess auth.Session, p string) (Document, error) {
	if !owns(sess, p) {
		return Document{}, ErrInvalidInput
	}
	info, err := s.Store.Stat(ctx, p)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	m, err := s.Repo.GetMeta(ctx, sess.UserID, p)
	hasMeta := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Document{}, err
	}
	doc := s.toDocument(info, m, hasMeta)
	if !doc.Type.Extractable() {
		return doc, extract.ErrNotExtractable
	}

	text, ran, err := s.Extractor.EnsureText(ctx, extract.Document{Path: p, Name: doc.Name, Type: doc.Type, Text: doc.Text})
	if err != nil {
		return doc, err
	}
	doc.Text = text
	if ran && text != "" {
		if err := s.Repo.SaveText(ctx, Meta{UserID: sess.UserID, Path: p, Name: doc.Name, ExtractedText: text, UpdatedAt: s.now().UTC()}); err != nil {
			return doc, fmt.Errorf("save meta: %w", err)
		}
	}
	return doc, nil
}

type target struct {
	path string
	name string
	text string
}

// targets returns the owned paths that have extracted text, in request order.
func (s *Service) targets(ctx context.Context, sess auth.Session, paths []string) ([]target, error) {
	seen := make(map[string]bool, len(paths))
	out := make([]target, 0, len(paths))
	for _, p := range paths {
		if seen[p] || !owns(sess, p) {
			continue
		}
		seen[p] = true
		m, err := s.Repo.GetMeta(ctx, sess.UserID, p)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if m.ExtractedText == "" {
			continue
		}
		name := m.Name
		if name == "" {
			name = path.Base(p)
		}
		out = append(out, target{path: p, name: name, text: m.ExtractedText})
	}
	return out, nil
}

// Summarize reserves one summary unit per document with text, then
// summarizes them in order. Failed items are recorded as unavailable.
func (s *Service) Summarize(ctx context.Context, sess auth.Session, paths []string) ([]SummaryResult, usage.Decision, error) {
	if !sess.Valid() {
		return nil, usage.Decision{}, ErrInvalidInput
	}
	chosen, err := s.targets(ctx, sess, paths)
	if err != nil {
		return nil, usage.Decision{}, err
	}
	if len(chosen) == 0 {
		return nil, usage.Decision{}, ErrNoText
	}
	decision, err := s.Usage.Reserve(ctx, sess.UserID, usage.KindSummary, len(chosen))
	if err != nil {
		return nil, decision, err
	}

	results := make([]SummaryResult, 0, len(chosen))
	for _, d := range chosen {
		summary, err := s.LLM.Generate(ctx, llm.SummarizeRequest(d.name, d.text))
		switch {
		case err != nil:
			telemetry.Warn("documents.summarize_failed", map[string]any{"doc_path": d.path, "err": err.Error()})
			summary = summaryUnavailable
		case strings.TrimSpace(summary) == "":
			summary = noSummary
		}
		if err := s.Repo.SaveSummary(ctx, Meta{UserID: sess.UserID, Path: d.path, Name: d.name, LastSummary: summary, UpdatedAt: s.now().UTC()}); err != nil {
			return results, decision, fmt.Errorf("save summary: %w", err)
		}
		results = append(results, SummaryResult{Path: d.path, Name: d.name, Summary: summary})
	}
	return results, decision, nil
}

// Ask reserves one question unit per document with text and asks each one
// separately. Answers are stored newest first.
func (s *Service) Ask(ctx context.Context, sess auth.Session, question string, paths []string) ([]AnswerResult, usage.Decision, error) {
	if !sess.Valid() {
		return nil, usage.Decision{}, ErrInvalidInput
	}
	q := strings.TrimSpace(question)
	if q == "" {
		return nil, usage.Decision{}, ErrEmptyQuestion
	}
	chosen, err := s.targets(ctx, sess, paths)
	if err != nil {
		return nil, usage.Decision{}, err
	}
	if len(chosen) == 0 {
		return nil, usage.Decision{}, ErrNoParsedText
	}
	decision, err := s.Usage.Reserve(ctx, sess.UserID, usage.KindQuestion, len(chosen))
	if err != nil {
		return nil, decision, err
	}

	results := make([]AnswerResult, 0, len(chosen))
	for _, d := range chosen {
		text, err := s.LLM.Generate(ctx, llm.AskRequest(q, []llm.Doc{{Name: d.name, Text: util.Truncate(d.text, llm.MaxPromptChars)}}))
		switch {
		case err != nil:
			text = "Ask failed: " + failureReason(err)
		case strings.TrimSpace(text) == "":
			text = noAnswer
		}
		a := Answer{
			ID:       uuid.NewString(),
			UserID:   sess.UserID,
			Path:     d.path,
			Question: q,
			Answer:   text,
			At:       s.now().UTC(),
		}
		if err := s.Repo.AddAnswer(ctx, a); err != nil {
			return results, decision, fmt.Errorf("save answer: %w", err)
		}
		results = append(results, AnswerResult{Path: d.path, Name: d.name, Answer: a})
	}
	return results, decision, nil
}

func failureReason(err error) string {
	var upstream *llm.UpstreamError
	if errors.As(err, &upstream) {
		return "OpenAI error"
	}
	return err.Error()
}

// Answers returns the question history of one document.
func (s *Service) Answers(ctx context.Context, sess auth.Session, p string) ([]Answer, error) {
	if !owns(sess, p) {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListAnswers(ctx, sess.UserID, p)
}

// UsageCounts returns the gate counts for the session's user.
func (s *Service) UsageCounts(ctx context.Context, sess auth.Session) (usage.Snapshot, error) {
	if !sess.Valid() {
		return usage.Snapshot{}, ErrInvalidInput
	}
	return s.Usage.Counts(ctx, sess.UserID)
}

// Presign returns a direct upload URL for a new document path.
func (s *Service) Presign(ctx context.Context, sess auth.Session, filename, contentType string) (Upload, error) {
	if !sess.Valid() || strings.TrimSpace(filename) == "" {
		return Upload{}, ErrInvalidInput
	}
	presigner, ok := s.Store.(object.Presigner)
	if !ok {
		return Upload{}, ErrPresignUnsupported
	}
	if contentType == "" {
		contentType = doctype.ContentType(filename)
	}
	p := PathFor(sess.UserID, s.now().UTC(), filename)
	url, err := presigner.PresignPut(ctx, p, contentType, presignExpires)
	if err != nil {
		return Upload{}, fmt.Errorf("presign %s: %w", p, err)
	}
	return Upload{
		UploadURL:        url,
		Path:             p,
		ContentType:      contentType,
		ExpiresInSeconds: int64(presignExpires / time.Second),
	}, nil
}
