package documents

import (
	"time"

	"askmydocs-backend/internal/doctype"
)

// SummaryPlaceholder is shown for documents that were never summarized.
const SummaryPlaceholder = "—"

// Document is one stored file in a user's library.
type Document struct {
	ID        string       `json:"id"`
	Path      string       `json:"path"`
	Name      string       `json:"name"`
	Type      doctype.Type `json:"type"`
	URL       string       `json:"url"`
	Size      int64        `json:"sizeBytes"`
	SizeLabel string       `json:"size"`
	Text      string       `json:"text,omitempty"`
	Summary   string       `json:"summary"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Meta is the persisted per-document state keyed by (user, path).
type Meta struct {
	UserID        string
	Path          string
	Name          string
	LastSummary   string
	ExtractedText string
	UpdatedAt     time.Time
}

// Answer is one question/answer exchange about a document.
type Answer struct {
	ID       string    `json:"-"`
	UserID   string    `json:"-"`
	Path     string    `json:"-"`
	Question string    `json:"q"`
	Answer   string    `json:"a"`
	At       time.Time `json:"at"`
}

// SummaryResult is the per-document outcome of a batch summarize.
type SummaryResult struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

// AnswerResult is the per-document outcome of a question.
type AnswerResult struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Answer Answer `json:"answer"`
}

// Upload is a presigned direct-to-bucket upload.
type Upload struct {
	UploadURL        string `json:"uploadUrl"`
	Path             string `json:"path"`
	ContentType      string `json:"contentType"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}
