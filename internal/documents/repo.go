package documents

import "context"

// Repo persists document metadata and answer history.
type Repo interface {
	ListMeta(ctx context.Context, userID string) ([]Meta, error)
	GetMeta(ctx context.Context, userID, path string) (Meta, error)
	// SaveSummary upserts name, last_summary and updated_at.
	SaveSummary(ctx context.Context, m Meta) error
	// SaveText upserts extracted_text and updated_at. An empty name keeps the stored one.
	SaveText(ctx context.Context, m Meta) error
	AddAnswer(ctx context.Context, a Answer) error
	// ListAnswers returns answers for a document, newest first.
	ListAnswers(ctx context.Context, userID, path string) ([]Answer, error)
}
