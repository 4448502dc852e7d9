package documents

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// ListMeta returns every doc_meta row for a user.
func (r *PGRepo) ListMeta(ctx context.Context, userID string) ([]Meta, error) {
	const query = `
SELECT path, name, COALESCE(last_summary, ''), COALESCE(extracted_text, ''), updated_at
FROM doc_meta
WHERE user_id = $1
ORDER BY path`

	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Meta, 0)
	for rows.Next() {
		m := Meta{UserID: userID}
		if err := rows.Scan(&m.Path, &m.Name, &m.LastSummary, &m.ExtractedText, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetMeta returns one doc_meta row or ErrNotFound.
func (r *PGRepo) GetMeta(ctx context.Context, userID, path string) (Meta, error) {
	const query = `
SELECT name, COALESCE(last_summary, ''), COALESCE(extracted_text, ''), updated_at
FROM doc_meta
WHERE user_id = $1 AND path = $2`

	m := Meta{UserID: userID, Path: path}
	err := r.DB.QueryRowContext(ctx, query, userID, path).
		Scan(&m.Name, &m.LastSummary, &m.ExtractedText, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Meta{}, ErrNotFound
		}
		return Meta{}, err
	}
	return m, nil
}

// SaveSummary upserts the latest summary for a document.
func (r *PGRepo) SaveSummary(ctx context.Context, m Meta) error {
	const query = `
INSERT INTO doc_meta (user_id, path, name, last_summary, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, path) DO UPDATE SET
    name = EXCLUDED.name,
    last_summary = EXCLUDED.last_summary,
    updated_at = EXCLUDED.updated_at`

	_, err := r.DB.ExecContext(ctx, query, m.UserID, m.Path, m.Name, m.LastSummary, m.UpdatedAt)
	return err
}

// SaveText upserts the extracted text for a document.
func (r *PGRepo) SaveText(ctx context.Context, m Meta) error {
	const query = `
INSERT INTO doc_meta (user_id, path, name, extracted_text, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, path) DO UPDATE SET
    name = COALESCE(NULLIF(EXCLUDED.name, ''), doc_meta.name),
    extracted_text = EXCLUDED.extracted_text,
    updated_at = EXCLUDED.updated_at`

	_, err := r.DB.ExecContext(ctx, query, m.UserID, m.Path, m.Name, m.ExtractedText, m.UpdatedAt)
	return err
}

// AddAnswer appends to the answer history.
func (r *PGRepo) AddAnswer(ctx context.Context, a Answer) error {
	const query = `
INSERT INTO doc_answers (id, user_id, path, question, answer, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.DB.ExecContext(ctx, query, a.ID, a.UserID, a.Path, a.Question, a.Answer, a.At)
	return err
}

// ListAnswers returns a document's answers, newest first.
func (r *PGRepo) ListAnswers(ctx context.Context, userID, path string) ([]Answer, error) {
	const query = `
SELECT id, question, answer, created_at
FROM doc_answers
WHERE user_id = $1 AND path = $2
ORDER BY created_at DESC`

	rows, err := r.DB.QueryContext(ctx, query, userID, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Answer, 0)
	for rows.Next() {
		a := Answer{UserID: userID, Path: path}
		if err := rows.Scan(&a.ID, &a.Question, &a.Answer, &a.At); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
