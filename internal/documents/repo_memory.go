package documents

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores document metadata in-process.
type MemoryRepo struct {
	mu      sync.RWMutex
	meta    map[string]Meta
	answers map[string][]Answer
}

// NewMemoryRepo constructs an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		meta:    make(map[string]Meta),
		answers: make(map[string][]Answer),
	}
}

func metaKey(userID, path string) string {
	return userID + "\x00" + path
}

func (r *MemoryRepo) ListMeta(ctx context.Context, userID string) ([]Meta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Meta, 0)
	for _, m := range r.meta {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (r *MemoryRepo) GetMeta(ctx context.Context, userID, path string) (Meta, error) {
	if err := ctx.Err(); err != nil {
		return Meta{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.meta[metaKey(userID, path)]
	if !ok {
		return Meta{}, ErrNotFound
	}
	return m, nil
}

func (r *MemoryRepo) SaveSummary(ctx context.Context, m Meta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := metaKey(m.UserID, m.Path)
	cur := r.meta[key]
	cur.UserID, cur.Path, cur.Name = m.UserID, m.Path, m.Name
	cur.LastSummary = m.LastSummary
	cur.UpdatedAt = m.UpdatedAt
	r.meta[key] = cur
	return nil
}

func (r *MemoryRepo) SaveText(ctx context.Context, m Meta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := metaKey(m.UserID, m.Path)
	cur := r.meta[key]
	cur.UserID, cur.Path = m.UserID, m.Path
	if m.Name != "" {
		cur.Name = m.Name
	}
	cur.ExtractedText = m.ExtractedText
	cur.UpdatedAt = m.UpdatedAt
	r.meta[key] = cur
	return nil
}

func (r *MemoryRepo) AddAnswer(ctx context.Context, a Answer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := metaKey(a.UserID, a.Path)
	r.answers[key] = append([]Answer{a}, r.answers[key]...)
	return nil
}

func (r *MemoryRepo) ListAnswers(ctx context.Context, userID, path string) ([]Answer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Answer{}, r.answers[metaKey(userID, path)]...), nil
}

var _ Repo = (*MemoryRepo)(nil)
