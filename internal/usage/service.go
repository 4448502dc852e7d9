package usage

import (
	"context"
	"time"

	"askmydocs-backend/internal/shared/metrics"
	"askmydocs-backend/internal/shared/telemetry"
)

// Store persists usage events. Reserve must count and insert atomically with
// respect to other reservations for the same user and kind.
type Store interface {
	Count(ctx context.Context, userID string, kind Kind, since time.Time) (int, error)
	// Reserve counts events at or after since and, when count+n <= limit,
	// appends n events tagged tag at time at. It returns the count observed
	// before inserting and whether the events were written.
	Reserve(ctx context.Context, userID string, kind Kind, n, limit int, tag string, since, at time.Time) (int, bool, error)
}

// Service is the usage gate.
type Service struct {
	store  Store
	limits Limits
	now    func() time.Time
}

// NewService builds a gate over store. Missing kinds in limits fall back to
// the defaults.
func NewService(store Store, limits Limits) *Service {
	merged := DefaultLimits()
	for k, v := range limits {
		merged[k] = v
	}
	return &Service{store: store, limits: merged, now: time.Now}
}

// Limit returns the daily allowance for kind.
func (s *Service) Limit(kind Kind) int {
	return s.limits[kind]
}

// Check reports whether n more actions of kind fit in the current window.
// It reserves nothing.
func (s *Service) Check(ctx context.Context, userID string, kind Kind, n int) (Decision, error) {
	limit, ok := s.limits[kind]
	if !ok {
		return Decision{}, ErrUnknownKind
	}
	if n < 0 {
		n = 0
	}
	count, err := s.store.Count(ctx, userID, kind, s.now().UTC().Add(-Window))
	if err != nil {
		return Decision{}, err
	}
	return decide(kind, count, n, limit), nil
}

// Reserve atomically records n actions of kind, or returns ErrLimitReached
// without recording anything. Reservations are never refunded.
func (s *Service) Reserve(ctx context.Context, userID string, kind Kind, n int) (Decision, error) {
	limit, ok := s.limits[kind]
	if !ok {
		return Decision{}, ErrUnknownKind
	}
	if n <= 0 {
		return s.Check(ctx, userID, kind, 0)
	}
	tag := TagSingle
	if n > 1 {
		tag = TagMulti
	}
	now := s.now().UTC()
	count, reserved, err := s.store.Reserve(ctx, userID, kind, n, limit, tag, now.Add(-Window), now)
	if err != nil {
		return Decision{}, err
	}
	d := decide(kind, count, n, limit)
	if !reserved {
		d.Allowed = false
		metrics.IncQuotaRejection(string(kind))
		telemetry.Warn("usage.limit_reached", map[string]any{
			"user_id":   userID,
			"kind":      string(kind),
			"count":     count,
			"requested": n,
			"limit":     limit,
		})
		return d, ErrLimitReached
	}
	d.Count = count + n
	d.Remaining = limit - d.Count
	telemetry.Info("usage.reserve", map[string]any{
		"user_id":   userID,
		"kind":      string(kind),
		"requested": n,
		"count":     d.Count,
		"limit":     limit,
	})
	return d, nil
}

// Counts returns both kinds' rolling counts and limits.
func (s *Service) Counts(ctx context.Context, userID string) (Snapshot, error) {
	since := s.now().UTC().Add(-Window)
	summaries, err := s.store.Count(ctx, userID, KindSummary, since)
	if err != nil {
		return Snapshot{}, err
	}
	questions, err := s.store.Count(ctx, userID, KindQuestion, since)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Summaries:   summaries,
		Questions:   questions,
		SummaryCap:  s.limits[KindSummary],
		QuestionCap: s.limits[KindQuestion],
		Since:       since,
	}, nil
}
