package usage

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu     sync.Mutex
	events map[string][]time.Time
}

// NewMemoryStore returns an in-process Store. Counts are lost on restart.
func NewMemoryStore() Store {
	return &memoryStore{events: make(map[string][]time.Time)}
}

func memoryKey(userID string, kind Kind) string {
	return userID + "|" + string(kind)
}

func (s *memoryStore) Count(ctx context.Context, userID string, kind Kind, since time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return countSince(s.events[memoryKey(userID, kind)], since), nil
}

func (s *memoryStore) Reserve(ctx context.Context, userID string, kind Kind, n, limit int, _ string, since, at time.Time) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	key := memoryKey(userID, kind)
	s.mu.Lock()
	defer s.mu.Unlock()

	// Drop events outside the window so the slice stays bounded.
	kept := s.events[key][:0]
	for _, ts := range s.events[key] {
		if !ts.Before(since) {
			kept = append(kept, ts)
		}
	}
	count := len(kept)
	if count+n > limit {
		s.events[key] = kept
		return count, false, nil
	}
	for i := 0; i < n; i++ {
		kept = append(kept, at)
	}
	s.events[key] = kept
	return count, true, nil
}

func countSince(events []time.Time, since time.Time) int {
	n := 0
	for _, ts := range events {
		if !ts.Before(since) {
			n++
		}
	}
	return n
}
