package memory

import (
	"context"
	"sync"
	"time"

	"autoparc/internal/app/middleware"
)

// DefaultReplayTTL matches the Mongo store's default retention.
const DefaultReplayTTL = 7 * 24 * time.Hour

// IdempotencyStore keeps command replays in memory until Purge drops the
// ones older than the TTL.
type IdempotencyStore struct {
	mu    sync.RWMutex
	items map[string]middleware.Replay
	ttl   time.Duration
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultReplayTTL
	}
	return &IdempotencyStore{items: make(map[string]middleware.Replay), ttl: ttl}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.Replay, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[key]
	return rec, ok, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.Replay) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[rec.Key] = rec
	return nil
}

// Purge removes replays completed more than the TTL before now.
func (s *IdempotencyStore) Purge(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, rec := range s.items {
		if rec.CompletedAt.Before(cutoff) {
			delete(s.items, key)
			n++
		}
	}
	return n, nil
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
