// Package cache keeps the client's in-memory snapshots of users, listings
// and chats. It is cleared on sign-out.
package cache

import (
	"sync"
	"time"

	"autoparc/internal/client/model"
)

// DefaultFreshness is how long a listings snapshot is served without a
// refetch.
const DefaultFreshness = 15 * time.Second

type Store struct {
	mu         sync.RWMutex
	users      map[string]model.User
	listings   []model.Listing
	listingsAt time.Time
	chats      []model.Chat
	now        func() time.Time
}

func New() *Store {
	return &Store{users: make(map[string]model.User), now: time.Now}
}

// WithClock replaces the clock used for freshness checks.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

func (s *Store) SetUser(u model.User) {
	if u.ID == "" {
		return
	}
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
}

func (s *Store) User(id string) (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

// SetListings replaces the listings snapshot and stamps it.
func (s *Store) SetListings(items []model.Listing) {
	s.mu.Lock()
	s.listings = append([]model.Listing(nil), items...)
	s.listingsAt = s.now()
	s.mu.Unlock()
}

func (s *Store) Listings() []model.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Listing(nil), s.listings...)
}

// ListingsFresh reports whether the snapshot is younger than window. A
// non-positive window uses DefaultFreshness.
func (s *Store) ListingsFresh(window time.Duration) bool {
	if window <= 0 {
		window = DefaultFreshness
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listingsAt.IsZero() {
		return false
	}
	return s.now().Sub(s.listingsAt) < window
}

// UpsertListing replaces the listing with the same id in place or puts it
// first.
func (s *Store) UpsertListing(l model.Listing) {
	s.mu.Lock()
	s.listings = upsert(s.listings, l, func(x model.Listing) string { return x.ID })
	s.mu.Unlock()
}

func (s *Store) RemoveListing(id string) {
	s.mu.Lock()
	s.listings = remove(s.listings, id, func(x model.Listing) string { return x.ID })
	s.mu.Unlock()
}

func (s *Store) SetChats(items []model.Chat) {
	s.mu.Lock()
	s.chats = append([]model.Chat(nil), items...)
	s.mu.Unlock()
}

func (s *Store) Chats() []model.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Chat(nil), s.chats...)
}

func (s *Store) UpsertChat(c model.Chat) {
	s.mu.Lock()
	s.chats = upsert(s.chats, c, func(x model.Chat) string { return x.ID })
	s.mu.Unlock()
}

// Clear drops every snapshot.
func (s *Store) Clear() {
	s.mu.Lock()
	s.users = make(map[string]model.User)
	s.listings = nil
	s.listingsAt = time.Time{}
	s.chats = nil
	s.mu.Unlock()
}

func upsert[T any](items []T, item T, id func(T) string) []T {
	key := id(item)
	for i := range items {
		if id(items[i]) == key {
			items[i] = item
			return items
		}
	}
	return append([]T{item}, items...)
}

func remove[T any](items []T, key string, id func(T) string) []T {
	out := items[:0]
	for _, it := range items {
		if id(it) != key {
			out = append(out, it)
		}
	}
	return out
}
