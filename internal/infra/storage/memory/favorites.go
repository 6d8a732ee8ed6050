package memory

import (
	"context"
	"sort"
	"sync"

	domainfavorites "autoparc/internal/domain/favorites"
)

type favoriteKey struct {
	user    string
	listing string
}

// FavoriteRepository holds at most one row per (user, listing).
type FavoriteRepository struct {
	mu    sync.RWMutex
	items map[favoriteKey]domainfavorites.Favorite
}

func NewFavoriteRepository() *FavoriteRepository {
	return &FavoriteRepository{items: make(map[favoriteKey]domainfavorites.Favorite)}
}

func (r *FavoriteRepository) Add(ctx context.Context, fav domainfavorites.Favorite) (bool, error) {
	if fav.UserID == "" {
		return false, domainfavorites.ErrUserRequired
	}
	if fav.ListingID == "" {
		return false, domainfavorites.ErrListingRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := favoriteKey{user: fav.UserID, listing: fav.ListingID}
	if _, ok := r.items[key]; ok {
		return false, nil
	}
	r.items[key] = fav
	return true, nil
}

func (r *FavoriteRepository) Remove(ctx context.Context, userID, listingID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := favoriteKey{user: userID, listing: listingID}
	if _, ok := r.items[key]; !ok {
		return false, nil
	}
	delete(r.items, key)
	return true, nil
}

func (r *FavoriteRepository) Exists(ctx context.Context, userID, listingID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.items[favoriteKey{user: userID, listing: listingID}]
	return ok, nil
}

// ListForUser returns the newest favorites first.
func (r *FavoriteRepository) ListForUser(ctx context.Context, userID string) ([]domainfavorites.Favorite, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domainfavorites.Favorite, 0)
	for key, fav := range r.items {
		if key.user == userID {
			out = append(out, fav)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ListingID < out[j].ListingID
	})
	return out, nil
}

func (r *FavoriteRepository) CountForListing(ctx context.Context, listingID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for key := range r.items {
		if key.listing == listingID {
			count++
		}
	}
	return count, nil
}

var _ domainfavorites.Repository = (*FavoriteRepository)(nil)
