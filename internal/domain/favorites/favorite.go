package favorites

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrUserRequired    = errors.New("favorites: user is required")
	ErrListingRequired = errors.New("favorites: listing is required")
)

// Favorite is a (user, listing) membership. At most one exists per pair.
type Favorite struct {
	UserID    string
	ListingID string
	CreatedAt time.Time
}

type Repository interface {
	// Add is idempotent and reports whether a new row was created.
	Add(ctx context.Context, fav Favorite) (bool, error)
	// Remove reports whether a row was deleted.
	Remove(ctx context.Context, userID, listingID string) (bool, error)
	Exists(ctx context.Context, userID, listingID string) (bool, error)
	ListForUser(ctx context.Context, userID string) ([]Favorite, error)
	CountForListing(ctx context.Context, listingID string) (int, error)
}

func New(userID, listingID string, now time.Time) (Favorite, error) {
	userID = strings.TrimSpace(userID)
	listingID = strings.TrimSpace(listingID)
	if userID == "" {
		return Favorite{}, ErrUserRequired
	}
	if listingID == "" {
		return Favorite{}, ErrListingRequired
	}
	if now.IsZero() {
		now = time.Now()
	}
	return Favorite{UserID: userID, ListingID: listingID, CreatedAt: now.UTC()}, nil
}
