package dto

import (
	"time"

	domainfavorites "autoparc/internal/domain/favorites"
)

type Favorite struct {
	UserID    string    `json:"user_id"`
	ListingID string    `json:"listing_id"`
	CreatedAt time.Time `json:"created_at"`
}

type FavoriteStatus struct {
	ListingID  string `json:"listing_id"`
	IsFavorite bool   `json:"is_favorite"`
	Count      int    `json:"count"`
}

type FavoriteList struct {
	Items    []Favorite `json:"items"`
	Listings []Listing  `json:"listings"`
}

func MapFavorite(f domainfavorites.Favorite) Favorite {
	return Favorite{UserID: f.UserID, ListingID: f.ListingID, CreatedAt: f.CreatedAt}
}
