package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	domainfavorites "autoparc/internal/domain/favorites"
)

// FavoriteRepository relies on the (user_id, listing_id) primary key: a
// second add of the same pair is absorbed by ON CONFLICT.
type FavoriteRepository struct {
	pool *pgxpool.Pool
}

func NewFavoriteRepository(pool *pgxpool.Pool) *FavoriteRepository {
	return &FavoriteRepository{pool: pool}
}

func (r *FavoriteRepository) Add(ctx context.Context, fav domainfavorites.Favorite) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO favorites (user_id, listing_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, listing_id) DO NOTHING
	`, fav.UserID, fav.ListingID, fav.CreatedAt.UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *FavoriteRepository) Remove(ctx context.Context, userID, listingID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM favorites WHERE user_id = $1 AND listing_id = $2`, userID, listingID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *FavoriteRepository) Exists(ctx context.Context, userID, listingID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM favorites WHERE user_id = $1 AND listing_id = $2)
	`, userID, listingID).Scan(&exists)
	return exists, err
}

// ListForUser returns the newest favorites first.
func (r *FavoriteRepository) ListForUser(ctx context.Context, userID string) ([]domainfavorites.Favorite, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, listing_id, created_at
		FROM favorites
		WHERE user_id = $1
		ORDER BY created_at DESC, listing_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domainfavorites.Favorite
	for rows.Next() {
		var fav domainfavorites.Favorite
		if err := rows.Scan(&fav.UserID, &fav.ListingID, &fav.CreatedAt); err != nil {
			return nil, err
		}
		fav.CreatedAt = fav.CreatedAt.UTC()
		out = append(out, fav)
	}
	return out, rows.Err()
}

func (r *FavoriteRepository) CountForListing(ctx context.Context, listingID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM favorites WHERE listing_id = $1`, listingID).Scan(&n)
	return n, err
}

var _ domainfavorites.Repository = (*FavoriteRepository)(nil)
