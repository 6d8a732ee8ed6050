package favorites

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"autoparc/internal/app/commands"
	"autoparc/internal/app/dto"
	handlersupport "autoparc/internal/app/handlers/support"
	"autoparc/internal/app/policies"
	"autoparc/internal/app/queries"
	"autoparc/internal/app/uow"
	domainfavorites "autoparc/internal/domain/favorites"
	domainlistings "autoparc/internal/domain/listings"
	domainnotification "autoparc/internal/domain/notification"
	"autoparc/internal/realtime"
)

const (
	addFavoriteKey    = "favorites.add"
	removeFavoriteKey = "favorites.remove"
	listFavoritesKey  = "favorites.list"
	favoriteStatusKey = "favorites.status"
)

var (
	ErrUserRequired    = errors.New("user id is required")
	ErrListingRequired = errors.New("listing id is required")
)

type AddFavoriteCommand struct {
	UserID    string
	ListingID string
}

func (c AddFavoriteCommand) Key() string { return addFavoriteKey }

func (c AddFavoriteCommand) Validate() error { return requirePair(c.UserID, c.ListingID) }

// AddFavoriteHandler stores the pair once. Repeated adds succeed without a
// second row, event or notification.
type AddFavoriteHandler struct {
	Logger   *slog.Logger
	Notifier policies.Notifier
	Now      func() time.Time
}

func (h *AddFavoriteHandler) Handle(ctx context.Context, cmd AddFavoriteCommand) (*dto.FavoriteStatus, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	listing, err := unit.Listings().ByID(ctx, domainlistings.ListingID(cmd.ListingID))
	if err != nil {
		return nil, err
	}
	fav, err := domainfavorites.New(cmd.UserID, cmd.ListingID, handlersupport.Now(h.Now))
	if err != nil {
		return nil, err
	}
	created, err := unit.Favorites().Add(ctx, fav)
	if err != nil {
		return nil, err
	}
	if created {
		realtime.Enqueue(ctx, realtime.Event{
			Table:  realtime.TableFavorites,
			Type:   realtime.Insert,
			Record: favoriteRecord(fav),
			At:     fav.CreatedAt,
		})
		seller := string(listing.SellerID)
		if h.Notifier != nil && seller != cmd.UserID {
			if _, err := h.Notifier.Notify(ctx, domainnotification.CreateParams{
				UserID: seller,
				Kind:   domainnotification.KindFavorite,
				Title:  "Nouveau favori",
				Body:   "Votre annonce « " + listing.Title + " » a été ajoutée aux favoris.",
				Link:   "/listings/" + string(listing.ID),
				Now:    fav.CreatedAt,
			}); err != nil {
				return nil, err
			}
		}
		if h.Logger != nil {
			h.Logger.Info("favorite added", "user_id", cmd.UserID, "listing_id", cmd.ListingID)
		}
	}
	return status(ctx, unit.Favorites(), cmd.UserID, cmd.ListingID)
}

type RemoveFavoriteCommand struct {
	UserID    string
	ListingID string
}

func (c RemoveFavoriteCommand) Key() string { return removeFavoriteKey }

func (c RemoveFavoriteCommand) Validate() error { return requirePair(c.UserID, c.ListingID) }

type RemoveFavoriteHandler struct {
	Logger *slog.Logger
	Now    func() time.Time
}

func (h *RemoveFavoriteHandler) Handle(ctx context.Context, cmd RemoveFavoriteCommand) (*dto.FavoriteStatus, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	removed, err := unit.Favorites().Remove(ctx, cmd.UserID, cmd.ListingID)
	if err != nil {
		return nil, err
	}
	if removed {
		realtime.Enqueue(ctx, realtime.Event{
			Table: realtime.TableFavorites,
			Type:  realtime.Delete,
			Old: map[string]any{
				"user_id":    cmd.UserID,
				"listing_id": cmd.ListingID,
			},
			At: handlersupport.Now(h.Now).UTC(),
		})
		if h.Logger != nil {
			h.Logger.Info("favorite removed", "user_id", cmd.UserID, "listing_id", cmd.ListingID)
		}
	}
	return status(ctx, unit.Favorites(), cmd.UserID, cmd.ListingID)
}

type ListFavoritesQuery struct {
	UserID string
}

func (q ListFavoritesQuery) Key() string { return listFavoritesKey }

type ListFavoritesHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

// Handle returns the user's favorites with the listings that still exist.
func (h *ListFavoritesHandler) Handle(ctx context.Context, q ListFavoritesQuery) (dto.FavoriteList, error) {
	if strings.TrimSpace(q.UserID) == "" {
		return dto.FavoriteList{}, ErrUserRequired
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.FavoriteList{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	favs, err := unit.Favorites().ListForUser(execCtx, q.UserID)
	if err != nil {
		return dto.FavoriteList{}, err
	}
	out := dto.FavoriteList{
		Items:    make([]dto.Favorite, 0, len(favs)),
		Listings: make([]dto.Listing, 0, len(favs)),
	}
	for _, f := range favs {
		out.Items = append(out.Items, dto.MapFavorite(f))
		listing, err := unit.Listings().ByID(execCtx, domainlistings.ListingID(f.ListingID))
		if errors.Is(err, domainlistings.ErrNotFound) {
			if h.Logger != nil {
				h.Logger.Debug("favorite points to missing listing", "user_id", q.UserID, "listing_id", f.ListingID)
			}
			continue
		}
		if err != nil {
			return dto.FavoriteList{}, err
		}
		out.Listings = append(out.Listings, dto.MapListing(listing))
	}
	return out, nil
}

type FavoriteStatusQuery struct {
	UserID    string
	ListingID string
}

func (q FavoriteStatusQuery) Key() string { return favoriteStatusKey }

type FavoriteStatusHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *FavoriteStatusHandler) Handle(ctx context.Context, q FavoriteStatusQuery) (*dto.FavoriteStatus, error) {
	if strings.TrimSpace(q.ListingID) == "" {
		return nil, ErrListingRequired
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	return status(execCtx, unit.Favorites(), q.UserID, q.ListingID)
}

func status(ctx context.Context, repo domainfavorites.Repository, userID, listingID string) (*dto.FavoriteStatus, error) {
	out := &dto.FavoriteStatus{ListingID: listingID}
	if userID != "" {
		exists, err := repo.Exists(ctx, userID, listingID)
		if err != nil {
			return nil, err
		}
		out.IsFavorite = exists
	}
	count, err := repo.CountForListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	out.Count = count
	return out, nil
}

func favoriteRecord(f domainfavorites.Favorite) map[string]any {
	return map[string]any{
		"user_id":    f.UserID,
		"listing_id": f.ListingID,
		"created_at": f.CreatedAt,
	}
}

func requirePair(userID, listingID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUserRequired
	}
	if strings.TrimSpace(listingID) == "" {
		return ErrListingRequired
	}
	return nil
}

var (
	_ commands.Handler[AddFavoriteCommand, *dto.FavoriteStatus]    = (*AddFavoriteHandler)(nil)
	_ commands.Handler[RemoveFavoriteCommand, *dto.FavoriteStatus] = (*RemoveFavoriteHandler)(nil)
	_ queries.Handler[ListFavoritesQuery, dto.FavoriteList]        = (*ListFavoritesHandler)(nil)
	_ queries.Handler[FavoriteStatusQuery, *dto.FavoriteStatus]    = (*FavoriteStatusHandler)(nil)
)
