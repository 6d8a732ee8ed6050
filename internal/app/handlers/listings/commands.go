package listings

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"autoparc/internal/app/commands"
	"autoparc/internal/app/dto"
	handlersupport "autoparc/internal/app/handlers/support"
	"autoparc/internal/app/outbox"
	domainlistings "autoparc/internal/domain/listings"
	"autoparc/internal/realtime"
)

const (
	createListingKey  = "listings.create"
	updateListingKey  = "listings.update"
	boostListingKey   = "listings.boost"
	unboostListingKey = "listings.unboost"
	deleteListingKey  = "listings.delete"
)

var (
	ErrListingNotOwned = errors.New("listing not found for seller")
	ErrSellerRequired  = errors.New("seller id is required")
	ErrListingRequired = errors.New("listing id is required")
)

// Events carries the optional outbox used to record domain events.
type Events struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
}

func (e Events) record(ctx context.Context, listing *domainlistings.Listing) error {
	return outbox.RecordDomainEvents(ctx, e.Outbox, e.Encoder, listing.DrainEvents())
}

type CreateListingCommand struct {
	SellerID   string
	Details    domainlistings.Details
	RequestKey string
}

func (c CreateListingCommand) Key() string { return createListingKey }

func (c CreateListingCommand) Validate() error {
	if strings.TrimSpace(c.SellerID) == "" {
		return ErrSellerRequired
	}
	return nil
}

func (c CreateListingCommand) IdempotencyKey() string { return c.RequestKey }

func (c CreateListingCommand) ResultPrototype() any { return &dto.Listing{} }

type CreateListingHandler struct {
	Logger *slog.Logger
	Events Events
	Now    func() time.Time
}

func (h *CreateListingHandler) Handle(ctx context.Context, cmd CreateListingCommand) (*dto.Listing, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	listing, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID:       domainlistings.ListingID(uuid.NewString()),
		SellerID: domainlistings.SellerID(cmd.SellerID),
		Details:  cmd.Details,
		Now:      handlersupport.Now(h.Now),
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Listings().Save(ctx, listing); err != nil {
		return nil, err
	}
	if err := h.Events.record(ctx, listing); err != nil {
		return nil, err
	}
	publishListing(ctx, realtime.Insert, listing)

	if h.Logger != nil {
		h.Logger.Info("listing created", "listing_id", listing.ID, "seller_id", cmd.SellerID)
	}
	result := dto.MapListing(listing)
	return &result, nil
}

type UpdateListingCommand struct {
	SellerID  string
	ListingID string
	Details   domainlistings.Details
}

func (c UpdateListingCommand) Key() string { return updateListingKey }

func (c UpdateListingCommand) Validate() error { return requireIDs(c.SellerID, c.ListingID) }

type UpdateListingHandler struct {
	Logger *slog.Logger
	Events Events
	Now    func() time.Time
}

func (h *UpdateListingHandler) Handle(ctx context.Context, cmd UpdateListingCommand) (*dto.Listing, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	listing, err := loadOwned(ctx, unit.Listings(), cmd.SellerID, cmd.ListingID)
	if err != nil {
		return nil, err
	}
	details := cmd.Details
	if details.Images == nil {
		details.Images = listing.Images
	}
	if err := listing.UpdateDetails(details, handlersupport.Now(h.Now)); err != nil {
		return nil, err
	}
	if err := unit.Listings().Save(ctx, listing); err != nil {
		return nil, err
	}
	if err := h.Events.record(ctx, listing); err != nil {
		return nil, err
	}
	publishListing(ctx, realtime.Update, listing)

	if h.Logger != nil {
		h.Logger.Info("listing updated", "listing_id", listing.ID, "seller_id", cmd.SellerID)
	}
	result := dto.MapListing(listing)
	return &result, nil
}

// BoostListingCommand highlights a listing. Boosting an already boosted
// listing succeeds without changes.
type BoostListingCommand struct {
	SellerID  string
	ListingID string
	Boost     bool
}

func (c BoostListingCommand) Key() string {
	if c.Boost {
		return boostListingKey
	}
	return unboostListingKey
}

func (c BoostListingCommand) Validate() error { return requireIDs(c.SellerID, c.ListingID) }

type BoostListingHandler struct {
	Logger *slog.Logger
	Events Events
	Now    func() time.Time
}

func (h *BoostListingHandler) Handle(ctx context.Context, cmd BoostListingCommand) (*dto.Listing, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	listing, err := loadOwned(ctx, unit.Listings(), cmd.SellerID, cmd.ListingID)
	if err != nil {
		return nil, err
	}
	before := listing.IsBoosted
	if cmd.Boost {
		listing.Boost(handlersupport.Now(h.Now))
	} else {
		listing.Unboost(handlersupport.Now(h.Now))
	}
	if listing.IsBoosted != before {
		if err := unit.Listings().Save(ctx, listing); err != nil {
			return nil, err
		}
		if err := h.Events.record(ctx, listing); err != nil {
			return nil, err
		}
		publishListing(ctx, realtime.Update, listing)
		if h.Logger != nil {
			h.Logger.Info("listing boost changed", "listing_id", listing.ID, "boosted", listing.IsBoosted)
		}
	}
	result := dto.MapListing(listing)
	return &result, nil
}

type DeleteListingCommand struct {
	SellerID  string
	ListingID string
}

func (c DeleteListingCommand) Key() string { return deleteListingKey }

func (c DeleteListingCommand) Validate() error { return requireIDs(c.SellerID, c.ListingID) }

type DeleteListingHandler struct {
	Logger *slog.Logger
	Events Events
	Now    func() time.Time
}

func (h *DeleteListingHandler) Handle(ctx context.Context, cmd DeleteListingCommand) (*dto.Listing, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	listing, err := loadOwned(ctx, unit.Listings(), cmd.SellerID, cmd.ListingID)
	if err != nil {
		return nil, err
	}
	if err := unit.Listings().Delete(ctx, listing.ID); err != nil {
		return nil, err
	}
	listing.MarkDeleted(handlersupport.Now(h.Now))
	if err := h.Events.record(ctx, listing); err != nil {
		return nil, err
	}
	realtime.Enqueue(ctx, realtime.Event{
		Table: realtime.TableListings,
		Type:  realtime.Delete,
		Old:   map[string]any{"id": string(listing.ID), "seller_id": string(listing.SellerID)},
	})
	if h.Logger != nil {
		h.Logger.Info("listing deleted", "listing_id", listing.ID, "seller_id", cmd.SellerID)
	}
	result := dto.MapListing(listing)
	return &result, nil
}

func loadOwned(ctx context.Context, repo domainlistings.Repository, sellerID, listingID string) (*domainlistings.Listing, error) {
	listing, err := repo.ByID(ctx, domainlistings.ListingID(listingID))
	if err != nil {
		return nil, err
	}
	if listing.SellerID != domainlistings.SellerID(sellerID) {
		return nil, ErrListingNotOwned
	}
	return listing, nil
}

func publishListing(ctx context.Context, typ realtime.Type, listing *domainlistings.Listing) {
	realtime.Enqueue(ctx, realtime.Event{
		Table:  realtime.TableListings,
		Type:   typ,
		Record: dto.ListingRecord(listing),
		At:     listing.UpdatedAt,
	})
}

func requireIDs(sellerID, listingID string) error {
	if strings.TrimSpace(sellerID) == "" {
		return ErrSellerRequired
	}
	if strings.TrimSpace(listingID) == "" {
		return ErrListingRequired
	}
	return nil
}

var (
	_ commands.Handler[CreateListingCommand, *dto.Listing] = (*CreateListingHandler)(nil)
	_ commands.Handler[UpdateListingCommand, *dto.Listing] = (*UpdateListingHandler)(nil)
	_ commands.Handler[BoostListingCommand, *dto.Listing]  = (*BoostListingHandler)(nil)
	_ commands.Handler[DeleteListingCommand, *dto.Listing] = (*DeleteListingHandler)(nil)
)
