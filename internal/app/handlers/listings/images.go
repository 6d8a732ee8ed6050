package listings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"autoparc/internal/app/commands"
	"autoparc/internal/app/dto"
	handlersupport "autoparc/internal/app/handlers/support"
	"autoparc/internal/app/policies"
	domainlistings "autoparc/internal/domain/listings"
	"autoparc/internal/realtime"
)

const (
	uploadListingImageKey = "listings.images.upload"
	removeListingImageKey = "listings.images.remove"
)

var (
	ErrImageStoreUnavailable = errors.New("image storage unavailable")
	ErrImageRequired         = errors.New("image content is required")
	ErrImageType             = errors.New("image must be jpeg, png or webp")
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type UploadListingImageCommand struct {
	SellerID    string
	ListingID   string
	FileName    string
	ContentType string
	Reader      io.Reader
}

func (c UploadListingImageCommand) Key() string { return uploadListingImageKey }

func (c UploadListingImageCommand) Validate() error {
	if err := requireIDs(c.SellerID, c.ListingID); err != nil {
		return err
	}
	if c.Reader == nil {
		return ErrImageRequired
	}
	if _, ok := imageExtensions[strings.ToLower(strings.TrimSpace(c.ContentType))]; !ok {
		return ErrImageType
	}
	return nil
}

type UploadListingImageHandler struct {
	Logger *slog.Logger
	Store  policies.ObjectStore
	Events Events
	Now    func() time.Time
}

func (h *UploadListingImageHandler) Handle(ctx context.Context, cmd UploadListingImageCommand) (*dto.Listing, error) {
	if h.Store == nil {
		return nil, ErrImageStoreUnavailable
	}
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	listing, err := loadOwned(ctx, unit.Listings(), cmd.SellerID, cmd.ListingID)
	if err != nil {
		return nil, err
	}
	if len(listing.Images) >= domainlistings.MaxImages {
		return nil, domainlistings.ErrTooManyImages
	}

	contentType := strings.ToLower(strings.TrimSpace(cmd.ContentType))
	key := ImageObjectKey(cmd.ListingID, contentType)
	publicURL, err := h.Store.Upload(ctx, key, cmd.Reader, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	if err := listing.AddImage(publicURL, handlersupport.Now(h.Now)); err != nil {
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
		h.Logger.Info("listing image added", "listing_id", listing.ID, "object_key", key)
	}
	result := dto.MapListing(listing)
	return &result, nil
}

type RemoveListingImageCommand struct {
	SellerID  string
	ListingID string
	URL       string
}

func (c RemoveListingImageCommand) Key() string { return removeListingImageKey }

func (c RemoveListingImageCommand) Validate() error {
	if err := requireIDs(c.SellerID, c.ListingID); err != nil {
		return err
	}
	if strings.TrimSpace(c.URL) == "" {
		return domainlistings.ErrImageURL
	}
	return nil
}

type RemoveListingImageHandler struct {
	Logger *slog.Logger
	Store  policies.ObjectStore
	Events Events
	Now    func() time.Time
}

func (h *RemoveListingImageHandler) Handle(ctx context.Context, cmd RemoveListingImageCommand) (*dto.Listing, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	listing, err := loadOwned(ctx, unit.Listings(), cmd.SellerID, cmd.ListingID)
	if err != nil {
		return nil, err
	}
	if !listing.RemoveImage(cmd.URL, handlersupport.Now(h.Now)) {
		result := dto.MapListing(listing)
		return &result, nil
	}
	if err := unit.Listings().Save(ctx, listing); err != nil {
		return nil, err
	}
	if err := h.Events.record(ctx, listing); err != nil {
		return nil, err
	}
	publishListing(ctx, realtime.Update, listing)

	if h.Store != nil {
		if key := objectKeyFromURL(cmd.URL, cmd.ListingID); key != "" {
			if err := h.Store.Delete(ctx, key); err != nil && h.Logger != nil {
				h.Logger.Warn("listing image object not deleted", "listing_id", listing.ID, "key", key, "error", err)
			}
		}
	}
	result := dto.MapListing(listing)
	return &result, nil
}

// ImageObjectKey builds "listings/<id>/<uuid><ext>".
func ImageObjectKey(listingID, contentType string) string {
	ext := imageExtensions[contentType]
	return path.Join("listings", listingID, uuid.NewString()+ext)
}

func objectKeyFromURL(url, listingID string) string {
	marker := "listings/" + listingID + "/"
	idx := strings.Index(url, marker)
	if idx < 0 {
		return ""
	}
	return url[idx:]
}

var (
	_ commands.Handler[UploadListingImageCommand, *dto.Listing] = (*UploadListingImageHandler)(nil)
	_ commands.Handler[RemoveListingImageCommand, *dto.Listing] = (*RemoveListingImageHandler)(nil)
)
