package listings

import (
	"context"
	"log/slog"
	"strings"

	"autoparc/internal/app/dto"
	handlersupport "autoparc/internal/app/handlers/support"
	"autoparc/internal/app/queries"
	"autoparc/internal/app/uow"
	domainlistings "autoparc/internal/domain/listings"
)

const (
	searchCatalogKey   = "listings.catalog"
	getListingKey      = "listings.get"
	sellerListingsKey  = "listings.seller"
	sellerListingLimit = 100
)

// SearchCatalogQuery describes catalog filters.
type SearchCatalogQuery struct {
	Categories    []string
	Query         string
	Location      string
	PriceMinCents int64
	PriceMaxCents int64
	YearMin       int
	YearMax       int
	Statuses      []string
	BoostedOnly   bool
	Sort          string
	Limit         int
	Offset        int
}

func (q SearchCatalogQuery) Key() string { return searchCatalogKey }

type SearchCatalogHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *SearchCatalogHandler) Handle(ctx context.Context, q SearchCatalogQuery) (dto.ListingCatalog, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.ListingCatalog{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	params := domainlistings.SearchParams{
		Query:         q.Query,
		Location:      q.Location,
		PriceMinCents: q.PriceMinCents,
		PriceMaxCents: q.PriceMaxCents,
		YearMin:       q.YearMin,
		YearMax:       q.YearMax,
		BoostedOnly:   q.BoostedOnly,
		Sort:          domainlistings.CatalogSort(q.Sort),
		Limit:         q.Limit,
		Offset:        q.Offset,
	}
	for _, c := range q.Categories {
		params.Categories = append(params.Categories, domainlistings.Category(c))
	}
	for _, s := range q.Statuses {
		params.Statuses = append(params.Statuses, domainlistings.Status(s))
	}
	params = params.Normalized()

	result, err := unit.Listings().Search(execCtx, params)
	if err != nil {
		return dto.ListingCatalog{}, err
	}
	return dto.MapCatalog(result, params), nil
}

type GetListingQuery struct {
	ListingID string
}

func (q GetListingQuery) Key() string { return getListingKey }

type GetListingHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetListingHandler) Handle(ctx context.Context, q GetListingQuery) (*dto.Listing, error) {
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
	listing, err := unit.Listings().ByID(execCtx, domainlistings.ListingID(q.ListingID))
	if err != nil {
		return nil, err
	}
	result := dto.MapListing(listing)
	return &result, nil
}

type SellerListingsQuery struct {
	SellerID string
	Limit    int
	Offset   int
}

func (q SellerListingsQuery) Key() string { return sellerListingsKey }

type SellerListingsHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *SellerListingsHandler) Handle(ctx context.Context, q SellerListingsQuery) (dto.ListingCatalog, error) {
	if strings.TrimSpace(q.SellerID) == "" {
		return dto.ListingCatalog{}, ErrSellerRequired
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.ListingCatalog{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	limit := q.Limit
	if limit <= 0 {
		limit = sellerListingLimit
	}
	params := domainlistings.SearchParams{
		SellerID: domainlistings.SellerID(q.SellerID),
		Sort:     domainlistings.SortNewest,
		Limit:    limit,
		Offset:   q.Offset,
	}.Normalized()
	result, err := unit.Listings().Search(execCtx, params)
	if err != nil {
		return dto.ListingCatalog{}, err
	}
	if h.Logger != nil {
		h.Logger.Debug("seller listings queried", "seller_id", q.SellerID, "count", len(result.Items))
	}
	return dto.MapCatalog(result, params), nil
}

var (
	_ queries.Handler[SearchCatalogQuery, dto.ListingCatalog]  = (*SearchCatalogHandler)(nil)
	_ queries.Handler[GetListingQuery, *dto.Listing]           = (*GetListingHandler)(nil)
	_ queries.Handler[SellerListingsQuery, dto.ListingCatalog] = (*SellerListingsHandler)(nil)
)
