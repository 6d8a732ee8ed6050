package dto

import (
	"time"

	domainlistings "autoparc/internal/domain/listings"
)

// Listing is the row shape of a listing.
type Listing struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	PriceCents  int64      `json:"price_cents"`
	Category    string     `json:"category"`
	Images      []string   `json:"images"`
	Year        int        `json:"year,omitempty"`
	Mileage     *int       `json:"mileage,omitempty"`
	Color       string     `json:"color,omitempty"`
	Condition   int        `json:"condition"`
	Description string     `json:"description,omitempty"`
	SellerID    string     `json:"seller_id"`
	SellerType  string     `json:"seller_type"`
	Status      string     `json:"status"`
	Location    string     `json:"location"`
	IsBoosted   bool       `json:"is_boosted"`
	BoostedAt   *time.Time `json:"boosted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ListingCatalog is a page of listings.
type ListingCatalog struct {
	Items []Listing       `json:"items"`
	Meta  CatalogMetadata `json:"meta"`
}

type CatalogMetadata struct {
	Total  int    `json:"total"`
	Count  int    `json:"count"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	Sort   string `json:"sort"`
}

func MapListing(l *domainlistings.Listing) Listing {
	if l == nil {
		return Listing{}
	}
	out := Listing{
		ID:          string(l.ID),
		Title:       l.Title,
		PriceCents:  l.PriceCents,
		Category:    string(l.Category),
		Images:      append([]string{}, l.Images...),
		Year:        l.Year,
		Color:       l.Color,
		Condition:   l.Condition,
		Description: l.Description,
		SellerID:    string(l.SellerID),
		SellerType:  string(l.SellerType),
		Status:      string(l.Status),
		Location:    l.Location,
		IsBoosted:   l.IsBoosted,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
	if l.Mileage != nil {
		m := *l.Mileage
		out.Mileage = &m
	}
	if l.IsBoosted && !l.BoostedAt.IsZero() {
		at := l.BoostedAt
		out.BoostedAt = &at
	}
	return out
}

func MapCatalog(result domainlistings.SearchResult, params domainlistings.SearchParams) ListingCatalog {
	normalized := params.Normalized()
	items := make([]Listing, 0, len(result.Items))
	for _, l := range result.Items {
		items = append(items, MapListing(l))
	}
	return ListingCatalog{
		Items: items,
		Meta: CatalogMetadata{
			Total:  result.Total,
			Count:  len(items),
			Limit:  normalized.Limit,
			Offset: normalized.Offset,
			Sort:   string(normalized.Sort),
		},
	}
}

// ListingRecord is the realtime payload of a listing change.
func ListingRecord(l *domainlistings.Listing) map[string]any {
	return map[string]any{
		"id":          string(l.ID),
		"title":       l.Title,
		"price_cents": l.PriceCents,
		"category":    string(l.Category),
		"images":      append([]string{}, l.Images...),
		"seller_id":   string(l.SellerID),
		"status":      string(l.Status),
		"location":    l.Location,
		"is_boosted":  l.IsBoosted,
		"updated_at":  l.UpdatedAt,
	}
}
