package model

import (
	"strings"
	"time"

	"autoparc/internal/app/dto"
	domainlistings "autoparc/internal/domain/listings"
)

type Listing struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Price       float64  `json:"price"`
	Category    string   `json:"category"`
	Images      []string `json:"images"`
	Year        int      `json:"year,omitempty"`
	Mileage     *int     `json:"mileage,omitempty"`
	Color       string   `json:"color,omitempty"`
	Condition   int      `json:"condition"`
	Description string   `json:"description,omitempty"`
	SellerID    string   `json:"sellerId"`
	SellerType  string   `json:"sellerType"`
	Status      string   `json:"status"`
	Location    string   `json:"location"`
	IsBoosted   bool     `json:"isBoosted"`
	CreatedAt   int64    `json:"createdAt"`
	UpdatedAt   int64    `json:"updatedAt"`
}

func ListingFromRow(row dto.Listing) Listing {
	out := Listing{
		ID:          row.ID,
		Title:       row.Title,
		Price:       centsToUnits(row.PriceCents),
		Category:    row.Category,
		Images:      append([]string{}, row.Images...),
		Year:        row.Year,
		Color:       row.Color,
		Condition:   row.Condition,
		Description: row.Description,
		SellerID:    row.SellerID,
		SellerType:  row.SellerType,
		Status:      row.Status,
		Location:    row.Location,
		IsBoosted:   row.IsBoosted,
		CreatedAt:   Millis(row.CreatedAt),
		UpdatedAt:   Millis(row.UpdatedAt),
	}
	if row.Mileage != nil {
		m := *row.Mileage
		out.Mileage = &m
	}
	return out
}

func ListingsFromRows(rows []dto.Listing) []Listing {
	out := make([]Listing, 0, len(rows))
	for _, r := range rows {
		out = append(out, ListingFromRow(r))
	}
	return out
}

// ListingFromRecord maps a realtime listings record. Records only carry
// the catalog columns; the rest stays zero.
func ListingFromRecord(record map[string]any) (Listing, error) {
	var row dto.Listing
	if err := decodeRecord(record, &row); err != nil {
		return Listing{}, err
	}
	return ListingFromRow(row), nil
}

// ListingDraft is the create/edit form of a listing.
type ListingDraft struct {
	Title       string
	Price       float64
	Category    string
	Year        int
	Mileage     *int
	Color       string
	Condition   int
	Description string
	SellerType  string
	Status      string
	Location    string
	Images      []string
}

// Validate applies the server's listing rules before any request is made.
func (d ListingDraft) Validate(now time.Time) error {
	return domainlistings.Details{
		Title:       d.Title,
		PriceCents:  unitsToCents(d.Price),
		Category:    domainlistings.Category(strings.ToLower(strings.TrimSpace(d.Category))),
		Year:        d.Year,
		Mileage:     d.Mileage,
		Color:       d.Color,
		Condition:   d.Condition,
		Description: d.Description,
		SellerType:  domainlistings.SellerType(d.SellerType),
		Status:      domainlistings.Status(d.Status),
		Location:    d.Location,
		Images:      d.Images,
	}.Validate(now)
}

// ListingDraftRow is the wire body of listing create and update.
type ListingDraftRow struct {
	Title       string   `json:"title"`
	PriceCents  int64    `json:"price_cents"`
	Category    string   `json:"category"`
	Year        int      `json:"year,omitempty"`
	Mileage     *int     `json:"mileage,omitempty"`
	Color       string   `json:"color,omitempty"`
	Condition   int      `json:"condition"`
	Description string   `json:"description,omitempty"`
	SellerType  string   `json:"seller_type,omitempty"`
	Status      string   `json:"status,omitempty"`
	Location    string   `json:"location"`
	Images      []string `json:"images,omitempty"`
}

func (d ListingDraft) Row() ListingDraftRow {
	return ListingDraftRow{
		Title:       strings.TrimSpace(d.Title),
		PriceCents:  unitsToCents(d.Price),
		Category:    d.Category,
		Year:        d.Year,
		Mileage:     d.Mileage,
		Color:       d.Color,
		Condition:   d.Condition,
		Description: d.Description,
		SellerType:  d.SellerType,
		Status:      d.Status,
		Location:    d.Location,
		Images:      d.Images,
	}
}
