package listings

import (
	"strings"
)

// CatalogSort defines a supported ordering.
type CatalogSort string

const (
	SortBoosted   CatalogSort = "boosted"
	SortPriceAsc  CatalogSort = "price_asc"
	SortPriceDesc CatalogSort = "price_desc"
	SortNewest    CatalogSort = "newest"
	SortYearDesc  CatalogSort = "year_desc"

	defaultSearchLimit = 24
	maxSearchLimit     = 100
)

// SearchParams describe catalog filters and paging options.
type SearchParams struct {
	Categories    []Category
	SellerID      SellerID
	Query         string
	Location      string
	PriceMinCents int64
	PriceMaxCents int64
	YearMin       int
	YearMax       int
	Statuses      []Status
	BoostedOnly   bool
	Sort          CatalogSort
	Limit         int
	Offset        int
}

// SearchResult wraps search hits with meta.
type SearchResult struct {
	Items []*Listing
	Total int
}

// Normalized returns a sanitized copy of params.
func (p SearchParams) Normalized() SearchParams {
	n := p
	n.Query = strings.TrimSpace(strings.ToLower(n.Query))
	n.Location = strings.TrimSpace(strings.ToLower(n.Location))
	n.SellerID = SellerID(strings.TrimSpace(string(n.SellerID)))
	n.Categories = normalizeCategories(n.Categories)
	n.Statuses = normalizeStatuses(n.Statuses)
	if n.PriceMinCents < 0 {
		n.PriceMinCents = 0
	}
	if n.PriceMaxCents > 0 && n.PriceMaxCents < n.PriceMinCents {
		n.PriceMaxCents = 0
	}
	if n.YearMin < 0 {
		n.YearMin = 0
	}
	if n.YearMax > 0 && n.YearMax < n.YearMin {
		n.YearMax = 0
	}
	if n.Limit <= 0 {
		n.Limit = defaultSearchLimit
	}
	if n.Limit > maxSearchLimit {
		n.Limit = maxSearchLimit
	}
	if n.Offset < 0 {
		n.Offset = 0
	}
	switch n.Sort {
	case SortBoosted, SortPriceAsc, SortPriceDesc, SortNewest, SortYearDesc:
	default:
		n.Sort = SortBoosted
	}
	return n
}

// Matches reports whether the listing satisfies normalized params.
func (p SearchParams) Matches(l *Listing) bool {
	if l == nil {
		return false
	}
	if p.SellerID != "" && l.SellerID != p.SellerID {
		return false
	}
	if len(p.Categories) > 0 && !containsCategory(p.Categories, l.Category) {
		return false
	}
	if len(p.Statuses) > 0 && !containsStatus(p.Statuses, l.Status) {
		return false
	}
	if p.BoostedOnly && !l.IsBoosted {
		return false
	}
	if p.PriceMinCents > 0 && l.PriceCents < p.PriceMinCents {
		return false
	}
	if p.PriceMaxCents > 0 && l.PriceCents > p.PriceMaxCents {
		return false
	}
	if p.YearMin > 0 && l.Year < p.YearMin {
		return false
	}
	if p.YearMax > 0 && l.Year > p.YearMax {
		return false
	}
	if p.Location != "" && !strings.Contains(strings.ToLower(l.Location), p.Location) {
		return false
	}
	if p.Query != "" {
		haystack := strings.ToLower(strings.Join([]string{l.Title, l.Description, l.Location, l.Color}, " "))
		for _, token := range strings.Fields(p.Query) {
			if !strings.Contains(haystack, token) {
				return false
			}
		}
	}
	return true
}

// Less orders two listings according to the sort mode.
func (p SearchParams) Less(a, b *Listing) bool {
	switch p.Sort {
	case SortPriceAsc:
		if a.PriceCents != b.PriceCents {
			return a.PriceCents < b.PriceCents
		}
	case SortPriceDesc:
		if a.PriceCents != b.PriceCents {
			return a.PriceCents > b.PriceCents
		}
	case SortYearDesc:
		if a.Year != b.Year {
			return a.Year > b.Year
		}
	case SortNewest:
	default:
		if a.IsBoosted != b.IsBoosted {
			return a.IsBoosted
		}
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}

func normalizeCategories(values []Category) []Category {
	if len(values) == 0 {
		return nil
	}
	out := make([]Category, 0, len(values))
	for _, v := range values {
		c, ok := ParseCategory(string(v))
		if !ok || containsCategory(out, c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func normalizeStatuses(values []Status) []Status {
	if len(values) == 0 {
		return nil
	}
	out := make([]Status, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(string(v)) == "" {
			continue
		}
		s, ok := ParseStatus(string(v))
		if !ok || containsStatus(out, s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func containsCategory(values []Category, target Category) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func containsStatus(values []Status, target Status) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
