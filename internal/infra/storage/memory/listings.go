package memory

import (
	"context"
	"sort"
	"sync"

	domainlistings "autoparc/internal/domain/listings"
)

// ListingRepository keeps listings in memory.
type ListingRepository struct {
	mu    sync.RWMutex
	items map[domainlistings.ListingID]*domainlistings.Listing
}

func NewListingRepository() *ListingRepository {
	return &ListingRepository{items: make(map[domainlistings.ListingID]*domainlistings.Listing)}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	listing, ok := r.items[id]
	if !ok {
		return nil, domainlistings.ErrNotFound
	}
	return cloneListing(listing), nil
}

func (r *ListingRepository) Save(ctx context.Context, listing *domainlistings.Listing) error {
	if listing == nil || listing.ID == "" {
		return domainlistings.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[listing.ID] = cloneListing(listing)
	return nil
}

func (r *ListingRepository) Delete(ctx context.Context, id domainlistings.ListingID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return domainlistings.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

// Search filters with SearchParams.Matches and orders with SearchParams.Less.
func (r *ListingRepository) Search(ctx context.Context, params domainlistings.SearchParams) (domainlistings.SearchResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	opts := params.Normalized()
	matches := make([]*domainlistings.Listing, 0, len(r.items))
	for _, listing := range r.items {
		if err := ctx.Err(); err != nil {
			return domainlistings.SearchResult{}, err
		}
		if opts.Matches(listing) {
			matches = append(matches, listing)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return opts.Less(matches[i], matches[j]) })

	total := len(matches)
	start := opts.Offset
	if start > total {
		start = total
	}
	end := start + opts.Limit
	if end > total {
		end = total
	}
	items := make([]*domainlistings.Listing, 0, end-start)
	for _, l := range matches[start:end] {
		items = append(items, cloneListing(l))
	}
	return domainlistings.SearchResult{Items: items, Total: total}, nil
}

func cloneListing(l *domainlistings.Listing) *domainlistings.Listing {
	if l == nil {
		return nil
	}
	out := &domainlistings.Listing{
		ID:          l.ID,
		Title:       l.Title,
		PriceCents:  l.PriceCents,
		Category:    l.Category,
		Images:      append([]string(nil), l.Images...),
		Year:        l.Year,
		Color:       l.Color,
		Condition:   l.Condition,
		Description: l.Description,
		SellerID:    l.SellerID,
		SellerType:  l.SellerType,
		Status:      l.Status,
		Location:    l.Location,
		IsBoosted:   l.IsBoosted,
		BoostedAt:   l.BoostedAt,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
	if l.Mileage != nil {
		m := *l.Mileage
		out.Mileage = &m
	}
	return out
}

var _ domainlistings.Repository = (*ListingRepository)(nil)
