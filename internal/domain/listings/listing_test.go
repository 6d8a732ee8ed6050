package listings

import (
	"errors"
	"testing"
	"time"
)

func validDetails() Details {
	mileage := 84000
	return Details{
		Title:      "Peugeot 308 SW",
		PriceCents: 1290000,
		Category:   CategoryCar,
		Year:       2019,
		Mileage:    &mileage,
		Color:      "gris",
		Condition:  8,
		SellerType: SellerIndividual,
		Status:     StatusUsed,
		Location:   "Lyon",
	}
}

func TestNewListingValidates(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cases := map[string]struct {
		mutate func(*Details)
		want   error
	}{
		"title":     {func(d *Details) { d.Title = "  " }, ErrTitleRequired},
		"price":     {func(d *Details) { d.PriceCents = 0 }, ErrPrice},
		"category":  {func(d *Details) { d.Category = "boat" }, ErrCategory},
		"condition": {func(d *Details) { d.Condition = 11 }, ErrCondition},
		"year":      {func(d *Details) { d.Year = 2031 }, ErrYear},
		"mileage":   {func(d *Details) { m := -1; d.Mileage = &m }, ErrMileage},
		"status":    {func(d *Details) { d.Status = "broken" }, ErrStatus},
		"location":  {func(d *Details) { d.Location = "" }, ErrLocationRequired},
	}
	for name, tc := range cases {
		d := validDetails()
		tc.mutate(&d)
		_, err := NewListing(CreateListingParams{ID: "l1", SellerID: "s1", Details: d, Now: now})
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", name, tc.want, err)
		}
		if !IsValidation(err) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestNewListingRecordsCreatedEvent(t *testing.T) {
	l, err := NewListing(CreateListingParams{ID: "l1", SellerID: "s1", Details: validDetails()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	evs := l.DrainEvents()
	if len(evs) != 1 || evs[0].EventName() != EventCreated {
		t.Fatalf("expected a single created event, got %v", evs)
	}
	if len(l.PendingEvents()) != 0 {
		t.Fatalf("expected events drained")
	}
}

func TestBoostIsIdempotent(t *testing.T) {
	l, err := NewListing(CreateListingParams{ID: "l1", SellerID: "s1", Details: validDetails()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l.DrainEvents()

	first := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	l.Boost(first)
	l.Boost(first.Add(time.Hour))

	if !l.IsBoosted {
		t.Fatalf("expected listing boosted")
	}
	if !l.BoostedAt.Equal(first) {
		t.Fatalf("expected boostedAt to keep the first boost, got %v", l.BoostedAt)
	}
	if got := len(l.DrainEvents()); got != 1 {
		t.Fatalf("expected one boost event, got %d", got)
	}
}

func TestAddImageKeepsOrderAndDeduplicates(t *testing.T) {
	l, _ := NewListing(CreateListingParams{ID: "l1", SellerID: "s1", Details: validDetails()})
	for _, url := range []string{"a.jpg", "b.jpg", "a.jpg"} {
		if err := l.AddImage(url, time.Now()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(l.Images) != 2 || l.Images[0] != "a.jpg" || l.Images[1] != "b.jpg" {
		t.Fatalf("unexpected images %v", l.Images)
	}
	if !l.RemoveImage("a.jpg", time.Now()) || l.Cover() != "b.jpg" {
		t.Fatalf("expected b.jpg as cover after removal, got %v", l.Images)
	}
}

func TestSearchOrdersBoostedFirst(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	older := &Listing{ID: "a", IsBoosted: true, CreatedAt: base}
	newer := &Listing{ID: "b", CreatedAt: base.Add(time.Hour)}
	params := SearchParams{}.Normalized()
	if !params.Less(older, newer) {
		t.Fatalf("expected boosted listing first")
	}
	params.Sort = SortNewest
	if !params.Less(newer, older) {
		t.Fatalf("expected newest first")
	}
}

func TestSearchMatchesTextTokens(t *testing.T) {
	l := &Listing{Title: "Yamaha MT-07", Description: "Entretien à jour", Location: "Nantes", Category: CategoryMoto, PriceCents: 500000}
	params := SearchParams{Query: "yamaha nantes", Categories: []Category{"MOTO"}}.Normalized()
	if !params.Matches(l) {
		t.Fatalf("expected match")
	}
	params = SearchParams{Query: "yamaha paris"}.Normalized()
	if params.Matches(l) {
		t.Fatalf("expected no match")
	}
}
