package mongo

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	domainlistings "autoparc/internal/domain/listings"
)

func TestSearchFilterTranslatesParams(t *testing.T) {
	params := domainlistings.SearchParams{
		Categories:    []domainlistings.Category{"CAR", "moto", "bogus"},
		Query:         "Clio rouge",
		PriceMinCents: 100000,
		YearMax:       2020,
	}.Normalized()

	filter := searchFilter(params)

	cat, ok := filter["category"].(bson.M)
	if !ok {
		t.Fatalf("expected category filter, got %v", filter["category"])
	}
	if values := cat["$in"].([]string); len(values) != 2 || values[0] != "car" || values[1] != "moto" {
		t.Fatalf("expected [car moto], got %v", values)
	}
	price := filter["price_cents"].(bson.M)
	if price["$gte"] != int64(100000) {
		t.Fatalf("expected min price bound, got %v", price)
	}
	if _, ok := price["$lte"]; ok {
		t.Fatalf("expected no max price bound, got %v", price)
	}
	if year := filter["year"].(bson.M); year["$lte"] != int64(2020) {
		t.Fatalf("expected year upper bound, got %v", year)
	}
	if and := filter["$and"].([]bson.M); len(and) != 2 {
		t.Fatalf("expected one clause per query token, got %d", len(and))
	}
}

func TestSearchSortPutsBoostedFirstByDefault(t *testing.T) {
	sort := searchSort("")
	if len(sort) == 0 || sort[0].Key != "is_boosted" || sort[0].Value != -1 {
		t.Fatalf("expected boosted first, got %v", sort)
	}
	if s := searchSort(domainlistings.SortPriceAsc); s[0].Key != "price_cents" || s[0].Value != 1 {
		t.Fatalf("expected price ascending, got %v", s)
	}
}

func TestContainsRegexEscapesInput(t *testing.T) {
	re := containsRegex("a+b")
	if re["$regex"] != `a\+b` {
		t.Fatalf("expected escaped pattern, got %v", re["$regex"])
	}
}
