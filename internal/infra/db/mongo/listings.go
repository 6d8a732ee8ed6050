package mongo

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlistings "autoparc/internal/domain/listings"
)

type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(ctx context.Context, db *mongo.Database) (*ListingRepository, error) {
	col := db.Collection("listings")
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "seller_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "is_boosted", Value: -1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "price_cents", Value: 1}}},
	})
	if err != nil {
		return nil, err
	}
	return &ListingRepository{col: col}, nil
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainlistings.ErrNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *ListingRepository) Save(ctx context.Context, listing *domainlistings.Listing) error {
	if listing == nil || listing.ID == "" {
		return domainlistings.ErrIDRequired
	}
	doc := newListingDocument(listing)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *ListingRepository) Delete(ctx context.Context, id domainlistings.ListingID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domainlistings.ErrNotFound
	}
	return nil
}

// Search translates SearchParams into a filter and sort. Ordering mirrors
// SearchParams.Less so every store pages the catalog the same way.
func (r *ListingRepository) Search(ctx context.Context, params domainlistings.SearchParams) (domainlistings.SearchResult, error) {
	opts := params.Normalized()
	filter := searchFilter(opts)
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return domainlistings.SearchResult{}, err
	}
	findOpts := options.Find().
		SetSort(searchSort(opts.Sort)).
		SetSkip(int64(opts.Offset)).
		SetLimit(int64(opts.Limit))
	cur, err := r.col.Find(ctx, filter, findOpts)
	if err != nil {
		return domainlistings.SearchResult{}, err
	}
	var docs []listingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return domainlistings.SearchResult{}, err
	}
	items := make([]*domainlistings.Listing, 0, len(docs))
	for _, d := range docs {
		items = append(items, d.toDomain())
	}
	return domainlistings.SearchResult{Items: items, Total: int(total)}, nil
}

func searchFilter(p domainlistings.SearchParams) bson.M {
	filter := bson.M{}
	if p.SellerID != "" {
		filter["seller_id"] = string(p.SellerID)
	}
	if len(p.Categories) > 0 {
		values := make([]string, 0, len(p.Categories))
		for _, c := range p.Categories {
			values = append(values, string(c))
		}
		filter["category"] = bson.M{"$in": values}
	}
	if len(p.Statuses) > 0 {
		values := make([]string, 0, len(p.Statuses))
		for _, s := range p.Statuses {
			values = append(values, string(s))
		}
		filter["status"] = bson.M{"$in": values}
	}
	if p.BoostedOnly {
		filter["is_boosted"] = true
	}
	if price := rangeFilter(p.PriceMinCents, p.PriceMaxCents); price != nil {
		filter["price_cents"] = price
	}
	if year := rangeFilter(int64(p.YearMin), int64(p.YearMax)); year != nil {
		filter["year"] = year
	}
	if p.Location != "" {
		filter["location"] = containsRegex(p.Location)
	}
	if p.Query != "" {
		var and []bson.M
		for _, token := range strings.Fields(p.Query) {
			re := containsRegex(token)
			and = append(and, bson.M{"$or": []bson.M{
				{"title": re},
				{"description": re},
				{"location": re},
				{"color": re},
			}})
		}
		filter["$and"] = and
	}
	return filter
}

func rangeFilter(min, max int64) bson.M {
	out := bson.M{}
	if min > 0 {
		out["$gte"] = min
	}
	if max > 0 {
		out["$lte"] = max
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func containsRegex(value string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(value), "$options": "i"}
}

func searchSort(mode domainlistings.CatalogSort) bson.D {
	tail := bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}
	switch mode {
	case domainlistings.SortPriceAsc:
		return append(bson.D{{Key: "price_cents", Value: 1}}, tail...)
	case domainlistings.SortPriceDesc:
		return append(bson.D{{Key: "price_cents", Value: -1}}, tail...)
	case domainlistings.SortYearDesc:
		return append(bson.D{{Key: "year", Value: -1}}, tail...)
	case domainlistings.SortNewest:
		return tail
	default:
		return append(bson.D{{Key: "is_boosted", Value: -1}}, tail...)
	}
}

type listingDocument struct {
	ID          string    `bson:"_id"`
	Title       string    `bson:"title"`
	PriceCents  int64     `bson:"price_cents"`
	Category    string    `bson:"category"`
	Images      []string  `bson:"images"`
	Year        int       `bson:"year"`
	Mileage     *int      `bson:"mileage,omitempty"`
	Color       string    `bson:"color,omitempty"`
	Condition   int       `bson:"condition"`
	Description string    `bson:"description,omitempty"`
	SellerID    string    `bson:"seller_id"`
	SellerType  string    `bson:"seller_type"`
	Status      string    `bson:"status"`
	Location    string    `bson:"location"`
	IsBoosted   bool      `bson:"is_boosted"`
	BoostedAt   time.Time `bson:"boosted_at,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func newListingDocument(l *domainlistings.Listing) listingDocument {
	images := l.Images
	if images == nil {
		images = []string{}
	}
	return listingDocument{
		ID:          string(l.ID),
		Title:       l.Title,
		PriceCents:  l.PriceCents,
		Category:    string(l.Category),
		Images:      images,
		Year:        l.Year,
		Mileage:     l.Mileage,
		Color:       l.Color,
		Condition:   l.Condition,
		Description: l.Description,
		SellerID:    string(l.SellerID),
		SellerType:  string(l.SellerType),
		Status:      string(l.Status),
		Location:    l.Location,
		IsBoosted:   l.IsBoosted,
		BoostedAt:   l.BoostedAt,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func (d listingDocument) toDomain() *domainlistings.Listing {
	l := &domainlistings.Listing{
		ID:          domainlistings.ListingID(d.ID),
		Title:       d.Title,
		PriceCents:  d.PriceCents,
		Category:    domainlistings.Category(d.Category),
		Images:      d.Images,
		Year:        d.Year,
		Mileage:     d.Mileage,
		Color:       d.Color,
		Condition:   d.Condition,
		Description: d.Description,
		SellerID:    domainlistings.SellerID(d.SellerID),
		SellerType:  domainlistings.SellerType(d.SellerType),
		Status:      domainlistings.Status(d.Status),
		Location:    d.Location,
		IsBoosted:   d.IsBoosted,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
	if !d.BoostedAt.IsZero() {
		l.BoostedAt = d.BoostedAt.UTC()
	}
	return l
}

var _ domainlistings.Repository = (*ListingRepository)(nil)
