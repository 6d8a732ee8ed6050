package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainexpertise "autoparc/internal/domain/expertise"
)

type ReportRepository struct {
	col *mongo.Collection
}

func NewReportRepository(ctx context.Context, db *mongo.Database) (*ReportRepository, error) {
	col := db.Collection("expertise_reports")
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "mechanic_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return nil, err
	}
	return &ReportRepository{col: col}, nil
}

func (r *ReportRepository) Save(ctx context.Context, report *domainexpertise.Report) error {
	if report == nil || report.ID == "" {
		return domainexpertise.ErrIDRequired
	}
	doc := newReportDocument(report)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *ReportRepository) ByID(ctx context.Context, id domainexpertise.ReportID) (*domainexpertise.Report, error) {
	var doc reportDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainexpertise.ErrNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *ReportRepository) ListByListing(ctx context.Context, listingID string) ([]*domainexpertise.Report, error) {
	return r.list(ctx, bson.M{"listing_id": listingID})
}

func (r *ReportRepository) ListByMechanic(ctx context.Context, mechanicID string) ([]*domainexpertise.Report, error) {
	return r.list(ctx, bson.M{"mechanic_id": mechanicID})
}

func (r *ReportRepository) list(ctx context.Context, filter bson.M) ([]*domainexpertise.Report, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []reportDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainexpertise.Report, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

type reportDocument struct {
	ID              string             `bson:"_id"`
	ListingID       string             `bson:"listing_id"`
	MechanicID      string             `bson:"mechanic_id"`
	Vehicle         vehicleDocument    `bson:"vehicle"`
	Categories      []categoryDocument `bson:"categories"`
	Recommendations []string           `bson:"recommendations"`
	Signatory       signatoryDocument  `bson:"signatory"`
	Score           float64            `bson:"score"`
	Grade           string             `bson:"grade"`
	PDFURL          string             `bson:"pdf_url,omitempty"`
	CreatedAt       time.Time          `bson:"created_at"`
}

type vehicleDocument struct {
	Make     string `bson:"make"`
	Model    string `bson:"model"`
	Year     int    `bson:"year"`
	Mileage  int    `bson:"mileage"`
	VIN      string `bson:"vin,omitempty"`
	Plate    string `bson:"plate,omitempty"`
	FuelType string `bson:"fuel_type,omitempty"`
}

type categoryDocument struct {
	Key   string  `bson:"key"`
	Score float64 `bson:"score"`
	Notes string  `bson:"notes,omitempty"`
}

type signatoryDocument struct {
	Name string    `bson:"name"`
	Shop string    `bson:"shop,omitempty"`
	Date time.Time `bson:"date"`
}

func newReportDocument(r *domainexpertise.Report) reportDocument {
	categories := make([]categoryDocument, 0, len(r.Categories))
	for _, c := range r.Categories {
		categories = append(categories, categoryDocument{Key: string(c.Key), Score: c.Score, Notes: c.Notes})
	}
	return reportDocument{
		ID:         string(r.ID),
		ListingID:  r.ListingID,
		MechanicID: r.MechanicID,
		Vehicle: vehicleDocument{
			Make:     r.Vehicle.Make,
			Model:    r.Vehicle.Model,
			Year:     r.Vehicle.Year,
			Mileage:  r.Vehicle.Mileage,
			VIN:      r.Vehicle.VIN,
			Plate:    r.Vehicle.Plate,
			FuelType: r.Vehicle.FuelType,
		},
		Categories:      categories,
		Recommendations: r.Recommendations,
		Signatory:       signatoryDocument{Name: r.Signatory.Name, Shop: r.Signatory.Shop, Date: r.Signatory.Date},
		Score:           r.Score,
		Grade:           string(r.Grade),
		PDFURL:          r.PDFURL,
		CreatedAt:       r.CreatedAt,
	}
}

func (d reportDocument) toDomain() *domainexpertise.Report {
	categories := make([]domainexpertise.CategoryScore, 0, len(d.Categories))
	for _, c := range d.Categories {
		categories = append(categories, domainexpertise.CategoryScore{
			Key:   domainexpertise.CategoryKey(c.Key),
			Score: c.Score,
			Notes: c.Notes,
		})
	}
	return &domainexpertise.Report{
		ID:         domainexpertise.ReportID(d.ID),
		ListingID:  d.ListingID,
		MechanicID: d.MechanicID,
		Vehicle: domainexpertise.VehicleInfo{
			Make:     d.Vehicle.Make,
			Model:    d.Vehicle.Model,
			Year:     d.Vehicle.Year,
			Mileage:  d.Vehicle.Mileage,
			VIN:      d.Vehicle.VIN,
			Plate:    d.Vehicle.Plate,
			FuelType: d.Vehicle.FuelType,
		},
		Categories:      categories,
		Recommendations: d.Recommendations,
		Signatory: domainexpertise.Signatory{
			Name: d.Signatory.Name,
			Shop: d.Signatory.Shop,
			Date: d.Signatory.Date.UTC(),
		},
		Score:     d.Score,
		Grade:     domainexpertise.Grade(d.Grade),
		PDFURL:    d.PDFURL,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

var _ domainexpertise.Repository = (*ReportRepository)(nil)
