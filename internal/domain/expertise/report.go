package expertise

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	ErrIDRequired        = errors.New("expertise: id is required")
	ErrListingRequired   = errors.New("expertise: listing is required")
	ErrMechanicRequired  = errors.New("expertise: mechanic is required")
	ErrNoCategories      = errors.New("expertise: at least one category must be scored")
	ErrUnknownCategory   = errors.New("expertise: unknown category")
	ErrDuplicateCategory = errors.New("expertise: category scored twice")
	ErrScoreRange        = errors.New("expertise: score must be between 0 and 10")
	ErrSignatory         = errors.New("expertise: signatory name is required")
	ErrNotFound          = errors.New("expertise: report not found")
)

type ReportID string

type CategoryScore struct {
	Key   CategoryKey
	Score float64
	Notes string
}

type VehicleInfo struct {
	Make     string
	Model    string
	Year     int
	Mileage  int
	VIN      string
	Plate    string
	FuelType string
}

type Signatory struct {
	Name string
	Shop string
	Date time.Time
}

type Report struct {
	ID              ReportID
	ListingID       string
	MechanicID      string
	Vehicle         VehicleInfo
	Categories      []CategoryScore
	Recommendations []string
	Signatory       Signatory
	Score           float64
	Grade           Grade
	PDFURL          string
	CreatedAt       time.Time
}

type Repository interface {
	Save(ctx context.Context, report *Report) error
	ByID(ctx context.Context, id ReportID) (*Report, error)
	ListByListing(ctx context.Context, listingID string) ([]*Report, error)
	ListByMechanic(ctx context.Context, mechanicID string) ([]*Report, error)
}

type CreateParams struct {
	ID              ReportID
	ListingID       string
	MechanicID      string
	Vehicle         VehicleInfo
	Categories      []CategoryScore
	Recommendations []string
	Signatory       Signatory
	Now             time.Time
}

// NewReport validates the inspection and computes score, grade and recommendations.
func NewReport(params CreateParams) (*Report, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(params.ListingID) == "" {
		return nil, ErrListingRequired
	}
	if strings.TrimSpace(params.MechanicID) == "" {
		return nil, ErrMechanicRequired
	}
	categories, err := normalizeCategories(params.Categories)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.Signatory.Name) == "" {
		return nil, ErrSignatory
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	signatory := Signatory{
		Name: strings.TrimSpace(params.Signatory.Name),
		Shop: strings.TrimSpace(params.Signatory.Shop),
		Date: params.Signatory.Date,
	}
	if signatory.Date.IsZero() {
		signatory.Date = now
	}
	score := Score(categories)
	return &Report{
		ID:              params.ID,
		ListingID:       strings.TrimSpace(params.ListingID),
		MechanicID:      strings.TrimSpace(params.MechanicID),
		Vehicle:         params.Vehicle,
		Categories:      categories,
		Recommendations: Recommendations(categories, params.Recommendations),
		Signatory:       signatory,
		Score:           score,
		Grade:           GradeFor(score),
		CreatedAt:       now,
	}, nil
}

// Score is the weighted average of the scored categories, weights
// renormalized over those present, rounded to one decimal.
func Score(categories []CategoryScore) float64 {
	var sum, total float64
	for _, c := range categories {
		w := Weight(c.Key)
		if w == 0 {
			continue
		}
		sum += c.Score * w
		total += w
	}
	if total == 0 {
		return 0
	}
	return math.Round(sum/total*10) / 10
}

// Recommendations lists one entry per category under the threshold, followed
// by the free-text ones.
func Recommendations(categories []CategoryScore, extra []string) []string {
	out := make([]string, 0, len(categories)+len(extra))
	for _, c := range categories {
		if c.Score >= recommendationThreshold {
			continue
		}
		line := fmt.Sprintf("%s : note %.1f/10, intervention recommandée", Label(c.Key), c.Score)
		if notes := strings.TrimSpace(c.Notes); notes != "" {
			line += " (" + notes + ")"
		}
		out = append(out, line)
	}
	for _, r := range extra {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// AttachPDF records where the rendered document was stored.
func (r *Report) AttachPDF(url string) {
	r.PDFURL = strings.TrimSpace(url)
}

func normalizeCategories(values []CategoryScore) ([]CategoryScore, error) {
	if len(values) == 0 {
		return nil, ErrNoCategories
	}
	byKey := make(map[CategoryKey]CategoryScore, len(values))
	for _, v := range values {
		key, ok := ParseCategory(string(v.Key))
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, v.Key)
		}
		if _, dup := byKey[key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCategory, key)
		}
		if v.Score < 0 || v.Score > 10 || math.IsNaN(v.Score) {
			return nil, fmt.Errorf("%w: %s", ErrScoreRange, key)
		}
		byKey[key] = CategoryScore{Key: key, Score: v.Score, Notes: strings.TrimSpace(v.Notes)}
	}
	out := make([]CategoryScore, 0, len(byKey))
	for _, key := range Taxonomy {
		if c, ok := byKey[key]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// IsValidation reports whether err comes from report input.
func IsValidation(err error) bool {
	switch {
	case errors.Is(err, ErrListingRequired),
		errors.Is(err, ErrNoCategories),
		errors.Is(err, ErrUnknownCategory),
		errors.Is(err, ErrDuplicateCategory),
		errors.Is(err, ErrScoreRange),
		errors.Is(err, ErrSignatory):
		return true
	}
	return false
}
