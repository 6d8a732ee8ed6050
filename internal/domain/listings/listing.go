package listings

import (
	"context"
	"errors"
	"strings"
	"time"

	"autoparc/internal/domain/shared/events"
)

var (
	ErrIDRequired       = errors.New("listings: id is required")
	ErrSellerRequired   = errors.New("listings: seller is required")
	ErrTitleRequired    = errors.New("listings: title is required")
	ErrPrice            = errors.New("listings: price must be positive")
	ErrCategory         = errors.New("listings: unknown category")
	ErrSellerType       = errors.New("listings: seller type must be individual or pro")
	ErrStatus           = errors.New("listings: status must be new, used or imported")
	ErrCondition        = errors.New("listings: condition must be between 1 and 10")
	ErrYear             = errors.New("listings: year is out of range")
	ErrMileage          = errors.New("listings: mileage must be non-negative")
	ErrImageURL         = errors.New("listings: image url is required")
	ErrTooManyImages    = errors.New("listings: too many images")
	ErrNotFound         = errors.New("listings: not found")
	ErrLocationRequired = errors.New("listings: location is required")
)

const MaxImages = 20

type ListingID string
type SellerID string

type Category string

const (
	CategoryCar       Category = "car"
	CategoryMoto      Category = "moto"
	CategoryAccessory Category = "accessory"
	CategoryMechanic  Category = "mechanic"
)

type SellerType string

const (
	SellerIndividual SellerType = "individual"
	SellerPro        SellerType = "pro"
)

type Status string

const (
	StatusNew      Status = "new"
	StatusUsed     Status = "used"
	StatusImported Status = "imported"
)

type Listing struct {
	ID          ListingID
	Title       string
	PriceCents  int64
	Category    Category
	Images      []string
	Year        int
	Mileage     *int
	Color       string
	Condition   int
	Description string
	SellerID    SellerID
	SellerType  SellerType
	Status      Status
	Location    string
	IsBoosted   bool
	BoostedAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
	Save(ctx context.Context, listing *Listing) error
	Delete(ctx context.Context, id ListingID) error
	Search(ctx context.Context, params SearchParams) (SearchResult, error)
}

// Details carries the mutable attributes shared by create and update.
type Details struct {
	Title       string
	PriceCents  int64
	Category    Category
	Year        int
	Mileage     *int
	Color       string
	Condition   int
	Description string
	SellerType  SellerType
	Status      Status
	Location    string
	Images      []string
}

type CreateListingParams struct {
	ID       ListingID
	SellerID SellerID
	Details  Details
	Now      time.Time
}

func NewListing(params CreateListingParams) (*Listing, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(string(params.SellerID)) == "" {
		return nil, ErrSellerRequired
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	details, err := params.Details.normalized(now)
	if err != nil {
		return nil, err
	}
	listing := &Listing{
		ID:        params.ID,
		SellerID:  params.SellerID,
		CreatedAt: now.UTC(),
	}
	listing.apply(details, now)
	listing.Record(events.Named{Name: EventCreated, Aggregate: string(listing.ID), Time: listing.CreatedAt})
	return listing, nil
}

// UpdateDetails replaces every mutable attribute after validation.
func (l *Listing) UpdateDetails(details Details, now time.Time) error {
	if now.IsZero() {
		now = time.Now()
	}
	normalized, err := details.normalized(now)
	if err != nil {
		return err
	}
	l.apply(normalized, now)
	l.Record(events.Named{Name: EventUpdated, Aggregate: string(l.ID), Time: l.UpdatedAt})
	return nil
}

// Boost flags the listing as highlighted. Boosting twice is a no-op.
func (l *Listing) Boost(now time.Time) {
	if l.IsBoosted {
		return
	}
	if now.IsZero() {
		now = time.Now()
	}
	l.IsBoosted = true
	l.BoostedAt = now.UTC()
	l.UpdatedAt = now.UTC()
	l.Record(events.Named{Name: EventBoosted, Aggregate: string(l.ID), Time: l.UpdatedAt})
}

func (l *Listing) Unboost(now time.Time) {
	if !l.IsBoosted {
		return
	}
	if now.IsZero() {
		now = time.Now()
	}
	l.IsBoosted = false
	l.BoostedAt = time.Time{}
	l.UpdatedAt = now.UTC()
	l.Record(events.Named{Name: EventUpdated, Aggregate: string(l.ID), Time: l.UpdatedAt})
}

// AddImage appends a stored image URL keeping order and uniqueness.
func (l *Listing) AddImage(url string, now time.Time) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return ErrImageURL
	}
	for _, existing := range l.Images {
		if existing == url {
			return nil
		}
	}
	if len(l.Images) >= MaxImages {
		return ErrTooManyImages
	}
	l.Images = append(l.Images, url)
	l.touch(now)
	l.Record(events.Named{Name: EventUpdated, Aggregate: string(l.ID), Time: l.UpdatedAt})
	return nil
}

func (l *Listing) RemoveImage(url string, now time.Time) bool {
	url = strings.TrimSpace(url)
	for i, existing := range l.Images {
		if existing != url {
			continue
		}
		l.Images = append(l.Images[:i:i], l.Images[i+1:]...)
		l.touch(now)
		l.Record(events.Named{Name: EventUpdated, Aggregate: string(l.ID), Time: l.UpdatedAt})
		return true
	}
	return false
}

// MarkDeleted records the deletion event; the repository removes the row.
func (l *Listing) MarkDeleted(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	l.Record(events.Named{Name: EventDeleted, Aggregate: string(l.ID), Time: now.UTC()})
}

// Cover returns the first image, used as thumbnail.
func (l *Listing) Cover() string {
	if len(l.Images) == 0 {
		return ""
	}
	return l.Images[0]
}

func (l *Listing) apply(d Details, now time.Time) {
	l.Title = d.Title
	l.PriceCents = d.PriceCents
	l.Category = d.Category
	l.Year = d.Year
	l.Mileage = d.Mileage
	l.Color = d.Color
	l.Condition = d.Condition
	l.Description = d.Description
	l.SellerType = d.SellerType
	l.Status = d.Status
	l.Location = d.Location
	if d.Images != nil {
		l.Images = d.Images
	}
	l.touch(now)
}

func (l *Listing) touch(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	l.UpdatedAt = now.UTC()
}

// Validate checks d the same way create and update do, without keeping the
// normalized result.
func (d Details) Validate(now time.Time) error {
	_, err := d.normalized(now)
	return err
}

func (d Details) normalized(now time.Time) (Details, error) {
	out := d
	out.Title = strings.TrimSpace(d.Title)
	out.Description = strings.TrimSpace(d.Description)
	out.Color = strings.TrimSpace(d.Color)
	out.Location = strings.TrimSpace(d.Location)
	if out.Title == "" {
		return Details{}, ErrTitleRequired
	}
	if out.PriceCents <= 0 {
		return Details{}, ErrPrice
	}
	category, ok := ParseCategory(string(d.Category))
	if !ok {
		return Details{}, ErrCategory
	}
	out.Category = category
	sellerType, ok := ParseSellerType(string(d.SellerType))
	if !ok {
		return Details{}, ErrSellerType
	}
	out.SellerType = sellerType
	status, ok := ParseStatus(string(d.Status))
	if !ok {
		return Details{}, ErrStatus
	}
	out.Status = status
	if out.Condition < 1 || out.Condition > 10 {
		return Details{}, ErrCondition
	}
	if out.Category == CategoryCar || out.Category == CategoryMoto {
		if out.Year < 1900 || out.Year > now.Year()+1 {
			return Details{}, ErrYear
		}
	} else if out.Year != 0 && (out.Year < 1900 || out.Year > now.Year()+1) {
		return Details{}, ErrYear
	}
	if out.Mileage != nil {
		if *out.Mileage < 0 {
			return Details{}, ErrMileage
		}
		mileage := *out.Mileage
		out.Mileage = &mileage
	}
	if out.Location == "" {
		return Details{}, ErrLocationRequired
	}
	if d.Images != nil {
		images := make([]string, 0, len(d.Images))
		seen := make(map[string]struct{}, len(d.Images))
		for _, img := range d.Images {
			img = strings.TrimSpace(img)
			if img == "" {
				continue
			}
			if _, dup := seen[img]; dup {
				continue
			}
			seen[img] = struct{}{}
			images = append(images, img)
		}
		if len(images) > MaxImages {
			return Details{}, ErrTooManyImages
		}
		out.Images = images
	}
	return out, nil
}

func ParseCategory(raw string) (Category, bool) {
	switch Category(strings.ToLower(strings.TrimSpace(raw))) {
	case CategoryCar:
		return CategoryCar, true
	case CategoryMoto:
		return CategoryMoto, true
	case CategoryAccessory:
		return CategoryAccessory, true
	case CategoryMechanic:
		return CategoryMechanic, true
	}
	return "", false
}

// ParseSellerType defaults to individual when empty.
func ParseSellerType(raw string) (SellerType, bool) {
	switch SellerType(strings.ToLower(strings.TrimSpace(raw))) {
	case "", SellerIndividual:
		return SellerIndividual, true
	case SellerPro:
		return SellerPro, true
	}
	return "", false
}

// ParseStatus defaults to used when empty.
func ParseStatus(raw string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case "", StatusUsed:
		return StatusUsed, true
	case StatusNew:
		return StatusNew, true
	case StatusImported:
		return StatusImported, true
	}
	return "", false
}

// IsValidation reports whether err is a listing input error.
func IsValidation(err error) bool {
	switch {
	case errors.Is(err, ErrTitleRequired),
		errors.Is(err, ErrPrice),
		errors.Is(err, ErrCategory),
		errors.Is(err, ErrSellerType),
		errors.Is(err, ErrStatus),
		errors.Is(err, ErrCondition),
		errors.Is(err, ErrYear),
		errors.Is(err, ErrMileage),
		errors.Is(err, ErrImageURL),
		errors.Is(err, ErrTooManyImages),
		errors.Is(err, ErrLocationRequired):
		return true
	}
	return false
}
