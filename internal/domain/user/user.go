package user

import (
	"context"
	"errors"
	"net/mail"
	"net/url"
	"strings"
	"time"
)

var (
	ErrIDRequired          = errors.New("user: id is required")
	ErrEmailRequired       = errors.New("user: email is required")
	ErrEmailInvalid        = errors.New("user: email is invalid")
	ErrPasswordHashMissing = errors.New("user: password hash is required")
	ErrNameRequired        = errors.New("user: name is required")
	ErrInvalidRole         = errors.New("user: invalid role")
	ErrEmailAlreadyUsed    = errors.New("user: email already used")
	ErrHourlyRate          = errors.New("user: hourly rate must be non-negative")
	ErrRating              = errors.New("user: rating must be between 0 and 5")
	ErrNotFound            = errors.New("user: not found")
)

type ID string

type Role string

const (
	RoleBuyer    Role = "buyer"
	RoleSeller   Role = "seller"
	RoleMechanic Role = "mechanic"
)

const avatarBaseURL = "https://ui-avatars.com/api/"

type User struct {
	ID              ID
	Email           string
	Name            string
	PasswordHash    string
	Role            Role
	AvatarURL       string
	Phone           string
	Location        string
	ShopName        string
	Specialties     []string
	Rating          float64
	HourlyRateCents int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*User, error)
	ByEmail(ctx context.Context, email string) (*User, error)
	Save(ctx context.Context, user *User) error
	ListByRole(ctx context.Context, role Role, limit int) ([]*User, error)
}

type CreateParams struct {
	ID           ID
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

func NewUser(params CreateParams) (*User, error) {
	id := strings.TrimSpace(string(params.ID))
	if id == "" {
		return nil, ErrIDRequired
	}
	email := NormalizeEmail(params.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrEmailInvalid
	}
	if strings.TrimSpace(params.PasswordHash) == "" {
		return nil, ErrPasswordHashMissing
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	role := Role(strings.ToLower(strings.TrimSpace(string(params.Role))))
	if role == "" {
		role = RoleBuyer
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	now := params.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	return &User{
		ID:           ID(id),
		Email:        email,
		Name:         name,
		PasswordHash: params.PasswordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Profile holds the editable attributes. Nil fields are left untouched.
type Profile struct {
	Name            *string
	AvatarURL       *string
	Phone           *string
	Location        *string
	ShopName        *string
	Specialties     []string
	HourlyRateCents *int64
}

// UpdateProfile applies the edit. Role-specific fields are dropped for roles
// that do not own them.
func (u *User) UpdateProfile(p Profile, now time.Time) error {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return ErrNameRequired
		}
		u.Name = name
	}
	if p.AvatarURL != nil {
		u.AvatarURL = strings.TrimSpace(*p.AvatarURL)
	}
	if p.Phone != nil {
		u.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.Location != nil {
		u.Location = strings.TrimSpace(*p.Location)
	}
	if p.ShopName != nil && u.Role != RoleBuyer {
		u.ShopName = strings.TrimSpace(*p.ShopName)
	}
	if u.Role == RoleMechanic {
		if p.Specialties != nil {
			u.Specialties = normalizeSpecialties(p.Specialties)
		}
		if p.HourlyRateCents != nil {
			if *p.HourlyRateCents < 0 {
				return ErrHourlyRate
			}
			u.HourlyRateCents = *p.HourlyRateCents
		}
	}
	u.touch(now)
	return nil
}

func (u *User) SetRating(rating float64, now time.Time) error {
	if rating < 0 || rating > 5 {
		return ErrRating
	}
	u.Rating = rating
	u.touch(now)
	return nil
}

func (u *User) SetPasswordHash(hash string, now time.Time) error {
	if strings.TrimSpace(hash) == "" {
		return ErrPasswordHashMissing
	}
	u.PasswordHash = hash
	u.touch(now)
	return nil
}

func (u *User) HasRole(role Role) bool {
	return u.Role == Role(strings.ToLower(strings.TrimSpace(string(role))))
}

// Avatar returns the stored avatar or one generated from the user's name.
func (u *User) Avatar() string {
	if u.AvatarURL != "" {
		return u.AvatarURL
	}
	return DefaultAvatar(u.Name)
}

func DefaultAvatar(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "?"
	}
	q := url.Values{}
	q.Set("name", name)
	q.Set("background", "random")
	return avatarBaseURL + "?" + q.Encode()
}

func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleMechanic:
		return true
	}
	return false
}

func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", ErrInvalidRole
	}
	return role, nil
}

func (u *User) touch(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	u.UpdatedAt = now.UTC()
}

func normalizeSpecialties(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
