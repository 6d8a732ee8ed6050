package model

import (
	"autoparc/internal/app/dto"
	domainuser "autoparc/internal/domain/user"
)

type User struct {
	ID          string   `json:"id"`
	Email       string   `json:"email,omitempty"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Avatar      string   `json:"avatar"`
	Phone       string   `json:"phone,omitempty"`
	Location    string   `json:"location,omitempty"`
	ShopName    string   `json:"shopName,omitempty"`
	Specialties []string `json:"specialties,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	HourlyRate  float64  `json:"hourlyRate,omitempty"`
	CreatedAt   int64    `json:"createdAt"`
}

// UserFromRow maps a profile row. Users without an avatar get a generated
// one from their name.
func UserFromRow(row dto.UserProfile) User {
	avatar := row.AvatarURL
	if avatar == "" {
		avatar = domainuser.DefaultAvatar(row.Name)
	}
	return User{
		ID:          row.ID,
		Email:       row.Email,
		Name:        row.Name,
		Role:        row.Role,
		Avatar:      avatar,
		Phone:       row.Phone,
		Location:    row.Location,
		ShopName:    row.ShopName,
		Specialties: append([]string(nil), row.Specialties...),
		Rating:      row.Rating,
		HourlyRate:  centsToUnits(row.HourlyRateCents),
		CreatedAt:   Millis(row.CreatedAt),
	}
}

// ProfilePatch is the editable part of a profile. Nil fields are left
// unchanged by the server.
type ProfilePatch struct {
	Name        *string  `json:"name,omitempty"`
	Phone       *string  `json:"phone,omitempty"`
	Location    *string  `json:"location,omitempty"`
	AvatarURL   *string  `json:"avatar_url,omitempty"`
	ShopName    *string  `json:"shop_name,omitempty"`
	Specialties []string `json:"specialties,omitempty"`
	HourlyRate  *float64 `json:"-"`
	HourlyCents *int64   `json:"hourly_rate_cents,omitempty"`
}

// Row returns the patch in its wire shape.
func (p ProfilePatch) Row() ProfilePatch {
	if p.HourlyRate != nil {
		cents := unitsToCents(*p.HourlyRate)
		p.HourlyCents = &cents
	}
	return p
}
