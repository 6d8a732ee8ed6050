package dto

import (
	"time"

	domainuser "autoparc/internal/domain/user"
)

type UserProfile struct {
	ID              string    `json:"id"`
	Email           string    `json:"email,omitempty"`
	Name            string    `json:"name"`
	Role            string    `json:"role"`
	AvatarURL       string    `json:"avatar_url"`
	Phone           string    `json:"phone,omitempty"`
	Location        string    `json:"location,omitempty"`
	ShopName        string    `json:"shop_name,omitempty"`
	Specialties     []string  `json:"specialties,omitempty"`
	Rating          float64   `json:"rating,omitempty"`
	HourlyRateCents int64     `json:"hourly_rate_cents,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type AuthResponse struct {
	User      UserProfile `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// MapUserProfile fills avatar_url with a generated one when none is stored.
func MapUserProfile(user *domainuser.User) UserProfile {
	if user == nil {
		return UserProfile{}
	}
	return UserProfile{
		ID:              string(user.ID),
		Email:           user.Email,
		Name:            user.Name,
		Role:            string(user.Role),
		AvatarURL:       user.Avatar(),
		Phone:           user.Phone,
		Location:        user.Location,
		ShopName:        user.ShopName,
		Specialties:     append([]string(nil), user.Specialties...),
		Rating:          user.Rating,
		HourlyRateCents: user.HourlyRateCents,
		CreatedAt:       user.CreatedAt,
		UpdatedAt:       user.UpdatedAt,
	}
}

// MapPublicProfile hides contact details from other users.
func MapPublicProfile(user *domainuser.User) UserProfile {
	p := MapUserProfile(user)
	p.Email = ""
	p.Phone = ""
	return p
}

func NewAuthResponse(user *domainuser.User, token string, expiresAt time.Time) AuthResponse {
	return AuthResponse{
		User:      MapUserProfile(user),
		Token:     token,
		ExpiresAt: expiresAt,
	}
}
