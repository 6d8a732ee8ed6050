package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"autoparc/internal/app/services/auth"
)

const defaultIssuer = "autoparc"

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTIssuer signs HS256 access tokens. Each token carries a fresh jti so two
// sessions opened in the same second never share a token.
type JWTIssuer struct {
	Secret []byte
	Issuer string
	Now    func() time.Time
}

func NewJWTIssuer(secret string) (*JWTIssuer, error) {
	if len(secret) < 16 {
		return nil, errors.New("security: jwt secret must be at least 16 bytes")
	}
	return &JWTIssuer{Secret: []byte(secret), Issuer: defaultIssuer}, nil
}

func (j *JWTIssuer) Issue(userID string, role string, expiresAt time.Time) (string, error) {
	now := j.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    j.issuer(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(j.Secret)
	if err != nil {
		return "", fmt.Errorf("security: sign token: %w", err)
	}
	return signed, nil
}

func (j *JWTIssuer) Verify(raw string) (string, error) {
	parsed := &claims{}
	_, err := jwt.ParseWithClaims(raw, parsed, func(t *jwt.Token) (any, error) {
		return j.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.issuer()),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
	}
	if parsed.Subject == "" {
		return "", auth.ErrInvalidToken
	}
	return parsed.Subject, nil
}

func (j *JWTIssuer) issuer() string {
	if j.Issuer != "" {
		return j.Issuer
	}
	return defaultIssuer
}

func (j *JWTIssuer) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

var _ auth.TokenIssuer = (*JWTIssuer)(nil)
