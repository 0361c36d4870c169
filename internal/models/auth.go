package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Username  string `json:"username" validate:"required"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued tokens and user info.
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	User         UserInfo  `json:"user"`
	IssuedAt     time.Time `json:"issued_at"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshTokenResponse returns the refreshed tokens.
type RefreshTokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	FullName     string    `json:"full_name"`
	DepartmentID *string   `json:"department_id,omitempty"`
	Roles        []RoleTag `json:"roles"`
}

// JWTClaims represents the JWT payload for access tokens. Roles carries the
// authoritative capability set so the policy layer never re-reads the user;
// DepartmentID lets handlers scope head-of-department access.
type JWTClaims struct {
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	FullName     string    `json:"full_name"`
	DepartmentID *string   `json:"department_id,omitempty"`
	Roles        []RoleTag `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claims carry the given capability tag.
func (c *JWTClaims) HasRole(tag RoleTag) bool {
	for _, r := range c.Roles {
		if r == tag {
			return true
		}
	}
	return false
}
