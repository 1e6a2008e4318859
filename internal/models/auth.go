package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserRole represents the roles recognised by the RBAC layer.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RolePlanner UserRole = "PLANNER"
	RoleViewer  UserRole = "VIEWER"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RolePlanner, RoleViewer:
		return true
	}
	return false
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Name   string   `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// IssueTokenRequest describes a token minted for an operator or integration.
type IssueTokenRequest struct {
	UserID string        `json:"user_id" validate:"required,max=64"`
	Role   UserRole      `json:"role" validate:"required,oneof=ADMIN PLANNER VIEWER"`
	Name   string        `json:"name" validate:"max=128"`
	TTL    time.Duration `json:"-"`
}

// IssuedToken is a signed access token and its expiry.
type IssuedToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}
