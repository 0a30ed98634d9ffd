package models

import "github.com/golang-jwt/jwt/v5"

// UserRole is the role claim carried by staff tokens.
type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleStaff UserRole = "staff"
)

// AppMetadata mirrors the app_metadata object Supabase embeds in access tokens.
type AppMetadata struct {
	Role     UserRole `json:"role,omitempty"`
	Provider string   `json:"provider,omitempty"`
}

// JWTClaims represents the JWT payload for staff access tokens.
type JWTClaims struct {
	Email       string      `json:"email"`
	Role        string      `json:"role"`
	AppMetadata AppMetadata `json:"app_metadata"`
	jwt.RegisteredClaims
}

// UserID returns the subject of the token.
func (c *JWTClaims) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}

// EffectiveRole prefers the application role over the Postgres role Supabase puts in "role".
func (c *JWTClaims) EffectiveRole() UserRole {
	if c == nil {
		return ""
	}
	if c.AppMetadata.Role != "" {
		return c.AppMetadata.Role
	}
	return UserRole(c.Role)
}
