package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserRole represents the closed set of platform roles.
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleDeveloper UserRole = "DEVELOPER"
	RoleFaculty   UserRole = "FACULTY"
	RoleStudent   UserRole = "STUDENT"
)

// Valid reports whether the role belongs to the closed set. Unknown roles are
// rejected at ingestion; this guard exists for token claims only.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleDeveloper, RoleFaculty, RoleStudent:
		return true
	}
	return false
}

// Account represents a platform user account.
type Account struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         UserRole  `db:"role" json:"role"`
	Department   string    `db:"department" json:"department"`
	Cohort       string    `db:"cohort" json:"cohort"`
	RegisteredAt time.Time `db:"registered_at" json:"registered_at"`
}

// AccountFilter captures filtering criteria for account listings.
type AccountFilter struct {
	ID             string
	Role           UserRole
	Department     string
	Cohort         string
	RegisteredFrom *time.Time
	RegisteredTo   *time.Time
}

// JWTClaims represents the JWT payload for access tokens issued by the
// platform's identity service.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
