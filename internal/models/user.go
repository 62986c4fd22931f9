package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin       UserRole = "ADMIN"
	RoleCoordinator UserRole = "COORDINADOR"
	RoleEvaluator   UserRole = "EVALUADOR"
)

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Principal identifies the verified actor behind a core operation. The
// auth middleware builds it from validated claims; services never read
// ambient request state.
type Principal struct {
	UserID string
	Role   UserRole
}

// IsCoordinator reports whether the principal may review change requests
// and run phase closures.
func (p Principal) IsCoordinator() bool {
	return p.Role == RoleCoordinator || p.Role == RoleAdmin
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
