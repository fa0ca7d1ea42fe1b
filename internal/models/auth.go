package models

import "github.com/golang-jwt/jwt/v5"

// UserRole enumerates the roles carried in access tokens.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleStaff   UserRole = "STAFF"
	RoleTeacher UserRole = "TEACHER"
)

// TenantClaims is the JWT payload issued by the external auth service.
// SchoolID is the tenant boundary; it is threaded explicitly through every
// service and repository call rather than read from ambient state.
type TenantClaims struct {
	SchoolID string   `json:"school_id"`
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	jwt.RegisteredClaims
}
