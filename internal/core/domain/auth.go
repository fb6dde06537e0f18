package domain

// Role is the access level of an authenticated caller
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleTenant Role = "tenant"
)

// AuthContext contains authenticated user info for request context.
// Only used to stamp audit fields and scope tenant data.
type AuthContext struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

// IsAdmin checks if the authenticated user is an admin
func (a *AuthContext) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Actor returns the identifier recorded in created_by/updated_by fields.
// A nil context attributes the action to the system user.
func (a *AuthContext) Actor() string {
	if a == nil || a.UserID == "" {
		return SystemUserID
	}
	return a.UserID
}

// TokenClaims represents the JWT token payload
type TokenClaims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}
