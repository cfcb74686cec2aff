package auth

import (
	"fmt"
	"time"
)

// Role is the coarse authorization level carried by a credential.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole accepts only the known roles.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

func (r Role) String() string {
	return string(r)
}

// Principal is the authenticated identity attached to a single request.
type Principal struct {
	Username string    `json:"username"`
	Role     Role      `json:"role"`
	UserID   uint      `json:"userId,omitempty"`
	IssuedAt time.Time `json:"iat"`
}

// IsAdmin reports whether the principal holds the ADMIN role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// Context is the identity evidence a route can supply for a gate decision.
// Empty strings and zero ids mean the evidence is absent.
type Context struct {
	ParamUsername string
	BodyUsername  string
	TargetUserID  uint
}
