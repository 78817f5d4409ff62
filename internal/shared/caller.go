package shared

import (
	"strings"

	"github.com/google/uuid"
)

// Actor roles recognised by the aggregation endpoints.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleUser    = "user"
)

// Caller is the authenticated identity resolved by the login service.
type Caller struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
	Tenant   Tenant    `json:"tenant"`
}

// HasRole reports whether the caller holds one of the given roles.
func (c Caller) HasRole(roles ...string) bool {
	role := strings.ToLower(strings.TrimSpace(c.Role))
	for _, r := range roles {
		if role == strings.ToLower(r) {
			return true
		}
	}
	return false
}

// Valid reports whether the identity carries the fields the API relies on.
func (c Caller) Valid() bool {
	return c.ID != uuid.Nil && strings.TrimSpace(c.Username) != "" && c.Role != "" && c.Tenant.Valid()
}
