// Package actors exposes the actor directory and computes which actors a
// caller may see.
package actors

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/odyssey-erp/sitecost/internal/shared"
)

// ErrDuplicateActor is returned when a username is already taken in a tenant.
var ErrDuplicateActor = errors.New("actors: duplicate username")

// Actor is a registered identity owned by one tenant.
type Actor struct {
	ID        uuid.UUID
	Username  string
	Role      string
	Tenant    shared.Tenant
	CreatedBy *uuid.UUID
}

// FromCaller builds the actor view of an authenticated caller.
func FromCaller(c shared.Caller) Actor {
	return Actor{ID: c.ID, Username: c.Username, Role: c.Role, Tenant: c.Tenant}
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return shared.Caller{Role: a.Role}.HasRole(shared.RoleAdmin)
}

// Directory reads the actor creation forest.
type Directory interface {
	// CreatedBy lists the actors of tenant whose creator is creatorID.
	CreatedBy(ctx context.Context, tenant shared.Tenant, creatorID uuid.UUID) ([]Actor, error)
	// Tenants lists every tenant with at least one actor.
	Tenants(ctx context.Context) ([]shared.Tenant, error)
}

// Scope is the set of actors visible to a caller. All means no filter.
type Scope struct {
	All       bool
	Usernames []string
}

// Allows reports whether username falls inside the scope.
func (s Scope) Allows(username string) bool {
	if s.All {
		return true
	}
	i := sort.SearchStrings(s.Usernames, username)
	return i < len(s.Usernames) && s.Usernames[i] == username
}
