package actors

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/odyssey-erp/sitecost/internal/shared"
)

// MaxCreationHops bounds how far down the creation forest a manager sees.
// Hop one is the manager's direct reports; each later hop only expands
// admins found on the previous hop.
const MaxCreationHops = 2

// Resolver computes visible actor sets.
type Resolver struct {
	dir    Directory
	logger *slog.Logger
}

// NewResolver constructs a Resolver over dir.
func NewResolver(dir Directory, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{dir: dir, logger: logger}
}

// VisibleActors returns the actors caller may see. Admins see the whole
// tenant. Managers see themselves, their direct reports and the actors
// created by admins among those reports.
func (r *Resolver) VisibleActors(ctx context.Context, caller Actor) (Scope, error) {
	if caller.IsAdmin() {
		return Scope{All: true}, nil
	}
	seen := map[string]struct{}{caller.Username: {}}
	frontier := []uuid.UUID{caller.ID}
	for hop := 1; hop <= MaxCreationHops && len(frontier) > 0; hop++ {
		var next []uuid.UUID
		for _, creator := range frontier {
			created, err := r.dir.CreatedBy(ctx, caller.Tenant, creator)
			if err != nil {
				return Scope{}, fmt.Errorf("actors: created by %s: %w", creator, err)
			}
			for _, a := range created {
				seen[a.Username] = struct{}{}
				if a.IsAdmin() {
					next = append(next, a.ID)
				}
			}
		}
		frontier = next
	}
	if len(frontier) > 0 {
		r.logger.Debug("creation chain truncated",
			slog.String("caller", caller.Username),
			slog.Int("unexpanded_admins", len(frontier)))
	}
	usernames := make([]string, 0, len(seen))
	for name := range seen {
		usernames = append(usernames, name)
	}
	sort.Strings(usernames)
	return Scope{Usernames: usernames}, nil
}

// ForCaller is a convenience wrapper for authenticated callers.
func (r *Resolver) ForCaller(ctx context.Context, caller shared.Caller) (Scope, error) {
	return r.VisibleActors(ctx, FromCaller(caller))
}
