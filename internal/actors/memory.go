package actors

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/odyssey-erp/sitecost/internal/shared"
)

// MemoryDirectory is an in-process Directory.
type MemoryDirectory struct {
	mu     sync.RWMutex
	actors []Actor
	err    error
}

// NewMemoryDirectory seeds a directory with actors.
func NewMemoryDirectory(actors ...Actor) *MemoryDirectory {
	return &MemoryDirectory{actors: append([]Actor(nil), actors...)}
}

// Create registers an actor.
func (d *MemoryDirectory) Create(ctx context.Context, a Actor) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.actors {
		if existing.Tenant == a.Tenant && existing.Username == a.Username {
			return fmt.Errorf("%w: %s", ErrDuplicateActor, a.Username)
		}
	}
	d.actors = append(d.actors, a)
	return nil
}

// Fail makes every lookup return err.
func (d *MemoryDirectory) Fail(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

// CreatedBy implements Directory.
func (d *MemoryDirectory) CreatedBy(ctx context.Context, tenant shared.Tenant, creatorID uuid.UUID) ([]Actor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.err != nil {
		return nil, d.err
	}
	var out []Actor
	for _, a := range d.actors {
		if a.Tenant == tenant && a.CreatedBy != nil && *a.CreatedBy == creatorID {
			out = append(out, a)
		}
	}
	return out, nil
}

// Tenants implements Directory.
func (d *MemoryDirectory) Tenants(ctx context.Context) ([]shared.Tenant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.err != nil {
		return nil, d.err
	}
	seen := make(map[shared.Tenant]struct{})
	var out []shared.Tenant
	for _, a := range d.actors {
		if _, ok := seen[a.Tenant]; ok {
			continue
		}
		seen[a.Tenant] = struct{}{}
		out = append(out, a.Tenant)
	}
	sortTenants(out)
	return out, nil
}

func sortTenants(ts []shared.Tenant) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].Site != ts[j].Site {
			return ts[i].Site < ts[j].Site
		}
		return ts[i].Company < ts[j].Company
	})
}
