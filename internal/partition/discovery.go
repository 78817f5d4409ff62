package partition

import (
	"context"
	"sort"

	"github.com/odyssey-erp/sitecost/internal/shared"
)

// Discovery enumerates the partitions that belong to a tenant.
type Discovery struct {
	lister KeyLister
}

// NewDiscovery constructs a Discovery over lister.
func NewDiscovery(lister KeyLister) *Discovery {
	return &Discovery{lister: lister}
}

// ListPartitions returns the sorted actor usernames owning a partition in
// tenant. The result is a point-in-time snapshot; an unknown tenant yields an
// empty list. Errors mean the store itself could not be scanned.
func (d *Discovery) ListPartitions(ctx context.Context, tenant shared.Tenant) ([]string, error) {
	keys, err := d.lister.Keys(ctx)
	if err != nil {
		return nil, err
	}
	tenant = shared.NewTenant(tenant.Site, tenant.Company)
	seen := make(map[string]struct{})
	actors := make([]string, 0)
	for _, k := range keys {
		if k.Tenant != tenant || k.Actor == "" {
			continue
		}
		if _, ok := seen[k.Actor]; ok {
			continue
		}
		seen[k.Actor] = struct{}{}
		actors = append(actors, k.Actor)
	}
	sort.Strings(actors)
	return actors, nil
}
