// Package demo holds the sample tenant written by the seed command and,
// when requested, loaded into the memory store driver at startup.
package demo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/sitecost/internal/actors"
	"github.com/odyssey-erp/sitecost/internal/catalog"
	"github.com/odyssey-erp/sitecost/internal/partition"
	"github.com/odyssey-erp/sitecost/internal/shared"
)

// Tenant is the site every demo record belongs to.
var Tenant = shared.NewTenant("Tower A", "Acme Construction")

// ActorWriter is implemented by actors.Repository and actors.MemoryDirectory.
type ActorWriter interface {
	Create(ctx context.Context, a actors.Actor) error
}

// CatalogWriter is implemented by catalog.Repository and catalog.MemoryCatalog.
type CatalogWriter interface {
	Upsert(ctx context.Context, tenant shared.Tenant, e catalog.Entry) error
}

type member struct {
	username string
	role     string
	creator  string
}

// Lineage: root creates the manager and an unrelated user; the manager
// creates an admin who in turn creates a site user.
var members = []member{
	{username: "root", role: shared.RoleAdmin},
	{username: "meera", role: shared.RoleManager, creator: "root"},
	{username: "xavier", role: shared.RoleAdmin, creator: "meera"},
	{username: "yusuf", role: shared.RoleUser, creator: "xavier"},
	{username: "zara", role: shared.RoleUser, creator: "root"},
}

// ID keeps actor ids stable across runs.
func ID(username string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("sitecost-demo/"+Tenant.String()+"/"+username))
}

// Actors returns the demo lineage keyed by username.
func Actors() map[string]actors.Actor {
	out := make(map[string]actors.Actor, len(members))
	for _, m := range members {
		a := actors.Actor{ID: ID(m.username), Username: m.username, Role: m.role, Tenant: Tenant}
		if m.creator != "" {
			creator := ID(m.creator)
			a.CreatedBy = &creator
		}
		out[m.username] = a
	}
	return out
}

// Seed writes actors, catalog and month-to-date usage as of now. Running it
// again leaves existing actors and non-empty partitions alone.
func Seed(ctx context.Context, dir ActorWriter, cat CatalogWriter, registry *partition.Registry, now time.Time) (map[string]actors.Actor, error) {
	seeded := Actors()
	for _, m := range members {
		if err := dir.Create(ctx, seeded[m.username]); err != nil && !errors.Is(err, actors.ErrDuplicateActor) {
			return nil, fmt.Errorf("demo: actor %s: %w", m.username, err)
		}
	}
	for _, e := range catalogEntries() {
		if err := cat.Upsert(ctx, Tenant, e); err != nil {
			return nil, fmt.Errorf("demo: catalog %s: %w", e.MaterialName, err)
		}
	}
	if err := seedUsage(ctx, registry, shared.MonthToDate(now).Start); err != nil {
		return nil, err
	}
	return seeded, nil
}

func catalogEntries() []catalog.Entry {
	return []catalog.Entry{
		{MaterialName: "Cement", Unit: "bag", MaterialUnitPrice: decimal.RequireFromString("10.50"), LaborUnitPrice: decimal.RequireFromString("2.00")},
		{MaterialName: "Sand", Unit: "m3", MaterialUnitPrice: decimal.RequireFromString("32.00"), LaborUnitPrice: decimal.RequireFromString("4.25")},
		{MaterialName: "Steel Rod", Unit: "kg", MaterialUnitPrice: decimal.RequireFromString("1.15"), LaborUnitPrice: decimal.RequireFromString("0.30")},
	}
}

func seedUsage(ctx context.Context, registry *partition.Registry, day time.Time) error {
	usage := map[string][]partition.DailyUsageRecord{
		"meera": {
			{Date: day, MaterialName: "Cement", Quantity: decimal.NewFromInt(4), Unit: "bag", Location: "Block 1"},
		},
		"xavier": {
			{Date: day, MaterialName: "Sand", Quantity: decimal.RequireFromString("2.5"), Unit: "m3", Location: "Block 1"},
		},
		"yusuf": {
			{Date: day, MaterialName: "Cement", Quantity: decimal.NewFromInt(6), Unit: "bag", Location: "Block 1"},
			{Date: day, MaterialName: "Steel Rod", Quantity: decimal.NewFromInt(120), Unit: "kg", Location: "Block 2"},
		},
		"zara": {
			{Date: day, MaterialName: "Cement", Quantity: decimal.NewFromInt(3), Unit: "bag", Location: "Block 3"},
		},
	}
	names := make([]string, 0, len(usage))
	for name := range usage {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, actor := range names {
		h, err := registry.ResolveForWrite(ctx, Tenant, actor)
		if err != nil {
			return fmt.Errorf("demo: usage %s: %w", actor, err)
		}
		counts, err := h.Counts(ctx)
		if err != nil {
			return fmt.Errorf("demo: usage %s: %w", actor, err)
		}
		if counts.DailyUsage > 0 {
			continue
		}
		if err := h.AppendUsage(ctx, usage[actor]...); err != nil {
			return fmt.Errorf("demo: usage %s: %w", actor, err)
		}
	}
	return nil
}
