package costs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/sitecost/internal/actors"
	"github.com/odyssey-erp/sitecost/internal/partition"
	"github.com/odyssey-erp/sitecost/internal/platform/httpx"
	"github.com/odyssey-erp/sitecost/internal/shared"
)

type lineage struct {
	manager, adminX, userY, outsider, root actors.Actor
}

func newLineage() lineage {
	mk := func(name, role string, creator *actors.Actor) actors.Actor {
		a := actors.Actor{ID: uuid.New(), Username: name, Role: role, Tenant: tower}
		if creator != nil {
			id := creator.ID
			a.CreatedBy = &id
		}
		return a
	}
	l := lineage{}
	l.root = mk("root", shared.RoleAdmin, nil)
	l.manager = mk("meera", shared.RoleManager, &l.root)
	l.adminX = mk("xavier", shared.RoleAdmin, &l.manager)
	l.userY = mk("yusuf", shared.RoleUser, &l.adminX)
	l.outsider = mk("zara", shared.RoleUser, &l.root)
	return l
}

func callerOf(a actors.Actor) shared.Caller {
	return shared.Caller{ID: a.ID, Username: a.Username, Role: a.Role, Tenant: a.Tenant}
}

func newService(t *testing.T, f *fixture, l lineage, cache *Cache) *Service {
	t.Helper()
	dir := actors.NewMemoryDirectory(l.root, l.manager, l.adminX, l.userY, l.outsider)
	return NewService(f.engine, actors.NewResolver(dir, discard), cache, nil, discard)
}

func march2024() Request {
	rng, err := shared.ParseDateRange("2024-03-01", "2024-03-31")
	if err != nil {
		panic(err)
	}
	return Request{Tenant: tower, Range: rng}
}

func TestManagerSeesOnlyCreationLineage(t *testing.T) {
	f := newFixture(t, EngineOptions{})
	l := newLineage()
	for _, a := range []actors.Actor{l.manager, l.adminX, l.userY, l.outsider} {
		f.usage(t, a.Username, "2024-03-02", "Steel", "2")
	}
	f.usage(t, l.outsider.Username, "2024-03-02", "Cement", "7")
	f.price(t, "Steel", "80", "30")
	f.price(t, "Cement", "60", "10")
	svc := newService(t, f, l, nil)
	ctx := context.Background()

	managerView, err := svc.ManagerAggregate(ctx, callerOf(l.manager), march2024())
	require.NoError(t, err)
	steel, ok := managerView.Line("Steel")
	require.True(t, ok)
	assert.Equal(t, []string{"meera", "xavier", "yusuf"}, steel.ContributingActors)
	_, ok = managerView.Line("Cement")
	assert.False(t, ok)

	adminView, err := svc.AdminAggregate(ctx, callerOf(l.root), march2024())
	require.NoError(t, err)
	for _, line := range managerView.LineItems {
		full, ok := adminView.Line(line.MaterialName)
		require.True(t, ok)
		assert.True(t, line.Quantity.LessThanOrEqual(full.Quantity), line.MaterialName)
	}
	adminSteel, _ := adminView.Line("Steel")
	assert.True(t, adminSteel.Quantity.Equal(dec("8")))
}

func TestAdminThroughManagerScopeIsUnfiltered(t *testing.T) {
	f := newFixture(t, EngineOptions{})
	l := newLineage()
	f.usage(t, l.outsider.Username, "2024-03-02", "Steel", "2")
	f.price(t, "Steel", "1", "1")
	svc := newService(t, f, l, nil)

	res, err := svc.ManagerAggregate(context.Background(), callerOf(l.root), march2024())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.LineItemCount)
}

func TestAuthorization(t *testing.T) {
	f := newFixture(t, EngineOptions{})
	l := newLineage()
	svc := newService(t, f, l, nil)
	ctx := context.Background()

	_, err := svc.AdminAggregate(ctx, callerOf(l.manager), march2024())
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = svc.ManagerAggregate(ctx, callerOf(l.userY), march2024())
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	foreign := march2024()
	foreign.Tenant = shared.NewTenant("Tower B", "Acme")
	_, err = svc.AdminAggregate(ctx, callerOf(l.root), foreign)
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = svc.AdminAggregate(ctx, shared.Caller{Role: shared.RoleAdmin}, march2024())
	assert.ErrorIs(t, err, httpx.ErrUnauthorized)

	_, err = svc.Partitions(ctx, callerOf(l.manager), tower)
	assert.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestServiceCachesCompleteResults(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t, EngineOptions{})
	l := newLineage()
	f.usage(t, "asha", "2024-03-02", "Steel", "1")
	f.price(t, "Steel", "10", "0")
	svc := newService(t, f, l, NewCache(client, time.Minute))
	ctx := context.Background()

	first, err := svc.AdminAggregate(ctx, callerOf(l.root), march2024())
	require.NoError(t, err)
	f.usage(t, "asha", "2024-03-03", "Steel", "5")

	cached, err := svc.AdminAggregate(ctx, callerOf(l.root), march2024())
	require.NoError(t, err)
	a, _ := first.Line("Steel")
	b, _ := cached.Line("Steel")
	assert.True(t, a.Quantity.Equal(b.Quantity))

	require.NoError(t, svc.Invalidate(ctx))
	fresh, err := svc.AdminAggregate(ctx, callerOf(l.root), march2024())
	require.NoError(t, err)
	c, _ := fresh.Line("Steel")
	assert.True(t, c.Quantity.Equal(dec("6")))
}

func TestServiceDoesNotCachePartialResults(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t, EngineOptions{})
	l := newLineage()
	f.usage(t, "asha", "2024-03-02", "Steel", "1")
	f.usage(t, "ravi", "2024-03-02", "Steel", "2")
	f.price(t, "Steel", "10", "0")
	svc := newService(t, f, l, NewCache(client, time.Minute))
	ctx := context.Background()

	key := partition.NewKey(tower, "ravi")
	f.store.FailReads(key, errors.New("flaky"))
	partial, err := svc.AdminAggregate(ctx, callerOf(l.root), march2024())
	require.NoError(t, err)
	assert.Equal(t, 1, partial.Summary.PartitionsSkipped)

	f.store.FailReads(key, nil)
	full, err := svc.AdminAggregate(ctx, callerOf(l.root), march2024())
	require.NoError(t, err)
	line, _ := full.Line("Steel")
	assert.True(t, line.Quantity.Equal(dec("3")))
}

func TestServiceWarmRequiresTenant(t *testing.T) {
	f := newFixture(t, EngineOptions{})
	svc := newService(t, f, newLineage(), nil)
	_, err := svc.Warm(context.Background(), Request{})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestServiceSkipsStoreWithoutCacheVersion(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t, EngineOptions{})
	l := newLineage()
	f.usage(t, "asha", "2024-03-02", "Steel", "2")
	f.price(t, "Steel", "10", "0")
	svc := newService(t, f, l, NewCache(client, time.Minute))

	require.NoError(t, mr.Set(cacheVersionKey, "corrupt"))
	res, err := svc.AdminAggregate(context.Background(), callerOf(l.root), march2024())
	require.NoError(t, err)
	line, ok := res.Line("Steel")
	require.True(t, ok)
	assert.True(t, line.Quantity.Equal(dec("2")))
	assert.Equal(t, []string{cacheVersionKey}, mr.Keys())
}
