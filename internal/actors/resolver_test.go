package actors

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/sitecost/internal/shared"
)

var site = shared.NewTenant("Tower A", "Acme")

func newActor(name, role string, creator *Actor) Actor {
	a := Actor{ID: uuid.New(), Username: name, Role: role, Tenant: site}
	if creator != nil {
		id := creator.ID
		a.CreatedBy = &id
	}
	return a
}

func TestVisibleActorsManagerLineage(t *testing.T) {
	manager := newActor("meera", shared.RoleManager, nil)
	adminX := newActor("xavier", shared.RoleAdmin, &manager)
	userY := newActor("yusuf", shared.RoleUser, &adminX)
	outsider := newActor("zara", shared.RoleUser, nil)

	dir := NewMemoryDirectory(manager, adminX, userY, outsider)
	scope, err := NewResolver(dir, nil).VisibleActors(context.Background(), manager)
	require.NoError(t, err)

	assert.False(t, scope.All)
	assert.Equal(t, []string{"meera", "xavier", "yusuf"}, scope.Usernames)
	assert.False(t, scope.Allows("zara"))
	assert.True(t, scope.Allows("yusuf"))
}

func TestVisibleActorsStopsAtSecondHop(t *testing.T) {
	manager := newActor("meera", shared.RoleManager, nil)
	admin1 := newActor("a1", shared.RoleAdmin, &manager)
	admin2 := newActor("a2", shared.RoleAdmin, &admin1)
	deep := newActor("deep", shared.RoleUser, &admin2)
	userOfUser := newActor("u2", shared.RoleUser, nil)
	plainUser := newActor("u1", shared.RoleUser, &manager)
	id := plainUser.ID
	userOfUser.CreatedBy = &id

	dir := NewMemoryDirectory(manager, admin1, admin2, deep, plainUser, userOfUser)
	scope, err := NewResolver(dir, nil).VisibleActors(context.Background(), manager)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "meera", "u1"}, scope.Usernames)
}

func TestVisibleActorsWithoutReports(t *testing.T) {
	manager := newActor("meera", shared.RoleManager, nil)
	scope, err := NewResolver(NewMemoryDirectory(manager), nil).VisibleActors(context.Background(), manager)
	require.NoError(t, err)
	assert.Equal(t, []string{"meera"}, scope.Usernames)
}

func TestVisibleActorsDeduplicates(t *testing.T) {
	manager := newActor("meera", shared.RoleManager, nil)
	self := newActor("meera", shared.RoleUser, &manager)
	scope, err := NewResolver(NewMemoryDirectory(manager, self), nil).VisibleActors(context.Background(), manager)
	require.NoError(t, err)
	assert.Equal(t, []string{"meera"}, scope.Usernames)
}

func TestVisibleActorsIgnoresOtherTenants(t *testing.T) {
	manager := newActor("meera", shared.RoleManager, nil)
	foreign := newActor("ola", shared.RoleUser, &manager)
	foreign.Tenant = shared.NewTenant("Tower B", "Acme")
	scope, err := NewResolver(NewMemoryDirectory(manager, foreign), nil).VisibleActors(context.Background(), manager)
	require.NoError(t, err)
	assert.Equal(t, []string{"meera"}, scope.Usernames)
}

func TestVisibleActorsAdminSeesAll(t *testing.T) {
	admin := newActor("root", shared.RoleAdmin, nil)
	dir := NewMemoryDirectory()
	dir.Fail(errors.New("must not be queried"))
	scope, err := NewResolver(dir, nil).VisibleActors(context.Background(), admin)
	require.NoError(t, err)
	assert.True(t, scope.All)
	assert.True(t, scope.Allows("anyone"))
}

func TestVisibleActorsDirectoryFailure(t *testing.T) {
	manager := newActor("meera", shared.RoleManager, nil)
	dir := NewMemoryDirectory(manager)
	boom := errors.New("db down")
	dir.Fail(boom)
	_, err := NewResolver(dir, nil).VisibleActors(context.Background(), manager)
	assert.ErrorIs(t, err, boom)
}

func TestMemoryDirectoryTenants(t *testing.T) {
	other := newActor("ola", shared.RoleUser, nil)
	other.Tenant = shared.NewTenant("Annex", "Acme")
	dir := NewMemoryDirectory(newActor("meera", shared.RoleManager, nil), other)
	require.ErrorIs(t, dir.Create(context.Background(), newActor("meera", shared.RoleUser, nil)), ErrDuplicateActor)

	tenants, err := dir.Tenants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []shared.Tenant{other.Tenant, site}, tenants)
}
