package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/stockgate/internal/adapters/localstore"
	domainauth "github.com/target/stockgate/internal/domain/auth"
	apperrors "github.com/target/stockgate/internal/errors"
)

var adminSession = domainauth.Session{Authenticated: true, Identity: "root@stock.io", Role: domainauth.RoleAdmin}

func newUserService(t *testing.T) (*UserService, *localstore.Directory) {
	t.Helper()
	f := newFixture(t)
	local := localstore.NewDirectory(f.kv, f.clock)
	_, err := local.Create(context.Background(), domainauth.NewUser{Email: "root@stock.io", Password: "Secret1!"})
	require.NoError(t, err)
	svc, err := NewUserService(UserServiceOptions{Directory: local})
	require.NoError(t, err)
	return svc, local
}

func ptr[T any](v T) *T { return &v }

func TestUserService_NonAdminIsForbidden(t *testing.T) {
	svc, local := newUserService(t)
	ctx := context.Background()

	for _, role := range []domainauth.Role{domainauth.RoleInventoryManager, domainauth.RolePurchaseManager} {
		caller := domainauth.Session{Authenticated: true, Identity: "m@stock.io", Role: role}

		_, err := svc.List(ctx, caller)
		require.ErrorIs(t, err, apperrors.ErrForbidden, role)
		_, err = svc.Create(ctx, caller, domainauth.NewUser{Email: "n@stock.io", Password: "x"})
		require.ErrorIs(t, err, apperrors.ErrForbidden, role)
		_, err = svc.Update(ctx, caller, "root@stock.io", domainauth.UserPatch{FirstName: ptr("X")})
		require.ErrorIs(t, err, apperrors.ErrForbidden, role)
		require.ErrorIs(t, svc.Delete(ctx, caller, "root@stock.io"), apperrors.ErrForbidden, role)
	}

	users, err := local.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Empty(t, users[0].FirstName)
}

func TestUserService_AnonymousIsUnauthenticated(t *testing.T) {
	svc, _ := newUserService(t)

	_, err := svc.List(context.Background(), domainauth.Session{})
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestUserService_SelfDeleteForbidden(t *testing.T) {
	svc, local := newUserService(t)
	ctx := context.Background()

	err := svc.Delete(ctx, adminSession, " ROOT@stock.io")
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	users, err := local.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUserService_CreateUpdateListRoundTrip(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, adminSession, domainauth.NewUser{
		Email: "buyer@stock.io", Password: "Secret1!", FirstName: "Bo", Role: domainauth.RolePurchaseManager,
	})
	require.NoError(t, err)
	assert.Equal(t, domainauth.RolePurchaseManager, created.Role)

	_, err = svc.Update(ctx, adminSession, "buyer@stock.io", domainauth.UserPatch{
		LastName: ptr("Buyer"),
		Role:     ptr(domainauth.RoleInventoryManager),
	})
	require.NoError(t, err)

	users, err := svc.List(ctx, adminSession)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "buyer@stock.io", users[0].Email)
	assert.Equal(t, "Bo", users[0].FirstName)
	assert.Equal(t, "Buyer", users[0].LastName)
	assert.Equal(t, domainauth.RoleInventoryManager, users[0].Role)

	raw, err := json.Marshal(users)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "password")
	assert.NotContains(t, string(raw), "Secret1!")
}

func TestUserService_Errors(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, adminSession, domainauth.NewUser{Email: "root@stock.io", Password: "x"})
	require.ErrorIs(t, err, apperrors.ErrDuplicateEmail)

	_, err = svc.Update(ctx, adminSession, "ghost@stock.io", domainauth.UserPatch{FirstName: ptr("G")})
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	require.ErrorIs(t, svc.Delete(ctx, adminSession, "ghost@stock.io"), apperrors.ErrNotFound)

	_, err = svc.Update(ctx, adminSession, "root@stock.io", domainauth.UserPatch{Role: ptr(domainauth.Role("owner"))})
	require.True(t, apperrors.IsValidation(err))

	_, err = svc.Update(ctx, adminSession, "root@stock.io", domainauth.UserPatch{})
	require.True(t, apperrors.IsValidation(err))

	require.True(t, apperrors.IsValidation(svc.Delete(ctx, adminSession, "  ")))
}

func TestUserService_DeleteRemovesUser(t *testing.T) {
	svc, local := newUserService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, adminSession, domainauth.NewUser{Email: "gone@stock.io", Password: "x"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, adminSession, "gone@stock.io"))

	users, err := local.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
