package bootstrap

import (
	"context"
	"testing"

	"aegis/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func setupSeedDB(t *testing.T) (*storage.SQLitePermissionStorage, *storage.SQLiteRoleStorage, *storage.SQLiteUserStorage) {
	t.Helper()
	logger := zap.NewNop().Sugar()
	sqlite, err := storage.NewSQLite(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return storage.NewSQLitePermissionStorage(sqlite, logger),
		storage.NewSQLiteRoleStorage(sqlite, logger),
		storage.NewSQLiteUserStorage(sqlite, logger)
}

func TestSeedRBAC_CreatesCatalogueAndRoles(t *testing.T) {
	perms, roles, _ := setupSeedDB(t)
	ctx := context.Background()
	logger := zap.NewNop().Sugar()

	require.NoError(t, SeedRBAC(ctx, perms, roles, logger))

	catalogue, err := perms.ListPermissions(ctx)
	require.NoError(t, err)
	assert.Len(t, catalogue, len(storage.DefaultPermissions()))

	for roleName, grants := range storage.DefaultRolePermissions() {
		role, err := roles.GetRoleByName(ctx, roleName)
		require.NoErrorf(t, err, "built-in role %s should exist", roleName)
		assert.Lenf(t, role.Permissions, len(grants), "role %s grant count", roleName)
		for _, grant := range grants {
			assert.Truef(t, role.HasPermission(grant), "role %s should hold %s", roleName, grant)
		}
	}
}

func TestSeedRBAC_Idempotent(t *testing.T) {
	perms, roles, _ := setupSeedDB(t)
	ctx := context.Background()
	logger := zap.NewNop().Sugar()

	require.NoError(t, SeedRBAC(ctx, perms, roles, logger))
	require.NoError(t, SeedRBAC(ctx, perms, roles, logger))

	catalogue, err := perms.ListPermissions(ctx)
	require.NoError(t, err)
	assert.Len(t, catalogue, len(storage.DefaultPermissions()))

	admin, err := roles.GetRoleByName(ctx, storage.RoleAdmin)
	require.NoError(t, err)
	assert.Len(t, admin.Permissions, len(storage.DefaultRolePermissions()[storage.RoleAdmin]))
}

func TestSeedAdminUser_FirstRun(t *testing.T) {
	perms, roles, users := setupSeedDB(t)
	ctx := context.Background()
	logger := zap.NewNop().Sugar()

	require.NoError(t, SeedRBAC(ctx, perms, roles, logger))

	result, err := SeedAdminUser(ctx, users, roles, bcrypt.MinCost, logger)
	require.NoError(t, err)
	assert.True(t, result.AdminCreated)
	assert.NotEmpty(t, result.AdminPassword)

	admin, err := users.GetUserByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, admin.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(result.AdminPassword)))

	heldRoles, err := users.GetUserRoles(ctx, admin.ID)
	require.NoError(t, err)
	require.Len(t, heldRoles, 1)
	assert.Equal(t, storage.RoleAdmin, heldRoles[0].Name)
}

func TestSeedAdminUser_SkipsWhenUsersExist(t *testing.T) {
	perms, roles, users := setupSeedDB(t)
	ctx := context.Background()
	logger := zap.NewNop().Sugar()

	require.NoError(t, SeedRBAC(ctx, perms, roles, logger))
	require.NoError(t, users.CreateUser(ctx, &storage.User{Username: "existing", Password: "x", Active: true}))

	result, err := SeedAdminUser(ctx, users, roles, bcrypt.MinCost, logger)
	require.NoError(t, err)
	assert.False(t, result.AdminCreated)
	assert.Empty(t, result.AdminPassword)

	_, err = users.GetUserByUsername(ctx, "admin")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestSeedAdminUser_UsesEnvPassword(t *testing.T) {
	perms, roles, users := setupSeedDB(t)
	ctx := context.Background()
	logger := zap.NewNop().Sugar()

	require.NoError(t, SeedRBAC(ctx, perms, roles, logger))

	t.Setenv("AEGIS_ADMIN_PASSWORD", "operator-chosen-password")
	result, err := SeedAdminUser(ctx, users, roles, bcrypt.MinCost, logger)
	require.NoError(t, err)
	assert.True(t, result.AdminCreated)
	// Operator-supplied passwords are never echoed back.
	assert.Empty(t, result.AdminPassword)

	admin, err := users.GetUserByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte("operator-chosen-password")))
}
