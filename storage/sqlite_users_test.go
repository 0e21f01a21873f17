package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserStorage_CreateAndGet(t *testing.T) {
	sqlite, logger := setupTestDB(t)
	store := NewSQLiteUserStorage(sqlite, logger)
	ctx := context.Background()

	user := &User{Username: "alice", Password: "hashed", Active: true}
	require.NoError(t, store.CreateUser(ctx, user))
	assert.NotZero(t, user.ID)

	byID, err := store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)
	assert.True(t, byID.Active)

	byName, err := store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)
}

func TestUserStorage_DuplicateUsername(t *testing.T) {
	sqlite, logger := setupTestDB(t)
	store := NewSQLiteUserStorage(sqlite, logger)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, &User{Username: "bob", Password: "x", Active: true}))
	err := store.CreateUser(ctx, &User{Username: "bob", Password: "y", Active: true})
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

func TestUserStorage_NotFound(t *testing.T) {
	sqlite, logger := setupTestDB(t)
	store := NewSQLiteUserStorage(sqlite, logger)

	_, err := store.GetUserByID(context.Background(), 12345)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserStorage_AssignRole_Idempotent(t *testing.T) {
	sqlite, logger := setupTestDB(t)
	userStore := NewSQLiteUserStorage(sqlite, logger)
	roleStore := NewSQLiteRoleStorage(sqlite, logger)
	ctx := context.Background()

	user := &User{Username: "carol", Password: "x", Active: true}
	require.NoError(t, userStore.CreateUser(ctx, user))
	role := &Role{Name: "analyst-x"}
	require.NoError(t, roleStore.CreateRole(ctx, role))

	assigned, err := userStore.AssignRole(ctx, user.ID, role.ID)
	require.NoError(t, err)
	assert.True(t, assigned)

	// Re-assignment is a clean no-op.
	assigned, err = userStore.AssignRole(ctx, user.ID, role.ID)
	require.NoError(t, err)
	assert.False(t, assigned)

	roles, err := userStore.GetUserRoles(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, roles, 1)
}

func TestUserStorage_GetUserRoles_LoadsPermissions(t *testing.T) {
	sqlite, logger := setupTestDB(t)
	userStore := NewSQLiteUserStorage(sqlite, logger)
	roleStore := NewSQLiteRoleStorage(sqlite, logger)
	permStore := NewSQLitePermissionStorage(sqlite, logger)
	ctx := context.Background()

	perms := seedPerms(t, permStore, "incidents:read", "playbooks:read")
	role := &Role{Name: "reader", Permissions: perms}
	require.NoError(t, roleStore.CreateRole(ctx, role))
	user := &User{Username: "dave", Password: "x", Active: true}
	require.NoError(t, userStore.CreateUser(ctx, user))
	_, err := userStore.AssignRole(ctx, user.ID, role.ID)
	require.NoError(t, err)

	roles, err := userStore.GetUserRoles(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Len(t, roles[0].Permissions, 2)
	assert.True(t, roles[0].HasPermission("incidents:read"))
}

func TestUserStorage_UpdateUser(t *testing.T) {
	sqlite, logger := setupTestDB(t)
	store := NewSQLiteUserStorage(sqlite, logger)
	ctx := context.Background()

	user := &User{Username: "erin", Password: "x", Active: true}
	require.NoError(t, store.CreateUser(ctx, user))

	user.Active = false
	user.MFAEnabled = true
	user.TOTPSecret = "SECRET"
	require.NoError(t, store.UpdateUser(ctx, user))

	loaded, err := store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, loaded.Active)
	assert.True(t, loaded.MFAEnabled)
	assert.Equal(t, "SECRET", loaded.TOTPSecret)
}
