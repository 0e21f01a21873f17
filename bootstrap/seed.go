package bootstrap

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"aegis/storage"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// SeedRBAC ensures the permission catalogue and the built-in roles
// exist with their expected grants. Safe to run on every startup:
// everything it writes is idempotent.
func SeedRBAC(
	ctx context.Context,
	perms *storage.SQLitePermissionStorage,
	roles *storage.SQLiteRoleStorage,
	logger *zap.SugaredLogger,
) error {
	permIDs := make(map[string]int64)
	for _, name := range storage.DefaultPermissions() {
		perm := &storage.Permission{Name: name}
		err := perms.CreatePermission(ctx, perm)
		if errors.Is(err, storage.ErrDuplicatePermission) {
			perm, err = perms.GetPermissionByName(ctx, name)
		}
		if err != nil {
			return fmt.Errorf("failed to seed permission %q: %w", name, err)
		}
		permIDs[name] = perm.ID
	}

	for roleName, grantNames := range storage.DefaultRolePermissions() {
		role, err := roles.GetRoleByName(ctx, roleName)
		if errors.Is(err, storage.ErrRoleNotFound) {
			role = &storage.Role{Name: roleName, Description: "Built-in " + roleName + " role"}
			if err := roles.CreateRole(ctx, role); err != nil {
				return fmt.Errorf("failed to seed role %q: %w", roleName, err)
			}
		} else if err != nil {
			return fmt.Errorf("failed to look up role %q: %w", roleName, err)
		}

		for _, grant := range grantNames {
			permID, ok := permIDs[grant]
			if !ok {
				return fmt.Errorf("seed grant references unknown permission %q", grant)
			}
			if _, err := roles.AddRolePermission(ctx, role.ID, permID); err != nil {
				return fmt.Errorf("failed to grant %q to role %q: %w", grant, roleName, err)
			}
		}
	}

	logger.Infof("Seeded %d permissions and %d built-in roles", len(permIDs), len(storage.DefaultRolePermissions()))
	return nil
}

// FirstRunResult reports credentials created during first-run setup.
type FirstRunResult struct {
	AdminCreated  bool
	AdminPassword string
}

// SeedAdminUser creates the initial admin account when no users exist.
// The password comes from AEGIS_ADMIN_PASSWORD, or is generated and
// reported back for one-time display.
func SeedAdminUser(
	ctx context.Context,
	users *storage.SQLiteUserStorage,
	roles *storage.SQLiteRoleStorage,
	bcryptCost int,
	logger *zap.SugaredLogger,
) (*FirstRunResult, error) {
	existing, err := users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if len(existing) > 0 {
		return &FirstRunResult{}, nil
	}

	password := os.Getenv("AEGIS_ADMIN_PASSWORD")
	generated := false
	if password == "" {
		raw := make([]byte, 24)
		if _, err := rand.Read(raw); err != nil {
			return nil, fmt.Errorf("failed to generate admin password: %w", err)
		}
		password = base64.RawURLEncoding.EncodeToString(raw)
		generated = true
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &storage.User{Username: "admin", Password: string(hash), Active: true}
	if err := users.CreateUser(ctx, admin); err != nil {
		return nil, fmt.Errorf("failed to create admin user: %w", err)
	}

	adminRole, err := roles.GetRoleByName(ctx, storage.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("admin role missing during first-run setup: %w", err)
	}
	if _, err := users.AssignRole(ctx, admin.ID, adminRole.ID); err != nil {
		return nil, fmt.Errorf("failed to assign admin role: %w", err)
	}

	logger.Infow("AUDIT: First-run admin account created", "username", "admin")

	result := &FirstRunResult{AdminCreated: true}
	if generated {
		result.AdminPassword = password
	}
	return result, nil
}
