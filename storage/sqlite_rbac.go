package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SQLitePermissionStorage implements PermissionStorage using SQLite.
type SQLitePermissionStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLitePermissionStorage creates a new SQLite-based permission storage.
func NewSQLitePermissionStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLitePermissionStorage {
	return &SQLitePermissionStorage{sqlite: sqlite, logger: logger}
}

// CreatePermission persists a new permission. Name uniqueness is enforced
// here and by the UNIQUE constraint underneath.
func (sps *SQLitePermissionStorage) CreatePermission(ctx context.Context, perm *Permission) error {
	if perm.Name == "" {
		return fmt.Errorf("%w: permission name cannot be empty", ErrInvalidInput)
	}
	if len(perm.Name) > 100 {
		return fmt.Errorf("%w: permission name exceeds maximum length of 100 characters", ErrInvalidInput)
	}

	existing, err := sps.GetPermissionByName(ctx, perm.Name)
	if err == nil && existing != nil {
		return ErrDuplicatePermission
	}

	perm.CreatedAt = time.Now()

	result, err := sps.sqlite.DB.ExecContext(ctx,
		"INSERT INTO permissions (name, created_at) VALUES (?, ?)",
		perm.Name, perm.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create permission: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	perm.ID = id

	sps.logger.Infof("Created permission %s (ID: %d)", perm.Name, perm.ID)
	return nil
}

// GetPermissionByID retrieves a permission by ID.
func (sps *SQLitePermissionStorage) GetPermissionByID(ctx context.Context, id int64) (*Permission, error) {
	return sps.getPermission(ctx, "SELECT id, name, created_at FROM permissions WHERE id = ?", id)
}

// GetPermissionByName retrieves a permission by its unique name.
func (sps *SQLitePermissionStorage) GetPermissionByName(ctx context.Context, name string) (*Permission, error) {
	return sps.getPermission(ctx, "SELECT id, name, created_at FROM permissions WHERE name = ?", name)
}

func (sps *SQLitePermissionStorage) getPermission(ctx context.Context, query string, arg interface{}) (*Permission, error) {
	var perm Permission
	var createdAt string

	err := sps.sqlite.ReadDB.QueryRowContext(ctx, query, arg).Scan(&perm.ID, &perm.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPermissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}

	perm.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &perm, nil
}

// ListPermissions retrieves all permissions ordered by ID.
func (sps *SQLitePermissionStorage) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := sps.sqlite.ReadDB.QueryContext(ctx,
		"SELECT id, name, created_at FROM permissions ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query permissions: %w", err)
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var perm Permission
		var createdAt string
		if err := rows.Scan(&perm.ID, &perm.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perm.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating permissions: %w", err)
	}
	return perms, nil
}

// SQLiteRoleStorage implements RoleStorage using SQLite. A role and its
// permission links are written in a single transaction so a failed write
// never leaves a partial role behind.
type SQLiteRoleStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteRoleStorage creates a new SQLite-based role storage.
func NewSQLiteRoleStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteRoleStorage {
	return &SQLiteRoleStorage{sqlite: sqlite, logger: logger}
}

// CreateRole creates a new role with its permission set.
func (srs *SQLiteRoleStorage) CreateRole(ctx context.Context, role *Role) error {
	if role.Name == "" {
		return fmt.Errorf("%w: role name cannot be empty", ErrInvalidInput)
	}
	if len(role.Name) > 50 {
		return fmt.Errorf("%w: role name exceeds maximum length of 50 characters", ErrInvalidInput)
	}

	existing, err := srs.GetRoleByName(ctx, role.Name)
	if err == nil && existing != nil {
		return ErrDuplicateRole
	}

	now := time.Now()
	role.CreatedAt = now
	role.UpdatedAt = now

	tx, err := srs.sqlite.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		"INSERT INTO roles (name, description, created_at, updated_at) VALUES (?, ?, ?, ?)",
		role.Name, role.Description,
		role.CreatedAt.Format(time.RFC3339), role.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	role.ID = id

	for _, perm := range role.Permissions {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO role_permissions (role_id, permission_id) VALUES (?, ?)",
			role.ID, perm.ID,
		); err != nil {
			return fmt.Errorf("failed to link permission %s to role: %w", perm.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit role creation: %w", err)
	}

	srs.logger.Infof("Created role %s (ID: %d) with %d permissions", role.Name, role.ID, len(role.Permissions))
	return nil
}

// GetRoleByID retrieves a role with its permission set.
func (srs *SQLiteRoleStorage) GetRoleByID(ctx context.Context, id int64) (*Role, error) {
	return srs.getRole(ctx, "SELECT id, name, description, created_at, updated_at FROM roles WHERE id = ?", id)
}

// GetRoleByName retrieves a role by name with its permission set.
func (srs *SQLiteRoleStorage) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	return srs.getRole(ctx, "SELECT id, name, description, created_at, updated_at FROM roles WHERE name = ?", name)
}

func (srs *SQLiteRoleStorage) getRole(ctx context.Context, query string, arg interface{}) (*Role, error) {
	var role Role
	var createdAt, updatedAt string

	err := srs.sqlite.ReadDB.QueryRowContext(ctx, query, arg).Scan(
		&role.ID, &role.Name, &role.Description, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	role.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	role.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	perms, err := srs.loadPermissions(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	role.Permissions = perms
	return &role, nil
}

// loadPermissions loads the permission set for a role.
func (srs *SQLiteRoleStorage) loadPermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := srs.sqlite.ReadDB.QueryContext(ctx, `
		SELECT p.id, p.name, p.created_at
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = ?
		ORDER BY p.id ASC
	`, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query role permissions: %w", err)
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var perm Permission
		var createdAt string
		if err := rows.Scan(&perm.ID, &perm.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perm.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating role permissions: %w", err)
	}
	return perms, nil
}

// ListRoles retrieves all roles with their permission sets.
func (srs *SQLiteRoleStorage) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := srs.sqlite.ReadDB.QueryContext(ctx,
		"SELECT id, name, description, created_at, updated_at FROM roles ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		var createdAt, updatedAt string
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		role.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		role.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating roles: %w", err)
	}

	for i := range roles {
		perms, err := srs.loadPermissions(ctx, roles[i].ID)
		if err != nil {
			return nil, err
		}
		roles[i].Permissions = perms
	}
	return roles, nil
}

// UpdateRole replaces a role's name, description, and permission set.
func (srs *SQLiteRoleStorage) UpdateRole(ctx context.Context, role *Role) error {
	existing, err := srs.GetRoleByID(ctx, role.ID)
	if err != nil {
		return err
	}

	role.CreatedAt = existing.CreatedAt
	role.UpdatedAt = time.Now()

	tx, err := srs.sqlite.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		"UPDATE roles SET name = ?, description = ?, updated_at = ? WHERE id = ?",
		role.Name, role.Description, role.UpdatedAt.Format(time.RFC3339), role.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrRoleNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM role_permissions WHERE role_id = ?", role.ID); err != nil {
		return fmt.Errorf("failed to clear role permissions: %w", err)
	}
	for _, perm := range role.Permissions {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO role_permissions (role_id, permission_id) VALUES (?, ?)",
			role.ID, perm.ID,
		); err != nil {
			return fmt.Errorf("failed to link permission %s to role: %w", perm.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit role update: %w", err)
	}

	srs.logger.Infof("Updated role %s (ID: %d)", role.Name, role.ID)
	return nil
}

// DeleteRole deletes a role. Built-in roles and roles still held by users
// cannot be deleted; assignments are never cascade-deleted.
func (srs *SQLiteRoleStorage) DeleteRole(ctx context.Context, id int64) error {
	role, err := srs.GetRoleByID(ctx, id)
	if err != nil {
		return err
	}

	if IsBuiltinRole(role.Name) {
		return fmt.Errorf("%w: %s", ErrBuiltinRole, role.Name)
	}

	count, err := srs.CountAssignments(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %d users hold role %s", ErrRoleInUse, count, role.Name)
	}

	result, err := srs.sqlite.DB.ExecContext(ctx, "DELETE FROM roles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrRoleNotFound
	}

	srs.logger.Infof("Deleted role %s (ID: %d)", role.Name, id)
	return nil
}

// AddRolePermission links a permission to a role. INSERT OR IGNORE makes
// the duplicate case a clean no-op rather than a constraint error.
func (srs *SQLiteRoleStorage) AddRolePermission(ctx context.Context, roleID, permissionID int64) (bool, error) {
	result, err := srs.sqlite.DB.ExecContext(ctx,
		"INSERT OR IGNORE INTO role_permissions (role_id, permission_id) VALUES (?, ?)",
		roleID, permissionID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to add permission to role: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n > 0 {
		_, err = srs.sqlite.DB.ExecContext(ctx,
			"UPDATE roles SET updated_at = ? WHERE id = ?",
			time.Now().Format(time.RFC3339), roleID,
		)
		if err != nil {
			return true, fmt.Errorf("failed to touch role: %w", err)
		}
	}
	return n > 0, nil
}

// CountAssignments returns how many users currently hold the role.
func (srs *SQLiteRoleStorage) CountAssignments(ctx context.Context, roleID int64) (int64, error) {
	var count int64
	err := srs.sqlite.ReadDB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM user_roles WHERE role_id = ?", roleID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count role assignments: %w", err)
	}
	return count, nil
}
