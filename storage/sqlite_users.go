package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SQLiteUserStorage implements UserStorage using SQLite. It also owns the
// user_roles join table: assignment is a relation maintained by the
// authorization service, not a column on either entity.
type SQLiteUserStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteUserStorage creates a new SQLite-based user storage.
func NewSQLiteUserStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteUserStorage {
	return &SQLiteUserStorage{sqlite: sqlite, logger: logger}
}

// CreateUser persists a new user. The Password field must already be a
// bcrypt hash; plaintext never reaches this layer.
func (sus *SQLiteUserStorage) CreateUser(ctx context.Context, user *User) error {
	if user.Username == "" {
		return fmt.Errorf("%w: username cannot be empty", ErrInvalidInput)
	}

	existing, err := sus.GetUserByUsername(ctx, user.Username)
	if err == nil && existing != nil {
		return ErrDuplicateUser
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	result, err := sus.sqlite.DB.ExecContext(ctx, `
		INSERT INTO users (username, password, active, totp_secret, mfa_enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		user.Username, user.Password, boolToInt(user.Active),
		user.TOTPSecret, boolToInt(user.MFAEnabled),
		user.CreatedAt.Format(time.RFC3339), user.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id

	sus.logger.Infof("Created user %s (ID: %d)", user.Username, user.ID)
	return nil
}

// GetUserByID retrieves a user by ID.
func (sus *SQLiteUserStorage) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return sus.getUser(ctx, "WHERE id = ?", id)
}

// GetUserByUsername retrieves a user by username.
func (sus *SQLiteUserStorage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return sus.getUser(ctx, "WHERE username = ?", username)
}

func (sus *SQLiteUserStorage) getUser(ctx context.Context, where string, arg interface{}) (*User, error) {
	query := `
		SELECT id, username, password, active, totp_secret, mfa_enabled, created_at, updated_at
		FROM users ` + where

	var user User
	var active, mfaEnabled int
	var totpSecret sql.NullString
	var createdAt, updatedAt string

	err := sus.sqlite.ReadDB.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.Password, &active,
		&totpSecret, &mfaEnabled, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.Active = active != 0
	user.MFAEnabled = mfaEnabled != 0
	user.TOTPSecret = totpSecret.String
	user.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	user.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &user, nil
}

// ListUsers retrieves all users ordered by ID.
func (sus *SQLiteUserStorage) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := sus.sqlite.ReadDB.QueryContext(ctx, `
		SELECT id, username, password, active, totp_secret, mfa_enabled, created_at, updated_at
		FROM users ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var user User
		var active, mfaEnabled int
		var totpSecret sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(
			&user.ID, &user.Username, &user.Password, &active,
			&totpSecret, &mfaEnabled, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		user.Active = active != 0
		user.MFAEnabled = mfaEnabled != 0
		user.TOTPSecret = totpSecret.String
		user.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		user.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		users = append(users, &user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// UpdateUser updates a user's mutable fields.
func (sus *SQLiteUserStorage) UpdateUser(ctx context.Context, user *User) error {
	user.UpdatedAt = time.Now()

	result, err := sus.sqlite.DB.ExecContext(ctx, `
		UPDATE users
		SET password = ?, active = ?, totp_secret = ?, mfa_enabled = ?, updated_at = ?
		WHERE id = ?
	`,
		user.Password, boolToInt(user.Active), user.TOTPSecret,
		boolToInt(user.MFAEnabled), user.UpdatedAt.Format(time.RFC3339), user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// AssignRole links a role to a user. INSERT OR IGNORE keeps the operation
// idempotent: re-assigning an already-held role affects zero rows and
// returns false with no error.
func (sus *SQLiteUserStorage) AssignRole(ctx context.Context, userID, roleID int64) (bool, error) {
	result, err := sus.sqlite.DB.ExecContext(ctx,
		"INSERT OR IGNORE INTO user_roles (user_id, role_id, assigned_at) VALUES (?, ?, ?)",
		userID, roleID, time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("failed to assign role: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return n > 0, nil
}

// GetUserRoles returns all roles assigned to the user with permission
// sets loaded. Iteration order carries no meaning to callers.
func (sus *SQLiteUserStorage) GetUserRoles(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := sus.sqlite.ReadDB.QueryContext(ctx, `
		SELECT r.id, r.name, r.description, r.created_at, r.updated_at
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user roles: %w", err)
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
		return nil, fmt.Errorf("error iterating user roles: %w", err)
	}

	for i := range roles {
		perms, err := sus.loadPermissions(ctx, roles[i].ID)
		if err != nil {
			return nil, err
		}
		roles[i].Permissions = perms
	}
	return roles, nil
}

func (sus *SQLiteUserStorage) loadPermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := sus.sqlite.ReadDB.QueryContext(ctx, `
		SELECT p.id, p.name, p.created_at
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = ?
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

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
