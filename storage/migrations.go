package storage

import (
	"database/sql"
	"fmt"
	"sort"
)

// createTables creates the base schema. Statements are idempotent so
// startup is safe against an already-initialized database.
func (s *SQLite) createTables() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			totp_secret TEXT,
			mfa_enabled INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS permissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS roles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS role_permissions (
			role_id INTEGER NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
			permission_id INTEGER NOT NULL REFERENCES permissions(id),
			PRIMARY KEY (role_id, permission_id)
		)`,
		`CREATE TABLE IF NOT EXISTS user_roles (
			user_id INTEGER NOT NULL REFERENCES users(id),
			role_id INTEGER NOT NULL REFERENCES roles(id),
			assigned_at TEXT NOT NULL,
			PRIMARY KEY (user_id, role_id)
		)`,
		`CREATE TABLE IF NOT EXISTS incidents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			user_id TEXT NOT NULL,
			detected_at TEXT NOT NULL,
			resolved_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			message TEXT NOT NULL,
			recipient TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS playbooks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			steps TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS playbook_executions (
			id TEXT PRIMARY KEY,
			playbook_id TEXT NOT NULL,
			status TEXT NOT NULL,
			triggered_by TEXT NOT NULL,
			incident_id TEXT,
			started_at TEXT NOT NULL,
			finished_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_roles_user_id ON user_roles(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_role_permissions_role_id ON role_permissions(role_id)`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_status ON incidents(status)`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_user_id ON incidents(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_playbook_id ON playbook_executions(playbook_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.DB.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Migration is a single versioned schema change.
type Migration struct {
	Version string
	Name    string
	Up      func(tx *sql.Tx) error
}

// MigrationRunner applies registered migrations in version order, tracking
// applied versions in the schema_migrations table.
type MigrationRunner struct {
	sqlite     *SQLite
	migrations []Migration
}

// NewMigrationRunner creates a migration runner for the given database.
func NewMigrationRunner(sqlite *SQLite) *MigrationRunner {
	return &MigrationRunner{sqlite: sqlite}
}

// Register adds a migration to the runner.
func (r *MigrationRunner) Register(m Migration) {
	r.migrations = append(r.migrations, m)
}

// Run applies all pending migrations. Each migration runs in its own
// transaction together with its version record, so a failed migration
// leaves the database at the previous version.
func (r *MigrationRunner) Run() error {
	applied := make(map[string]bool)
	rows, err := r.sqlite.DB.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("error iterating migrations: %w", err)
	}
	_ = rows.Close()

	pending := make([]Migration, 0, len(r.migrations))
	for _, m := range r.migrations {
		if !applied[m.Version] {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })

	for _, m := range pending {
		tx, err := r.sqlite.DB.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %s: %w", m.Version, err)
		}
		if m.Up != nil {
			if err := m.Up(tx); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %s (%s) failed: %w", m.Version, m.Name, err)
			}
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, datetime('now'))",
			m.Version, m.Name,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.Version, err)
		}
		r.sqlite.Logger.Infof("Applied migration %s: %s", m.Version, m.Name)
	}

	return nil
}

// RegisterMigrations registers all schema migrations beyond the base
// schema. The base tables are created by createTables; the 1.0.0 entry
// only marks the base version as applied.
func RegisterMigrations(runner *MigrationRunner) {
	runner.Register(Migration{
		Version: "1.0.0",
		Name:    "initial_schema",
		Up: func(tx *sql.Tx) error {
			return nil
		},
	})
}
