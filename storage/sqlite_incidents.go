package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"aegis/core"

	"go.uber.org/zap"
)

// IncidentStorage defines incident persistence.
type IncidentStorage interface {
	CreateIncident(ctx context.Context, incident *core.Incident) error
	GetIncident(ctx context.Context, id string) (*core.Incident, error)
	ListIncidents(ctx context.Context, status core.IncidentStatus, limit, offset int) ([]core.Incident, error)
	UpdateIncidentStatus(ctx context.Context, id string, status core.IncidentStatus, resolvedAt *time.Time) error
}

// SQLiteIncidentStorage implements IncidentStorage using SQLite.
type SQLiteIncidentStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteIncidentStorage creates a new SQLite-based incident storage.
func NewSQLiteIncidentStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteIncidentStorage {
	return &SQLiteIncidentStorage{sqlite: sqlite, logger: logger}
}

// CreateIncident persists a new incident.
func (sis *SQLiteIncidentStorage) CreateIncident(ctx context.Context, incident *core.Incident) error {
	now := time.Now()
	incident.CreatedAt = now
	incident.UpdatedAt = now

	var resolvedAt interface{}
	if incident.ResolvedAt != nil {
		resolvedAt = incident.ResolvedAt.Format(time.RFC3339)
	}

	_, err := sis.sqlite.DB.ExecContext(ctx, `
		INSERT INTO incidents (id, title, description, status, user_id, detected_at, resolved_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		incident.ID, incident.Title, incident.Description, string(incident.Status),
		incident.UserID, incident.DetectedAt.Format(time.RFC3339), resolvedAt,
		incident.CreatedAt.Format(time.RFC3339), incident.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}

	sis.logger.Infof("Created incident %s (%s)", incident.ID, incident.Title)
	return nil
}

// GetIncident retrieves an incident by ID.
func (sis *SQLiteIncidentStorage) GetIncident(ctx context.Context, id string) (*core.Incident, error) {
	var incident core.Incident
	var status, detectedAt, createdAt, updatedAt string
	var resolvedAt sql.NullString

	err := sis.sqlite.ReadDB.QueryRowContext(ctx, `
		SELECT id, title, description, status, user_id, detected_at, resolved_at, created_at, updated_at
		FROM incidents WHERE id = ?
	`, id).Scan(
		&incident.ID, &incident.Title, &incident.Description, &status,
		&incident.UserID, &detectedAt, &resolvedAt, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIncidentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}

	incident.Status = core.IncidentStatus(status)
	incident.DetectedAt, _ = time.Parse(time.RFC3339, detectedAt)
	incident.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	incident.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if resolvedAt.Valid {
		t, _ := time.Parse(time.RFC3339, resolvedAt.String)
		incident.ResolvedAt = &t
	}
	return &incident, nil
}

// ListIncidents retrieves incidents, newest first, optionally filtered by
// status.
func (sis *SQLiteIncidentStorage) ListIncidents(ctx context.Context, status core.IncidentStatus, limit, offset int) ([]core.Incident, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, title, description, status, user_id, detected_at, resolved_at, created_at, updated_at
		FROM incidents
	`
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY detected_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := sis.sqlite.ReadDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	var incidents []core.Incident
	for rows.Next() {
		var incident core.Incident
		var st, detectedAt, createdAt, updatedAt string
		var resolvedAt sql.NullString
		if err := rows.Scan(
			&incident.ID, &incident.Title, &incident.Description, &st,
			&incident.UserID, &detectedAt, &resolvedAt, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		incident.Status = core.IncidentStatus(st)
		incident.DetectedAt, _ = time.Parse(time.RFC3339, detectedAt)
		incident.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		incident.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		if resolvedAt.Valid {
			t, _ := time.Parse(time.RFC3339, resolvedAt.String)
			incident.ResolvedAt = &t
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating incidents: %w", err)
	}
	return incidents, nil
}

// UpdateIncidentStatus updates the status (and resolved timestamp) of an
// incident.
func (sis *SQLiteIncidentStorage) UpdateIncidentStatus(ctx context.Context, id string, status core.IncidentStatus, resolvedAt *time.Time) error {
	var resolved interface{}
	if resolvedAt != nil {
		resolved = resolvedAt.Format(time.RFC3339)
	}

	result, err := sis.sqlite.DB.ExecContext(ctx, `
		UPDATE incidents SET status = ?, resolved_at = ?, updated_at = ? WHERE id = ?
	`, string(status), resolved, time.Now().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update incident status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrIncidentNotFound
	}
	return nil
}
