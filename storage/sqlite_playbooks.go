package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"aegis/core"

	"go.uber.org/zap"
)

// PlaybookStorage defines playbook and execution-record persistence.
type PlaybookStorage interface {
	CreatePlaybook(ctx context.Context, playbook *core.Playbook) error
	GetPlaybook(ctx context.Context, id string) (*core.Playbook, error)
	GetPlaybookByName(ctx context.Context, name string) (*core.Playbook, error)
	ListPlaybooks(ctx context.Context) ([]core.Playbook, error)
	UpdatePlaybook(ctx context.Context, playbook *core.Playbook) error
	DeletePlaybook(ctx context.Context, id string) error
	CreateExecution(ctx context.Context, execution *core.PlaybookExecution) error
	GetExecution(ctx context.Context, id string) (*core.PlaybookExecution, error)
	ListExecutions(ctx context.Context, playbookID string) ([]core.PlaybookExecution, error)
}

// SQLitePlaybookStorage implements PlaybookStorage using SQLite. Steps are
// stored as a JSON column; they are read back in full every time, so the
// denormalisation costs nothing.
type SQLitePlaybookStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLitePlaybookStorage creates a new SQLite-based playbook storage.
func NewSQLitePlaybookStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLitePlaybookStorage {
	return &SQLitePlaybookStorage{sqlite: sqlite, logger: logger}
}

// CreatePlaybook persists a new playbook at version 1.
func (sps *SQLitePlaybookStorage) CreatePlaybook(ctx context.Context, playbook *core.Playbook) error {
	steps, err := json.Marshal(playbook.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal playbook steps: %w", err)
	}

	now := time.Now()
	playbook.Version = 1
	playbook.CreatedAt = now
	playbook.UpdatedAt = now

	_, err = sps.sqlite.DB.ExecContext(ctx, `
		INSERT INTO playbooks (id, name, description, steps, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		playbook.ID, playbook.Name, playbook.Description, string(steps),
		playbook.Version, now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrPlaybookNameExists
		}
		return fmt.Errorf("failed to create playbook: %w", err)
	}

	sps.logger.Infof("Created playbook %s (%s)", playbook.ID, playbook.Name)
	return nil
}

func (sps *SQLitePlaybookStorage) getPlaybook(ctx context.Context, query string, arg interface{}) (*core.Playbook, error) {
	var p core.Playbook
	var steps, createdAt, updatedAt string

	err := sps.sqlite.ReadDB.QueryRowContext(ctx, query, arg).Scan(
		&p.ID, &p.Name, &p.Description, &steps, &p.Version, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlaybookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get playbook: %w", err)
	}

	if err := json.Unmarshal([]byte(steps), &p.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal playbook steps: %w", err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

// GetPlaybook retrieves a playbook by ID.
func (sps *SQLitePlaybookStorage) GetPlaybook(ctx context.Context, id string) (*core.Playbook, error) {
	return sps.getPlaybook(ctx, `
		SELECT id, name, description, steps, version, created_at, updated_at
		FROM playbooks WHERE id = ?
	`, id)
}

// GetPlaybookByName retrieves a playbook by its unique name.
func (sps *SQLitePlaybookStorage) GetPlaybookByName(ctx context.Context, name string) (*core.Playbook, error) {
	return sps.getPlaybook(ctx, `
		SELECT id, name, description, steps, version, created_at, updated_at
		FROM playbooks WHERE name = ?
	`, name)
}

// ListPlaybooks retrieves all playbooks ordered by name.
func (sps *SQLitePlaybookStorage) ListPlaybooks(ctx context.Context) ([]core.Playbook, error) {
	rows, err := sps.sqlite.ReadDB.QueryContext(ctx, `
		SELECT id, name, description, steps, version, created_at, updated_at
		FROM playbooks ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query playbooks: %w", err)
	}
	defer rows.Close()

	var playbooks []core.Playbook
	for rows.Next() {
		var p core.Playbook
		var steps, createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &steps, &p.Version, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan playbook: %w", err)
		}
		if err := json.Unmarshal([]byte(steps), &p.Steps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal playbook steps: %w", err)
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		playbooks = append(playbooks, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating playbooks: %w", err)
	}
	return playbooks, nil
}

// UpdatePlaybook replaces a playbook definition and bumps its version.
func (sps *SQLitePlaybookStorage) UpdatePlaybook(ctx context.Context, playbook *core.Playbook) error {
	steps, err := json.Marshal(playbook.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal playbook steps: %w", err)
	}

	playbook.UpdatedAt = time.Now()
	result, err := sps.sqlite.DB.ExecContext(ctx, `
		UPDATE playbooks
		SET name = ?, description = ?, steps = ?, version = version + 1, updated_at = ?
		WHERE id = ?
	`,
		playbook.Name, playbook.Description, string(steps),
		playbook.UpdatedAt.Format(time.RFC3339), playbook.ID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrPlaybookNameExists
		}
		return fmt.Errorf("failed to update playbook: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrPlaybookNotFound
	}
	playbook.Version++

	sps.logger.Infof("Updated playbook %s to version %d", playbook.ID, playbook.Version)
	return nil
}

// DeletePlaybook removes a playbook. Execution records are kept for audit.
func (sps *SQLitePlaybookStorage) DeletePlaybook(ctx context.Context, id string) error {
	result, err := sps.sqlite.DB.ExecContext(ctx, `DELETE FROM playbooks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete playbook: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrPlaybookNotFound
	}

	sps.logger.Infof("Deleted playbook %s", id)
	return nil
}

// CreateExecution records a playbook run request.
func (sps *SQLitePlaybookStorage) CreateExecution(ctx context.Context, execution *core.PlaybookExecution) error {
	var finishedAt interface{}
	if execution.FinishedAt != nil {
		finishedAt = execution.FinishedAt.Format(time.RFC3339)
	}

	_, err := sps.sqlite.DB.ExecContext(ctx, `
		INSERT INTO playbook_executions (id, playbook_id, status, triggered_by, incident_id, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		execution.ID, execution.PlaybookID, string(execution.Status),
		execution.TriggeredBy, execution.IncidentID,
		execution.StartedAt.Format(time.RFC3339), finishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create playbook execution: %w", err)
	}

	sps.logger.Infof("Recorded execution %s of playbook %s", execution.ID, execution.PlaybookID)
	return nil
}

// GetExecution retrieves an execution record by ID.
func (sps *SQLitePlaybookStorage) GetExecution(ctx context.Context, id string) (*core.PlaybookExecution, error) {
	var e core.PlaybookExecution
	var status, startedAt string
	var incidentID, finishedAt sql.NullString

	err := sps.sqlite.ReadDB.QueryRowContext(ctx, `
		SELECT id, playbook_id, status, triggered_by, incident_id, started_at, finished_at
		FROM playbook_executions WHERE id = ?
	`, id).Scan(&e.ID, &e.PlaybookID, &status, &e.TriggeredBy, &incidentID, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrExecutionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get playbook execution: %w", err)
	}

	e.Status = core.ExecutionStatus(status)
	e.IncidentID = incidentID.String
	e.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	if finishedAt.Valid {
		t, _ := time.Parse(time.RFC3339, finishedAt.String)
		e.FinishedAt = &t
	}
	return &e, nil
}

// ListExecutions retrieves execution records for a playbook, newest first.
func (sps *SQLitePlaybookStorage) ListExecutions(ctx context.Context, playbookID string) ([]core.PlaybookExecution, error) {
	rows, err := sps.sqlite.ReadDB.QueryContext(ctx, `
		SELECT id, playbook_id, status, triggered_by, incident_id, started_at, finished_at
		FROM playbook_executions WHERE playbook_id = ? ORDER BY started_at DESC
	`, playbookID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playbook executions: %w", err)
	}
	defer rows.Close()

	var executions []core.PlaybookExecution
	for rows.Next() {
		var e core.PlaybookExecution
		var status, startedAt string
		var incidentID, finishedAt sql.NullString
		if err := rows.Scan(&e.ID, &e.PlaybookID, &status, &e.TriggeredBy, &incidentID, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan playbook execution: %w", err)
		}
		e.Status = core.ExecutionStatus(status)
		e.IncidentID = incidentID.String
		e.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		if finishedAt.Valid {
			t, _ := time.Parse(time.RFC3339, finishedAt.String)
			e.FinishedAt = &t
		}
		executions = append(executions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating playbook executions: %w", err)
	}
	return executions, nil
}
