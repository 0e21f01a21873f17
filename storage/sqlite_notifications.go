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

// NotificationStorage defines notification persistence.
type NotificationStorage interface {
	CreateNotification(ctx context.Context, notification *core.Notification) error
	GetNotification(ctx context.Context, id string) (*core.Notification, error)
	ListNotifications(ctx context.Context, recipient string, limit, offset int) ([]core.Notification, error)
	UpdateNotificationStatus(ctx context.Context, id string, status core.NotificationStatus) error
}

// SQLiteNotificationStorage implements NotificationStorage using SQLite.
type SQLiteNotificationStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteNotificationStorage creates a new SQLite-based notification storage.
func NewSQLiteNotificationStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteNotificationStorage {
	return &SQLiteNotificationStorage{sqlite: sqlite, logger: logger}
}

// CreateNotification persists a new notification record.
func (sns *SQLiteNotificationStorage) CreateNotification(ctx context.Context, notification *core.Notification) error {
	now := time.Now()
	notification.CreatedAt = now
	notification.UpdatedAt = now

	_, err := sns.sqlite.DB.ExecContext(ctx, `
		INSERT INTO notifications (id, message, recipient, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		notification.ID, notification.Message, notification.Recipient,
		string(notification.Status), now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	sns.logger.Infof("Created notification %s for %s", notification.ID, notification.Recipient)
	return nil
}

// GetNotification retrieves a notification by ID.
func (sns *SQLiteNotificationStorage) GetNotification(ctx context.Context, id string) (*core.Notification, error) {
	var n core.Notification
	var status, createdAt, updatedAt string

	err := sns.sqlite.ReadDB.QueryRowContext(ctx, `
		SELECT id, message, recipient, status, created_at, updated_at
		FROM notifications WHERE id = ?
	`, id).Scan(&n.ID, &n.Message, &n.Recipient, &status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}

	n.Status = core.NotificationStatus(status)
	n.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	n.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &n, nil
}

// ListNotifications retrieves notifications, newest first, optionally
// filtered by recipient.
func (sns *SQLiteNotificationStorage) ListNotifications(ctx context.Context, recipient string, limit, offset int) ([]core.Notification, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, message, recipient, status, created_at, updated_at
		FROM notifications
	`
	args := []interface{}{}
	if recipient != "" {
		query += " WHERE recipient = ?"
		args = append(args, recipient)
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := sns.sqlite.ReadDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []core.Notification
	for rows.Next() {
		var n core.Notification
		var status, createdAt, updatedAt string
		if err := rows.Scan(&n.ID, &n.Message, &n.Recipient, &status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Status = core.NotificationStatus(status)
		n.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		n.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return notifications, nil
}

// UpdateNotificationStatus transitions a notification to a new delivery
// state.
func (sns *SQLiteNotificationStorage) UpdateNotificationStatus(ctx context.Context, id string, status core.NotificationStatus) error {
	result, err := sns.sqlite.DB.ExecContext(ctx, `
		UPDATE notifications SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), time.Now().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update notification status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
