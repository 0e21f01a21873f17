package storage

import (
	"context"
	"fmt"
	"testing"

	"aegis/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationStorage_CreateAndGet(t *testing.T) {
	sqlite, logger := setupTestDB(t)
	store := NewSQLiteNotificationStorage(sqlite, logger)
	ctx := context.Background()

	n := &core.Notification{
		ID:        "note-1",
		Message:   "Incident inc-1 escalated",
		Recipient: "oncall@example.com",
		Status:    core.NotificationPending,
	}
	require.NoError(t, store.CreateNotification(ctx, n))

	loaded, err := store.GetNotification(ctx, "note-1")
	require.NoError(t, err)
	assert.Equal(t, "oncall@example.com", loaded.Recipient)
	assert.Equal(t, core.NotificationPending, loaded.Status)
}

func TestNotificationStorage_NotFound(t *testing.T) {
	sqlite, logger := setupTestDB(t)
	store := NewSQLiteNotificationStorage(sqlite, logger)

	_, err := store.GetNotification(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotificationNotFound)

	err = store.UpdateNotificationStatus(context.Background(), "missing", core.NotificationSent)
	assert.ErrorIs(t, err, ErrNotificationNotFound)
}

func TestNotificationStorage_ListFiltersByRecipient(t *testing.T) {
	sqlite, logger := setupTestDB(t)
	store := NewSQLiteNotificationStorage(sqlite, logger)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		recipient := "a@example.com"
		if i == 2 {
			recipient = "b@example.com"
		}
		require.NoError(t, store.CreateNotification(ctx, &core.Notification{
			ID:        fmt.Sprintf("note-%d", i),
			Message:   "m",
			Recipient: recipient,
			Status:    core.NotificationPending,
		}))
	}

	all, err := store.ListNotifications(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	forA, err := store.ListNotifications(ctx, "a@example.com", 10, 0)
	require.NoError(t, err)
	assert.Len(t, forA, 2)
}

func TestNotificationStorage_UpdateStatus(t *testing.T) {
	sqlite, logger := setupTestDB(t)
	store := NewSQLiteNotificationStorage(sqlite, logger)
	ctx := context.Background()

	require.NoError(t, store.CreateNotification(ctx, &core.Notification{
		ID: "note-s", Message: "m", Recipient: "r", Status: core.NotificationPending,
	}))
	require.NoError(t, store.UpdateNotificationStatus(ctx, "note-s", core.NotificationSent))

	loaded, err := store.GetNotification(ctx, "note-s")
	require.NoError(t, err)
	assert.Equal(t, core.NotificationSent, loaded.Status)
}
