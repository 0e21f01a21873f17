package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"aegis/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncidentStorage_CreateAndGet(t *testing.T) {
	sqlite, logger := setupTestDB(t)
	store := NewSQLiteIncidentStorage(sqlite, logger)
	ctx := context.Background()

	incident := &core.Incident{
		ID:          "inc-1",
		Title:       "Suspicious login",
		Description: "Multiple failed logins from one IP",
		Status:      core.IncidentOpen,
		UserID:      "analyst-1",
		DetectedAt:  time.Now().Add(-time.Hour),
	}
	require.NoError(t, store.CreateIncident(ctx, incident))

	loaded, err := store.GetIncident(ctx, "inc-1")
	require.NoError(t, err)
	assert.Equal(t, "Suspicious login", loaded.Title)
	assert.Equal(t, core.IncidentOpen, loaded.Status)
	assert.Nil(t, loaded.ResolvedAt)
}

func TestIncidentStorage_NotFound(t *testing.T) {
	sqlite, logger := setupTestDB(t)
	store := NewSQLiteIncidentStorage(sqlite, logger)

	_, err := store.GetIncident(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrIncidentNotFound)

	err = store.UpdateIncidentStatus(context.Background(), "missing", core.IncidentClosed, nil)
	assert.ErrorIs(t, err, ErrIncidentNotFound)
}

func TestIncidentStorage_ListFiltersByStatus(t *testing.T) {
	sqlite, logger := setupTestDB(t)
	store := NewSQLiteIncidentStorage(sqlite, logger)
	ctx := context.Background()

	base := time.Now().Add(-24 * time.Hour)
	for i := 0; i < 3; i++ {
		status := core.IncidentOpen
		if i == 2 {
			status = core.IncidentInvestigating
		}
		require.NoError(t, store.CreateIncident(ctx, &core.Incident{
			ID:         fmt.Sprintf("inc-%d", i),
			Title:      fmt.Sprintf("incident %d", i),
			Status:     status,
			UserID:     "analyst-1",
			DetectedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	all, err := store.ListIncidents(ctx, "", 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest detection first.
	assert.Equal(t, "inc-2", all[0].ID)

	open, err := store.ListIncidents(ctx, core.IncidentOpen, 10, 0)
	require.NoError(t, err)
	assert.Len(t, open, 2)
}

func TestIncidentStorage_ListPagination(t *testing.T) {
	sqlite, logger := setupTestDB(t)
	store := NewSQLiteIncidentStorage(sqlite, logger)
	ctx := context.Background()

	base := time.Now().Add(-24 * time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.CreateIncident(ctx, &core.Incident{
			ID:         fmt.Sprintf("inc-%d", i),
			Title:      "x",
			Status:     core.IncidentOpen,
			UserID:     "u",
			DetectedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	page, err := store.ListIncidents(ctx, "", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "inc-2", page[0].ID)
	assert.Equal(t, "inc-1", page[1].ID)
}

func TestIncidentStorage_UpdateStatusStampsResolvedAt(t *testing.T) {
	sqlite, logger := setupTestDB(t)
	store := NewSQLiteIncidentStorage(sqlite, logger)
	ctx := context.Background()

	require.NoError(t, store.CreateIncident(ctx, &core.Incident{
		ID: "inc-r", Title: "t", Status: core.IncidentOpen, UserID: "u", DetectedAt: time.Now(),
	}))

	now := time.Now()
	require.NoError(t, store.UpdateIncidentStatus(ctx, "inc-r", core.IncidentResolved, &now))

	loaded, err := store.GetIncident(ctx, "inc-r")
	require.NoError(t, err)
	assert.Equal(t, core.IncidentResolved, loaded.Status)
	require.NotNil(t, loaded.ResolvedAt)

	// Moving back to investigating clears the timestamp.
	require.NoError(t, store.UpdateIncidentStatus(ctx, "inc-r", core.IncidentInvestigating, nil))
	loaded, err = store.GetIncident(ctx, "inc-r")
	require.NoError(t, err)
	assert.Nil(t, loaded.ResolvedAt)
}
