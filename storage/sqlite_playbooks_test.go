package storage

import (
	"context"
	"testing"
	"time"

	"aegis/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlaybook(id, name string) *core.Playbook {
	return &core.Playbook{
		ID:          id,
		Name:        name,
		Description: "Containment steps",
		Steps: []core.PlaybookStep{
			{Name: "isolate", Action: "isolate-host", Parameters: map[string]string{"mode": "hard"}},
			{Name: "notify", Action: "notify-oncall"},
		},
	}
}

func TestPlaybookStorage_CreateAndGet(t *testing.T) {
	sqlite, logger := setupTestDB(t)
	store := NewSQLitePlaybookStorage(sqlite, logger)
	ctx := context.Background()

	pb := testPlaybook("pb-1", "ransomware-response")
	require.NoError(t, store.CreatePlaybook(ctx, pb))
	assert.Equal(t, 1, pb.Version)

	byID, err := store.GetPlaybook(ctx, "pb-1")
	require.NoError(t, err)
	require.Len(t, byID.Steps, 2)
	assert.Equal(t, "isolate-host", byID.Steps[0].Action)
	assert.Equal(t, "hard", byID.Steps[0].Parameters["mode"])

	byName, err := store.GetPlaybookByName(ctx, "ransomware-response")
	require.NoError(t, err)
	assert.Equal(t, "pb-1", byName.ID)
}

func TestPlaybookStorage_DuplicateName(t *testing.T) {
	sqlite, logger := setupTestDB(t)
	store := NewSQLitePlaybookStorage(sqlite, logger)
	ctx := context.Background()

	require.NoError(t, store.CreatePlaybook(ctx, testPlaybook("pb-1", "dup")))
	err := store.CreatePlaybook(ctx, testPlaybook("pb-2", "dup"))
	assert.ErrorIs(t, err, ErrPlaybookNameExists)
}

func TestPlaybookStorage_NotFound(t *testing.T) {
	sqlite, logger := setupTestDB(t)
	store := NewSQLitePlaybookStorage(sqlite, logger)
	ctx := context.Background()

	_, err := store.GetPlaybook(ctx, "missing")
	assert.ErrorIs(t, err, ErrPlaybookNotFound)

	assert.ErrorIs(t, store.DeletePlaybook(ctx, "missing"), ErrPlaybookNotFound)
	assert.ErrorIs(t, store.UpdatePlaybook(ctx, testPlaybook("missing", "x")), ErrPlaybookNotFound)
}

func TestPlaybookStorage_UpdateBumpsVersion(t *testing.T) {
	sqlite, logger := setupTestDB(t)
	store := NewSQLitePlaybookStorage(sqlite, logger)
	ctx := context.Background()

	pb := testPlaybook("pb-1", "phishing-response")
	require.NoError(t, store.CreatePlaybook(ctx, pb))

	pb.Description = "updated"
	pb.Steps = pb.Steps[:1]
	require.NoError(t, store.UpdatePlaybook(ctx, pb))
	assert.Equal(t, 2, pb.Version)

	loaded, err := store.GetPlaybook(ctx, "pb-1")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Version)
	assert.Equal(t, "updated", loaded.Description)
	assert.Len(t, loaded.Steps, 1)
}

func TestPlaybookStorage_ListOrderedByName(t *testing.T) {
	sqlite, logger := setupTestDB(t)
	store := NewSQLitePlaybookStorage(sqlite, logger)
	ctx := context.Background()

	require.NoError(t, store.CreatePlaybook(ctx, testPlaybook("pb-1", "zeta")))
	require.NoError(t, store.CreatePlaybook(ctx, testPlaybook("pb-2", "alpha")))

	playbooks, err := store.ListPlaybooks(ctx)
	require.NoError(t, err)
	require.Len(t, playbooks, 2)
	assert.Equal(t, "alpha", playbooks[0].Name)
	assert.Equal(t, "zeta", playbooks[1].Name)
}

func TestPlaybookStorage_ExecutionsSurviveDelete(t *testing.T) {
	sqlite, logger := setupTestDB(t)
	store := NewSQLitePlaybookStorage(sqlite, logger)
	ctx := context.Background()

	pb := testPlaybook("pb-1", "short-lived")
	require.NoError(t, store.CreatePlaybook(ctx, pb))

	exec := &core.PlaybookExecution{
		ID:          "exec-1",
		PlaybookID:  "pb-1",
		Status:      core.ExecutionPending,
		TriggeredBy: "admin",
		IncidentID:  "inc-1",
		StartedAt:   time.Now(),
	}
	require.NoError(t, store.CreateExecution(ctx, exec))
	require.NoError(t, store.DeletePlaybook(ctx, "pb-1"))

	loaded, err := store.GetExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, core.ExecutionPending, loaded.Status)
	assert.Equal(t, "inc-1", loaded.IncidentID)
	assert.Nil(t, loaded.FinishedAt)
}

func TestPlaybookStorage_ListExecutions(t *testing.T) {
	sqlite, logger := setupTestDB(t)
	store := NewSQLitePlaybookStorage(sqlite, logger)
	ctx := context.Background()

	require.NoError(t, store.CreatePlaybook(ctx, testPlaybook("pb-1", "busy")))
	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"exec-a", "exec-b"} {
		require.NoError(t, store.CreateExecution(ctx, &core.PlaybookExecution{
			ID:          id,
			PlaybookID:  "pb-1",
			Status:      core.ExecutionPending,
			TriggeredBy: "admin",
			StartedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}

	executions, err := store.ListExecutions(ctx, "pb-1")
	require.NoError(t, err)
	require.Len(t, executions, 2)
	// Newest first.
	assert.Equal(t, "exec-b", executions[0].ID)

	_, err = store.GetExecution(ctx, "missing")
	assert.ErrorIs(t, err, ErrExecutionNotFound)
}
