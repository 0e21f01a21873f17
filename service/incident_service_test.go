package service

import (
	"context"
	"testing"
	"time"

	"aegis/core"
	"aegis/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeArchiver struct {
	archived []*core.Incident
}

func (f *fakeArchiver) Archive(incident *core.Incident) {
	f.archived = append(f.archived, incident)
}

func (f *fakeArchiver) ListArchived(ctx context.Context, limit int64) ([]core.Incident, error) {
	return nil, nil
}

func setupIncidents(t *testing.T) (*IncidentService, *fakeArchiver) {
	t.Helper()
	logger := zap.NewNop().Sugar()
	sqlite, err := storage.NewSQLite(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	archiver := &fakeArchiver{}
	store := storage.NewSQLiteIncidentStorage(sqlite, logger)
	return NewIncidentService(store, archiver, logger), archiver
}

func TestIncidentService_Create(t *testing.T) {
	svc, _ := setupIncidents(t)
	ctx := context.Background()

	incident, err := svc.CreateIncident(ctx, "Phishing campaign", "Targeted finance team", "analyst-1", time.Time{})
	require.NoError(t, err)
	assert.NotEmpty(t, incident.ID)
	assert.Equal(t, core.IncidentOpen, incident.Status)
	assert.False(t, incident.DetectedAt.IsZero())

	loaded, err := svc.GetIncident(ctx, incident.ID)
	require.NoError(t, err)
	assert.Equal(t, "Phishing campaign", loaded.Title)
}

func TestIncidentService_CreateRejectsMissingFields(t *testing.T) {
	svc, _ := setupIncidents(t)
	ctx := context.Background()

	_, err := svc.CreateIncident(ctx, "", "d", "u", time.Time{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = svc.CreateIncident(ctx, "t", "d", "", time.Time{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestIncidentService_ValidatePayload(t *testing.T) {
	svc, _ := setupIncidents(t)

	assert.NoError(t, svc.ValidatePayload([]byte(`{"title": "t", "user_id": "u"}`)))

	// Missing required field.
	err := svc.ValidatePayload([]byte(`{"title": "t"}`))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	// Unknown field.
	err = svc.ValidatePayload([]byte(`{"title": "t", "user_id": "u", "severity": "high"}`))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	// Wrong type.
	err = svc.ValidatePayload([]byte(`{"title": 7, "user_id": "u"}`))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestIncidentService_TransitionLifecycle(t *testing.T) {
	svc, _ := setupIncidents(t)
	ctx := context.Background()

	incident, err := svc.CreateIncident(ctx, "t", "", "u", time.Time{})
	require.NoError(t, err)

	inv, err := svc.TransitionIncident(ctx, incident.ID, core.IncidentInvestigating)
	require.NoError(t, err)
	assert.Equal(t, core.IncidentInvestigating, inv.Status)

	resolved, err := svc.TransitionIncident(ctx, incident.ID, core.IncidentResolved)
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)

	// Reopening clears the resolution timestamp.
	reopened, err := svc.TransitionIncident(ctx, incident.ID, core.IncidentInvestigating)
	require.NoError(t, err)
	assert.Nil(t, reopened.ResolvedAt)
}

func TestIncidentService_InvalidTransitions(t *testing.T) {
	svc, _ := setupIncidents(t)
	ctx := context.Background()

	incident, err := svc.CreateIncident(ctx, "t", "", "u", time.Time{})
	require.NoError(t, err)

	_, err = svc.TransitionIncident(ctx, incident.ID, "escalated")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = svc.TransitionIncident(ctx, incident.ID, core.IncidentClosed)
	require.NoError(t, err)

	// Closed is terminal.
	_, err = svc.TransitionIncident(ctx, incident.ID, core.IncidentOpen)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
	_, err = svc.TransitionIncident(ctx, incident.ID, core.IncidentInvestigating)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestIncidentService_CloseArchives(t *testing.T) {
	svc, archiver := setupIncidents(t)
	ctx := context.Background()

	incident, err := svc.CreateIncident(ctx, "t", "", "u", time.Time{})
	require.NoError(t, err)

	_, err = svc.TransitionIncident(ctx, incident.ID, core.IncidentClosed)
	require.NoError(t, err)

	require.Len(t, archiver.archived, 1)
	assert.Equal(t, incident.ID, archiver.archived[0].ID)
}

func TestIncidentService_TransitionUnknownIncident(t *testing.T) {
	svc, _ := setupIncidents(t)

	_, err := svc.TransitionIncident(context.Background(), "missing", core.IncidentClosed)
	assert.ErrorIs(t, err, storage.ErrIncidentNotFound)
}

func TestIncidentService_ListRejectsUnknownStatus(t *testing.T) {
	svc, _ := setupIncidents(t)

	_, err := svc.ListIncidents(context.Background(), "bogus", 10, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
