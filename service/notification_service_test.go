package service

import (
	"context"
	"errors"
	"testing"

	"aegis/core"
	"aegis/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSink struct {
	delivered []string
	err       error
}

func (f *fakeSink) Deliver(ctx context.Context, n *core.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.delivered = append(f.delivered, n.ID)
	return nil
}

func setupNotifications(t *testing.T, sink Sink) *NotificationService {
	t.Helper()
	logger := zap.NewNop().Sugar()
	sqlite, err := storage.NewSQLite(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	store := storage.NewSQLiteNotificationStorage(sqlite, logger)
	return NewNotificationService(store, sink, logger)
}

func TestNotificationService_CreateAndSend(t *testing.T) {
	sink := &fakeSink{}
	svc := setupNotifications(t, sink)
	ctx := context.Background()

	n, err := svc.CreateNotification(ctx, "Incident escalated", "oncall@example.com")
	require.NoError(t, err)
	assert.Equal(t, core.NotificationPending, n.Status)

	sent, err := svc.Send(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, core.NotificationSent, sent.Status)
	assert.Equal(t, []string{n.ID}, sink.delivered)

	loaded, err := svc.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, core.NotificationSent, loaded.Status)
}

func TestNotificationService_SendIsIdempotentForSent(t *testing.T) {
	sink := &fakeSink{}
	svc := setupNotifications(t, sink)
	ctx := context.Background()

	n, err := svc.CreateNotification(ctx, "m", "r")
	require.NoError(t, err)

	_, err = svc.Send(ctx, n.ID)
	require.NoError(t, err)
	_, err = svc.Send(ctx, n.ID)
	require.NoError(t, err)

	// The sink saw the notification exactly once.
	assert.Len(t, sink.delivered, 1)
}

func TestNotificationService_SinkFailureMarksFailed(t *testing.T) {
	sink := &fakeSink{err: errors.New("sink unavailable")}
	svc := setupNotifications(t, sink)
	ctx := context.Background()

	n, err := svc.CreateNotification(ctx, "m", "r")
	require.NoError(t, err)

	sent, err := svc.Send(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, core.NotificationFailed, sent.Status)

	// A failed notification can be retried once the sink recovers.
	sink.err = nil
	retried, err := svc.Send(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, core.NotificationSent, retried.Status)
}

func TestNotificationService_CreateRejectsMissingFields(t *testing.T) {
	svc := setupNotifications(t, &fakeSink{})
	ctx := context.Background()

	_, err := svc.CreateNotification(ctx, "", "r")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = svc.CreateNotification(ctx, "m", "")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestNotificationService_SendUnknown(t *testing.T) {
	svc := setupNotifications(t, &fakeSink{})

	_, err := svc.Send(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotificationNotFound)
}
