package service

import (
	"context"
	"fmt"

	"aegis/core"
	"aegis/metrics"
	"aegis/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sink accepts notifications for delivery. Transports are out of scope;
// a sink decides what "sent" means. The default sink writes to the audit
// trail.
type Sink interface {
	Deliver(ctx context.Context, notification *core.Notification) error
}

// NotificationStorage defines notification persistence operations needed
// by the service.
type NotificationStorage interface {
	CreateNotification(ctx context.Context, notification *core.Notification) error
	GetNotification(ctx context.Context, id string) (*core.Notification, error)
	ListNotifications(ctx context.Context, recipient string, limit, offset int) ([]core.Notification, error)
	UpdateNotificationStatus(ctx context.Context, id string, status core.NotificationStatus) error
}

// NotificationService tracks notification records and hands them to a
// sink on demand.
type NotificationService struct {
	store  NotificationStorage
	sink   Sink
	logger *zap.SugaredLogger
}

// NewNotificationService creates the notification service.
func NewNotificationService(store NotificationStorage, sink Sink, logger *zap.SugaredLogger) *NotificationService {
	if store == nil {
		panic("NotificationService requires notification storage")
	}
	if sink == nil {
		panic("NotificationService requires a sink")
	}
	if logger == nil {
		panic("NotificationService requires a logger")
	}
	return &NotificationService{store: store, sink: sink, logger: logger}
}

// CreateNotification records a pending notification for a recipient.
func (s *NotificationService) CreateNotification(ctx context.Context, message, recipient string) (*core.Notification, error) {
	if message == "" {
		return nil, fmt.Errorf("%w: notification message is required", storage.ErrInvalidInput)
	}
	if recipient == "" {
		return nil, fmt.Errorf("%w: notification recipient is required", storage.ErrInvalidInput)
	}

	notification := &core.Notification{
		ID:        uuid.New().String(),
		Message:   message,
		Recipient: recipient,
		Status:    core.NotificationPending,
	}
	if err := s.store.CreateNotification(ctx, notification); err != nil {
		return nil, err
	}
	return notification, nil
}

// GetNotification retrieves a notification record.
func (s *NotificationService) GetNotification(ctx context.Context, id string) (*core.Notification, error) {
	return s.store.GetNotification(ctx, id)
}

// ListNotifications lists notification records, optionally filtered by
// recipient.
func (s *NotificationService) ListNotifications(ctx context.Context, recipient string, limit, offset int) ([]core.Notification, error) {
	return s.store.ListNotifications(ctx, recipient, limit, offset)
}

// Send hands a pending notification to the sink and records the outcome.
// Already-sent notifications are returned as-is.
func (s *NotificationService) Send(ctx context.Context, id string) (*core.Notification, error) {
	notification, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return nil, err
	}
	if notification.Status == core.NotificationSent {
		return notification, nil
	}

	status := core.NotificationSent
	if err := s.sink.Deliver(ctx, notification); err != nil {
		status = core.NotificationFailed
		s.logger.Errorf("Sink rejected notification %s: %v", id, err)
		metrics.NotificationsSent.WithLabelValues("failed").Inc()
	} else {
		metrics.NotificationsSent.WithLabelValues("sent").Inc()
	}

	if err := s.store.UpdateNotificationStatus(ctx, id, status); err != nil {
		return nil, err
	}
	notification.Status = status
	return notification, nil
}
