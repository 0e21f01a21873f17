package notify

import (
	"context"

	"aegis/audit"
	"aegis/core"

	"go.uber.org/zap"
)

// AuditSink records each delivered notification on the audit trail. It is
// the default sink: delivery transports live outside this system, so
// "sent" means "durably recorded that we handed it off".
type AuditSink struct {
	auditor audit.Recorder
	logger  *zap.SugaredLogger
}

// NewAuditSink creates an audit-backed notification sink.
func NewAuditSink(auditor audit.Recorder, logger *zap.SugaredLogger) *AuditSink {
	if auditor == nil {
		panic("AuditSink requires an audit recorder")
	}
	if logger == nil {
		panic("AuditSink requires a logger")
	}
	return &AuditSink{auditor: auditor, logger: logger}
}

// Deliver records the notification hand-off.
func (s *AuditSink) Deliver(_ context.Context, notification *core.Notification) error {
	s.auditor.Record(audit.Entry{
		Actor:   "system",
		Action:  "notification.deliver",
		Target:  notification.Recipient,
		Outcome: audit.OutcomeSuccess,
		Detail:  notification.ID,
	})
	s.logger.Infof("Delivered notification %s to %s", notification.ID, notification.Recipient)
	return nil
}
