package service

import (
	"context"
	"fmt"
	"time"

	"aegis/core"
	"aegis/metrics"
	"aegis/storage"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// incidentSchema validates raw incident submissions before they reach the
// domain layer. Kept strict: unknown fields are rejected.
const incidentSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["title", "user_id"],
	"properties": {
		"title":       {"type": "string", "minLength": 1, "maxLength": 255},
		"description": {"type": "string", "maxLength": 8192},
		"user_id":     {"type": "string", "minLength": 1},
		"detected_at": {"type": "string", "format": "date-time"}
	}
}`

// IncidentStorage defines incident persistence operations needed by the
// service.
type IncidentStorage interface {
	CreateIncident(ctx context.Context, incident *core.Incident) error
	GetIncident(ctx context.Context, id string) (*core.Incident, error)
	ListIncidents(ctx context.Context, status core.IncidentStatus, limit, offset int) ([]core.Incident, error)
	UpdateIncidentStatus(ctx context.Context, id string, status core.IncidentStatus, resolvedAt *time.Time) error
}

// IncidentService manages the incident lifecycle.
type IncidentService struct {
	store    IncidentStorage
	archiver storage.IncidentArchiver
	schema   *gojsonschema.Schema
	logger   *zap.SugaredLogger
}

// NewIncidentService creates the incident service. The archiver is
// optional; when nil, closed incidents are simply not archived.
func NewIncidentService(store IncidentStorage, archiver storage.IncidentArchiver, logger *zap.SugaredLogger) *IncidentService {
	if store == nil {
		panic("IncidentService requires incident storage")
	}
	if logger == nil {
		panic("IncidentService requires a logger")
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(incidentSchema))
	if err != nil {
		panic(fmt.Sprintf("invalid incident schema: %v", err))
	}
	return &IncidentService{store: store, archiver: archiver, schema: schema, logger: logger}
}

// ValidatePayload checks a raw incident submission against the schema.
func (s *IncidentService) ValidatePayload(payload []byte) error {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("%w: %s", storage.ErrInvalidInput, errs[0].String())
		}
		return storage.ErrInvalidInput
	}
	return nil
}

// CreateIncident opens a new incident. DetectedAt defaults to now.
func (s *IncidentService) CreateIncident(ctx context.Context, title, description, userID string, detectedAt time.Time) (*core.Incident, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: incident title is required", storage.ErrInvalidInput)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: reporting user is required", storage.ErrInvalidInput)
	}
	if detectedAt.IsZero() {
		detectedAt = time.Now()
	}

	incident := &core.Incident{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		Status:      core.IncidentOpen,
		UserID:      userID,
		DetectedAt:  detectedAt,
	}
	if err := s.store.CreateIncident(ctx, incident); err != nil {
		return nil, err
	}

	metrics.IncidentsCreated.WithLabelValues(string(incident.Status)).Inc()
	return incident, nil
}

// GetIncident retrieves an incident by ID.
func (s *IncidentService) GetIncident(ctx context.Context, id string) (*core.Incident, error) {
	return s.store.GetIncident(ctx, id)
}

// ListIncidents lists incidents, optionally filtered by status.
func (s *IncidentService) ListIncidents(ctx context.Context, status core.IncidentStatus, limit, offset int) ([]core.Incident, error) {
	if status != "" && !core.ValidIncidentStatus(status) {
		return nil, fmt.Errorf("%w: unknown incident status %q", storage.ErrInvalidInput, status)
	}
	return s.store.ListIncidents(ctx, status, limit, offset)
}

// TransitionIncident moves an incident through its lifecycle. Resolving
// stamps ResolvedAt; closing hands the incident to the archiver.
func (s *IncidentService) TransitionIncident(ctx context.Context, id string, to core.IncidentStatus) (*core.Incident, error) {
	if !core.ValidIncidentStatus(to) {
		return nil, fmt.Errorf("%w: unknown incident status %q", storage.ErrInvalidInput, to)
	}

	incident, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := core.ValidateIncidentTransition(incident.Status, to); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	var resolvedAt *time.Time
	switch to {
	case core.IncidentResolved:
		now := time.Now()
		resolvedAt = &now
	case core.IncidentInvestigating:
		// Reopening clears the resolution timestamp.
		resolvedAt = nil
	default:
		resolvedAt = incident.ResolvedAt
	}

	if err := s.store.UpdateIncidentStatus(ctx, id, to, resolvedAt); err != nil {
		return nil, err
	}

	incident.Status = to
	incident.ResolvedAt = resolvedAt
	incident.UpdatedAt = time.Now()

	if to == core.IncidentClosed && s.archiver != nil {
		s.archiver.Archive(incident)
	}

	s.logger.Infof("Incident %s transitioned to %s", id, to)
	return incident, nil
}
