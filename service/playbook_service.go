package service

import (
	"context"
	"fmt"
	"time"

	"aegis/core"
	"aegis/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// PlaybookStorage defines playbook persistence operations needed by the
// service.
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

// PlaybookService manages playbook definitions and execution records.
type PlaybookService struct {
	store  PlaybookStorage
	logger *zap.SugaredLogger
}

// NewPlaybookService creates the playbook service.
func NewPlaybookService(store PlaybookStorage, logger *zap.SugaredLogger) *PlaybookService {
	if store == nil {
		panic("PlaybookService requires playbook storage")
	}
	if logger == nil {
		panic("PlaybookService requires a logger")
	}
	return &PlaybookService{store: store, logger: logger}
}

// CreatePlaybook validates and stores a new playbook definition.
func (s *PlaybookService) CreatePlaybook(ctx context.Context, playbook *core.Playbook) (*core.Playbook, error) {
	if err := playbook.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	playbook.ID = uuid.New().String()
	if err := s.store.CreatePlaybook(ctx, playbook); err != nil {
		return nil, err
	}
	return playbook, nil
}

// GetPlaybook retrieves a playbook by ID.
func (s *PlaybookService) GetPlaybook(ctx context.Context, id string) (*core.Playbook, error) {
	return s.store.GetPlaybook(ctx, id)
}

// ListPlaybooks returns all playbook definitions.
func (s *PlaybookService) ListPlaybooks(ctx context.Context) ([]core.Playbook, error) {
	return s.store.ListPlaybooks(ctx)
}

// UpdatePlaybook validates and replaces a playbook definition.
func (s *PlaybookService) UpdatePlaybook(ctx context.Context, id string, playbook *core.Playbook) (*core.Playbook, error) {
	if err := playbook.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	existing, err := s.store.GetPlaybook(ctx, id)
	if err != nil {
		return nil, err
	}
	existing.Name = playbook.Name
	existing.Description = playbook.Description
	existing.Steps = playbook.Steps
	if err := s.store.UpdatePlaybook(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// DeletePlaybook removes a playbook definition.
func (s *PlaybookService) DeletePlaybook(ctx context.Context, id string) error {
	return s.store.DeletePlaybook(ctx, id)
}

// Execute records a run request for a playbook. The execution engine
// itself is not wired yet, so the record stays pending and the caller
// receives ErrNotImplemented alongside it. The record gives operators a
// durable trail of who asked for what, and the engine a queue to pick up
// once it lands.
func (s *PlaybookService) Execute(ctx context.Context, playbookID, triggeredBy, incidentID string) (*core.PlaybookExecution, error) {
	if _, err := s.store.GetPlaybook(ctx, playbookID); err != nil {
		return nil, err
	}

	execution := &core.PlaybookExecution{
		ID:          uuid.New().String(),
		PlaybookID:  playbookID,
		Status:      core.ExecutionPending,
		TriggeredBy: triggeredBy,
		IncidentID:  incidentID,
		StartedAt:   time.Now(),
	}
	if err := s.store.CreateExecution(ctx, execution); err != nil {
		return nil, err
	}

	s.logger.Warnf("Execution %s of playbook %s recorded; engine not available", execution.ID, playbookID)
	return execution, storage.ErrNotImplemented
}

// GetExecution retrieves an execution record.
func (s *PlaybookService) GetExecution(ctx context.Context, id string) (*core.PlaybookExecution, error) {
	return s.store.GetExecution(ctx, id)
}

// ListExecutions lists execution records for a playbook.
func (s *PlaybookService) ListExecutions(ctx context.Context, playbookID string) ([]core.PlaybookExecution, error) {
	if _, err := s.store.GetPlaybook(ctx, playbookID); err != nil {
		return nil, err
	}
	return s.store.ListExecutions(ctx, playbookID)
}

// ExportYAML renders a playbook definition as YAML for sharing between
// deployments.
func (s *PlaybookService) ExportYAML(ctx context.Context, id string) ([]byte, error) {
	playbook, err := s.store.GetPlaybook(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(playbook)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal playbook: %w", err)
	}
	return out, nil
}

// ImportYAML parses a YAML playbook definition and stores it as a new
// playbook. IDs and versions from the document are discarded.
func (s *PlaybookService) ImportYAML(ctx context.Context, data []byte) (*core.Playbook, error) {
	var playbook core.Playbook
	if err := yaml.Unmarshal(data, &playbook); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	playbook.Version = 0
	return s.CreatePlaybook(ctx, &playbook)
}
