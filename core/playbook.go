package core

import (
	"fmt"
	"time"
)

// PlaybookStep is a single step in a response playbook. Steps are data,
// not code: the execution engine interprets them.
type PlaybookStep struct {
	Name        string            `json:"name" yaml:"name"`
	Action      string            `json:"action" yaml:"action"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Parameters  map[string]string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Playbook represents an incident response playbook. Version increments
// on every update so executions can record which revision they ran.
type Playbook struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Steps       []PlaybookStep `json:"steps" yaml:"steps"`
	Version     int            `json:"version" yaml:"version"`
	CreatedAt   time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" yaml:"updated_at"`
}

// Validate checks structural validity of a playbook definition.
func (p *Playbook) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("playbook name is required")
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("playbook must define at least one step")
	}
	for i, step := range p.Steps {
		if step.Name == "" {
			return fmt.Errorf("step %d: name is required", i)
		}
		if step.Action == "" {
			return fmt.Errorf("step %d (%s): action is required", i, step.Name)
		}
	}
	return nil
}

// ExecutionStatus represents the state of a playbook execution.
type ExecutionStatus string

const (
	// ExecutionPending means the execution was recorded but not started.
	ExecutionPending ExecutionStatus = "pending"
	// ExecutionRunning means the engine is working through the steps.
	ExecutionRunning ExecutionStatus = "running"
	// ExecutionCompleted means all steps finished.
	ExecutionCompleted ExecutionStatus = "completed"
	// ExecutionFailed means a step failed.
	ExecutionFailed ExecutionStatus = "failed"
)

// PlaybookExecution is a record of a single playbook run request.
type PlaybookExecution struct {
	ID          string          `json:"id"`
	PlaybookID  string          `json:"playbook_id"`
	Status      ExecutionStatus `json:"status"`
	TriggeredBy string          `json:"triggered_by"`
	IncidentID  string          `json:"incident_id,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}
