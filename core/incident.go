package core

import (
	"fmt"
	"time"
)

// IncidentStatus represents the lifecycle state of an incident.
type IncidentStatus string

const (
	// IncidentOpen is the initial state of a newly reported incident.
	IncidentOpen IncidentStatus = "open"
	// IncidentInvestigating means an analyst is actively working the incident.
	IncidentInvestigating IncidentStatus = "investigating"
	// IncidentResolved means the underlying issue has been addressed.
	IncidentResolved IncidentStatus = "resolved"
	// IncidentClosed is the terminal state.
	IncidentClosed IncidentStatus = "closed"
)

// Incident represents a security incident tracked by the platform.
type Incident struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      IncidentStatus `json:"status"`
	UserID      string         `json:"user_id"`
	DetectedAt  time.Time      `json:"detected_at"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// validIncidentTransitions defines the allowed status transitions.
// Reopening a closed incident is deliberately not allowed; a new
// incident should be filed instead.
var validIncidentTransitions = map[IncidentStatus][]IncidentStatus{
	IncidentOpen:          {IncidentInvestigating, IncidentResolved, IncidentClosed},
	IncidentInvestigating: {IncidentResolved, IncidentClosed},
	IncidentResolved:      {IncidentClosed, IncidentInvestigating},
	IncidentClosed:        {},
}

// ValidIncidentStatus reports whether the status is a known state.
func ValidIncidentStatus(status IncidentStatus) bool {
	_, ok := validIncidentTransitions[status]
	return ok
}

// ValidateIncidentTransition checks whether moving from one status to
// another is allowed by the lifecycle state machine.
func ValidateIncidentTransition(from, to IncidentStatus) error {
	allowed, ok := validIncidentTransitions[from]
	if !ok {
		return fmt.Errorf("unknown incident status: %s", from)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("invalid incident status transition: %s -> %s", from, to)
}
