package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"aegis/core"
	"aegis/storage"

	"github.com/gorilla/mux"
)

const maxPlaybookBody = 256 * 1024

// createPlaybookHandler stores a new playbook definition.
func (a *API) createPlaybookHandler(w http.ResponseWriter, r *http.Request) {
	var playbook core.Playbook
	if err := json.NewDecoder(r.Body).Decode(&playbook); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err, a.logger)
		return
	}

	created, err := a.playbooks.CreatePlaybook(r.Context(), &playbook)
	if err != nil {
		writeError(w, errorStatus(err), "Failed to create playbook: "+err.Error(), err, a.logger)
		return
	}
	writeSuccess(w, http.StatusCreated, "Playbook created", map[string]interface{}{
		"playbook": created,
	})
}

// listPlaybooksHandler returns all playbook definitions.
func (a *API) listPlaybooksHandler(w http.ResponseWriter, r *http.Request) {
	playbooks, err := a.playbooks.ListPlaybooks(r.Context())
	if err != nil {
		writeError(w, errorStatus(err), "Failed to list playbooks", err, a.logger)
		return
	}
	if playbooks == nil {
		playbooks = []core.Playbook{}
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{
		"playbooks": playbooks,
	})
}

// getPlaybookHandler retrieves a single playbook.
func (a *API) getPlaybookHandler(w http.ResponseWriter, r *http.Request) {
	playbook, err := a.playbooks.GetPlaybook(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, errorStatus(err), "Failed to get playbook", err, a.logger)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{
		"playbook": playbook,
	})
}

// updatePlaybookHandler replaces a playbook definition and bumps its
// version.
func (a *API) updatePlaybookHandler(w http.ResponseWriter, r *http.Request) {
	var playbook core.Playbook
	if err := json.NewDecoder(r.Body).Decode(&playbook); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err, a.logger)
		return
	}

	updated, err := a.playbooks.UpdatePlaybook(r.Context(), mux.Vars(r)["id"], &playbook)
	if err != nil {
		writeError(w, errorStatus(err), "Failed to update playbook: "+err.Error(), err, a.logger)
		return
	}
	writeSuccess(w, http.StatusOK, "Playbook updated", map[string]interface{}{
		"playbook": updated,
	})
}

// deletePlaybookHandler removes a playbook definition.
func (a *API) deletePlaybookHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.playbooks.DeletePlaybook(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, errorStatus(err), "Failed to delete playbook", err, a.logger)
		return
	}
	writeSuccess(w, http.StatusOK, "Playbook deleted", nil)
}

type executePlaybookRequest struct {
	IncidentID string `json:"incident_id,omitempty"`
}

// executePlaybookHandler records a run request. The engine is not wired
// yet, so the caller gets 202 with the pending execution record.
func (a *API) executePlaybookHandler(w http.ResponseWriter, r *http.Request) {
	username, _ := GetUsername(r.Context())

	var req executePlaybookRequest
	if r.Body != nil {
		// Body is optional for executions not tied to an incident.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	execution, err := a.playbooks.Execute(r.Context(), mux.Vars(r)["id"], username, req.IncidentID)
	if err != nil && !errors.Is(err, storage.ErrNotImplemented) {
		writeError(w, errorStatus(err), "Failed to record execution: "+err.Error(), err, a.logger)
		return
	}
	writeSuccess(w, http.StatusAccepted, "Execution recorded; engine not yet available", map[string]interface{}{
		"execution": execution,
	})
}

// listExecutionsHandler lists execution records for a playbook.
func (a *API) listExecutionsHandler(w http.ResponseWriter, r *http.Request) {
	executions, err := a.playbooks.ListExecutions(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, errorStatus(err), "Failed to list executions", err, a.logger)
		return
	}
	if executions == nil {
		executions = []core.PlaybookExecution{}
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{
		"executions": executions,
	})
}

// exportPlaybookHandler renders a playbook as YAML.
func (a *API) exportPlaybookHandler(w http.ResponseWriter, r *http.Request) {
	out, err := a.playbooks.ExportYAML(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, errorStatus(err), "Failed to export playbook", err, a.logger)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// importPlaybookHandler creates a playbook from a YAML document.
func (a *API) importPlaybookHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPlaybookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err, a.logger)
		return
	}

	playbook, err := a.playbooks.ImportYAML(r.Context(), body)
	if err != nil {
		writeError(w, errorStatus(err), "Failed to import playbook: "+err.Error(), err, a.logger)
		return
	}
	writeSuccess(w, http.StatusCreated, "Playbook imported", map[string]interface{}{
		"playbook": playbook,
	})
}
