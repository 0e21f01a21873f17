package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"aegis/core"

	"github.com/gorilla/mux"
)

const maxIncidentBody = 64 * 1024

type createIncidentRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	UserID      string `json:"user_id"`
	DetectedAt  string `json:"detected_at"`
}

// createIncidentHandler opens a new incident. The raw body is validated
// against the incident schema before decoding.
func (a *API) createIncidentHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIncidentBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err, a.logger)
		return
	}
	if err := a.incidents.ValidatePayload(body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid incident: "+err.Error(), err, a.logger)
		return
	}

	var req createIncidentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err, a.logger)
		return
	}

	var detectedAt time.Time
	if req.DetectedAt != "" {
		detectedAt, err = time.Parse(time.RFC3339, req.DetectedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "detected_at must be RFC3339", err, a.logger)
			return
		}
	}

	incident, err := a.incidents.CreateIncident(r.Context(), req.Title, req.Description, req.UserID, detectedAt)
	if err != nil {
		writeError(w, errorStatus(err), "Failed to create incident: "+err.Error(), err, a.logger)
		return
	}
	writeSuccess(w, http.StatusCreated, "Incident created", map[string]interface{}{
		"incident": incident,
	})
}

// listIncidentsHandler lists incidents with optional status filter and
// pagination.
func (a *API) listIncidentsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	incidents, err := a.incidents.ListIncidents(r.Context(), core.IncidentStatus(q.Get("status")), limit, offset)
	if err != nil {
		writeError(w, errorStatus(err), "Failed to list incidents: "+err.Error(), err, a.logger)
		return
	}
	if incidents == nil {
		incidents = []core.Incident{}
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{
		"incidents": incidents,
	})
}

// getIncidentHandler retrieves a single incident.
func (a *API) getIncidentHandler(w http.ResponseWriter, r *http.Request) {
	incident, err := a.incidents.GetIncident(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, errorStatus(err), "Failed to get incident", err, a.logger)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{
		"incident": incident,
	})
}

type incidentStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// updateIncidentStatusHandler moves an incident through its lifecycle.
func (a *API) updateIncidentStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req incidentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err, a.logger)
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "status is required", err, a.logger)
		return
	}

	incident, err := a.incidents.TransitionIncident(r.Context(), mux.Vars(r)["id"], core.IncidentStatus(req.Status))
	if err != nil {
		writeError(w, errorStatus(err), "Failed to update incident status: "+err.Error(), err, a.logger)
		return
	}
	writeSuccess(w, http.StatusOK, "Incident status updated", map[string]interface{}{
		"incident": incident,
	})
}
