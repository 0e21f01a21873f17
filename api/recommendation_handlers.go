package api

import (
	"encoding/json"
	"net/http"

	"aegis/core"
)

type recommendationRequest struct {
	IncidentIDs []string `json:"incident_ids" validate:"required,min=1,max=100"`
}

// recommendationsHandler ranks next actions for the given incidents on
// behalf of the authenticated user. Unknown incident IDs fail the whole
// request.
func (a *API) recommendationsHandler(w http.ResponseWriter, r *http.Request) {
	username, _ := GetUsername(r.Context())

	var req recommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err, a.logger)
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "incident_ids is required (1-100 entries)", err, a.logger)
		return
	}

	incidents := make([]core.Incident, 0, len(req.IncidentIDs))
	for _, id := range req.IncidentIDs {
		incident, err := a.incidents.GetIncident(r.Context(), id)
		if err != nil {
			writeError(w, errorStatus(err), "Failed to load incident "+id, err, a.logger)
			return
		}
		incidents = append(incidents, *incident)
	}

	recommendation, err := a.recommender.Recommend(r.Context(), &core.RecommendationRequest{
		UserID:      username,
		IncidentIDs: req.IncidentIDs,
	}, incidents)
	if err != nil {
		writeError(w, errorStatus(err), "Failed to generate recommendations", err, a.logger)
		return
	}

	writeSuccess(w, http.StatusOK, "", map[string]interface{}{
		"recommendation": recommendation,
	})
}
