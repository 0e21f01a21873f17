package api

import (
	"net/http"
	"testing"

	"aegis/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncidentLifecycleOverHTTP(t *testing.T) {
	env := setupTestAPI(t)
	_, token := env.createUserWithPermissions(t, "responder", storage.PermWriteIncidents, storage.PermReadIncidents)

	w := env.doRequest("POST", "/api/incidents", token, map[string]string{
		"title":       "Credential stuffing",
		"description": "Burst of failed logins",
		"user_id":     "responder",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	incident := decodeBody(t, w)["incident"].(map[string]interface{})
	id := incident["id"].(string)
	assert.Equal(t, "open", incident["status"])

	w = env.doRequest("GET", "/api/incidents/"+id, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.doRequest("PUT", "/api/incidents/"+id+"/status", token, map[string]string{"status": "investigating"})
	require.Equal(t, http.StatusOK, w.Code)
	incident = decodeBody(t, w)["incident"].(map[string]interface{})
	assert.Equal(t, "investigating", incident["status"])

	w = env.doRequest("PUT", "/api/incidents/"+id+"/status", token, map[string]string{"status": "resolved"})
	require.Equal(t, http.StatusOK, w.Code)
	incident = decodeBody(t, w)["incident"].(map[string]interface{})
	assert.NotEmpty(t, incident["resolved_at"])

	w = env.doRequest("GET", "/api/incidents?status=resolved", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["incidents"], 1)
}

func TestCreateIncidentSchemaValidation(t *testing.T) {
	env := setupTestAPI(t)
	_, token := env.createUserWithPermissions(t, "responder", storage.PermWriteIncidents)

	// Missing user_id.
	w := env.doRequest("POST", "/api/incidents", token, map[string]string{"title": "t"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown field rejected by the schema.
	w = env.doRequest("POST", "/api/incidents", token, map[string]string{
		"title": "t", "user_id": "u", "severity": "high",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Malformed timestamp.
	w = env.doRequest("POST", "/api/incidents", token, []byte(`{"title":"t","user_id":"u","detected_at":"yesterday"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIncidentInvalidTransitionOverHTTP(t *testing.T) {
	env := setupTestAPI(t)
	_, token := env.createUserWithPermissions(t, "responder", storage.PermWriteIncidents, storage.PermReadIncidents)

	w := env.doRequest("POST", "/api/incidents", token, map[string]string{"title": "t", "user_id": "u"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeBody(t, w)["incident"].(map[string]interface{})["id"].(string)

	w = env.doRequest("PUT", "/api/incidents/"+id+"/status", token, map[string]string{"status": "closed"})
	require.Equal(t, http.StatusOK, w.Code)

	// Closed is terminal.
	w = env.doRequest("PUT", "/api/incidents/"+id+"/status", token, map[string]string{"status": "open"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetUnknownIncident(t *testing.T) {
	env := setupTestAPI(t)
	_, token := env.createUserWithPermissions(t, "reader", storage.PermReadIncidents)

	w := env.doRequest("GET", "/api/incidents/nope", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIncidentPermissionSplit(t *testing.T) {
	env := setupTestAPI(t)
	_, readToken := env.createUserWithPermissions(t, "viewer", storage.PermReadIncidents)

	// Read-only callers cannot create incidents.
	w := env.doRequest("POST", "/api/incidents", readToken, map[string]string{"title": "t", "user_id": "u"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.doRequest("GET", "/api/incidents", readToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
