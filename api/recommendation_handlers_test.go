package api

import (
	"net/http"
	"testing"

	"aegis/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecommendationsOverHTTP(t *testing.T) {
	env := setupTestAPI(t)
	_, token := env.createUserWithPermissions(t, "analyst",
		storage.PermWriteIncidents, storage.PermReadRecommendations)

	w := env.doRequest("POST", "/api/incidents", token, map[string]string{"title": "a", "user_id": "analyst"})
	require.Equal(t, http.StatusCreated, w.Code)
	first := decodeBody(t, w)["incident"].(map[string]interface{})["id"].(string)

	w = env.doRequest("POST", "/api/incidents", token, map[string]string{"title": "b", "user_id": "analyst"})
	require.Equal(t, http.StatusCreated, w.Code)
	second := decodeBody(t, w)["incident"].(map[string]interface{})["id"].(string)

	w = env.doRequest("POST", "/api/recommendations", token, map[string]interface{}{
		"incident_ids": []string{first, second},
	})
	require.Equal(t, http.StatusOK, w.Code)
	recommendation := decodeBody(t, w)["recommendation"].(map[string]interface{})
	assert.Equal(t, "analyst", recommendation["user_id"])
	items := recommendation["items"].([]interface{})
	require.Len(t, items, 2)
	assert.Equal(t, "triage", items[0].(map[string]interface{})["action"])
}

func TestRecommendationsRejectEmptyList(t *testing.T) {
	env := setupTestAPI(t)
	_, token := env.createUserWithPermissions(t, "analyst", storage.PermReadRecommendations)

	w := env.doRequest("POST", "/api/recommendations", token, map[string]interface{}{
		"incident_ids": []string{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecommendationsUnknownIncidentFailsWholeRequest(t *testing.T) {
	env := setupTestAPI(t)
	_, token := env.createUserWithPermissions(t, "analyst", storage.PermReadRecommendations)

	w := env.doRequest("POST", "/api/recommendations", token, map[string]interface{}{
		"incident_ids": []string{"missing"},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
