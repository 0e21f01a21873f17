package api

import (
	"net/http"
	"testing"

	"aegis/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationFlowOverHTTP(t *testing.T) {
	env := setupTestAPI(t)
	_, token := env.createUserWithPermissions(t, "notifier",
		storage.PermWriteNotifications, storage.PermReadNotifications)

	w := env.doRequest("POST", "/api/notifications", token, map[string]string{
		"message":   "Incident escalated",
		"recipient": "oncall@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	notification := decodeBody(t, w)["notification"].(map[string]interface{})
	id := notification["id"].(string)
	assert.Equal(t, "pending", notification["status"])

	w = env.doRequest("POST", "/api/notifications/"+id+"/send", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	notification = decodeBody(t, w)["notification"].(map[string]interface{})
	assert.Equal(t, "sent", notification["status"])

	w = env.doRequest("GET", "/api/notifications?recipient=oncall@example.com", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["notifications"], 1)
}

func TestCreateNotificationValidation(t *testing.T) {
	env := setupTestAPI(t)
	_, token := env.createUserWithPermissions(t, "notifier", storage.PermWriteNotifications)

	w := env.doRequest("POST", "/api/notifications", token, map[string]string{"message": "m"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.doRequest("POST", "/api/notifications", token, map[string]string{"recipient": "r"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendUnknownNotification(t *testing.T) {
	env := setupTestAPI(t)
	_, token := env.createUserWithPermissions(t, "notifier", storage.PermWriteNotifications)

	w := env.doRequest("POST", "/api/notifications/missing/send", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
