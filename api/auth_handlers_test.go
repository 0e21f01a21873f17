package api

import (
	"context"
	"net/http"
	"testing"

	"aegis/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	env := setupTestAPI(t)

	w := env.doRequest("POST", "/api/auth/register", "", map[string]string{
		"username": "newuser",
		"password": testPassword,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "success", body["status"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "newuser", user["username"])
	// Password hash must never leak in responses.
	assert.NotContains(t, user, "password")

	w = env.doRequest("POST", "/api/auth/login", "", map[string]string{
		"username": "newuser",
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.NotEmpty(t, body["token"])
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	env := setupTestAPI(t)

	w := env.doRequest("POST", "/api/auth/register", "", map[string]string{
		"username": "weakling",
		"password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	env := setupTestAPI(t)
	env.createUserWithPermissions(t, "taken")

	w := env.doRequest("POST", "/api/auth/register", "", map[string]string{
		"username": "taken",
		"password": testPassword,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := setupTestAPI(t)
	env.createUserWithPermissions(t, "victim")

	w := env.doRequest("POST", "/api/auth/login", "", map[string]string{
		"username": "victim",
		"password": "wrong-password-entirely",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Unknown usernames get the same answer.
	w = env.doRequest("POST", "/api/auth/login", "", map[string]string{
		"username": "ghost",
		"password": "wrong-password-entirely",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	env := setupTestAPI(t)
	user, _ := env.createUserWithPermissions(t, "dormant")

	user.Active = false
	require.NoError(t, env.users.UpdateUser(context.Background(), user))

	w := env.doRequest("POST", "/api/auth/login", "", map[string]string{
		"username": "dormant",
		"password": testPassword,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMeReturnsUserAndRoles(t *testing.T) {
	env := setupTestAPI(t)
	_, token := env.createUserWithPermissions(t, "selfaware", storage.PermReadRoles)

	w := env.doRequest("GET", "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "selfaware", user["username"])
	assert.Len(t, body["roles"], 1)
}

func TestLogoutRevokesToken(t *testing.T) {
	env := setupTestAPI(t)
	_, token := env.createUserWithPermissions(t, "leaver")

	w := env.doRequest("POST", "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// The revoked token no longer works.
	w = env.doRequest("GET", "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEnableMFA(t *testing.T) {
	env := setupTestAPI(t)
	user, token := env.createUserWithPermissions(t, "careful")

	w := env.doRequest("POST", "/api/auth/mfa/enable", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Contains(t, body["otpauth_url"], "otpauth://")

	loaded, err := env.users.GetUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, loaded.MFAEnabled)
	assert.NotEmpty(t, loaded.TOTPSecret)

	// Password login alone is no longer sufficient.
	w = env.doRequest("POST", "/api/auth/login", "", map[string]string{
		"username": "careful",
		"password": testPassword,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
