package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"aegis/storage"

	"go.uber.org/zap"
)

const maxErrorMessageLength = 512

var (
	connStringPattern = regexp.MustCompile(`(?:mongodb|mysql|postgres|postgresql|sqlite|redis)://[^\s"']+`)
	secretPattern     = regexp.MustCompile(`(?i)(password|secret|token|key|credential)[:=]\s*["']?[^"'\s]+["']?`)
)

// sanitizeErrorMessage strips connection strings and credential-looking
// fragments from messages before they reach clients.
func sanitizeErrorMessage(message string) string {
	message = connStringPattern.ReplaceAllString(message, "[DATABASE_CONNECTION]")
	message = secretPattern.ReplaceAllString(message, "$1=[REDACTED]")
	if len(message) > maxErrorMessageLength {
		message = message[:maxErrorMessageLength-3] + "..."
	}
	return message
}

// writeJSON writes a JSON response body with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// writeSuccess writes the standard success envelope. Extra fields are
// merged alongside status and message.
func writeSuccess(w http.ResponseWriter, statusCode int, message string, extra map[string]interface{}) {
	body := map[string]interface{}{"status": "success"}
	if message != "" {
		body["message"] = message
	}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, statusCode, body)
}

// writeError logs the full error internally and sends a sanitized
// envelope to the client.
func writeError(w http.ResponseWriter, statusCode int, message string, err error, logger *zap.SugaredLogger) {
	if logger != nil {
		if err != nil {
			logger.Errorw(message, "error", err.Error(), "status_code", statusCode)
		} else {
			logger.Errorw(message, "status_code", statusCode)
		}
	}
	writeJSON(w, statusCode, map[string]interface{}{
		"status":  "error",
		"message": sanitizeErrorMessage(message),
	})
}

// errorStatus maps domain errors to HTTP status codes. Unrecognized
// errors are treated as internal.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrPermissionNotFound),
		errors.Is(err, storage.ErrUserNotFound),
		errors.Is(err, storage.ErrRoleNotFound):
		// Referenced entities that do not resolve are a caller problem.
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrIncidentNotFound),
		errors.Is(err, storage.ErrNotificationNotFound),
		errors.Is(err, storage.ErrPlaybookNotFound),
		errors.Is(err, storage.ErrExecutionNotFound),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicateRole),
		errors.Is(err, storage.ErrDuplicatePermission),
		errors.Is(err, storage.ErrDuplicateUser),
		errors.Is(err, storage.ErrPlaybookNameExists),
		errors.Is(err, storage.ErrRoleInUse):
		return http.StatusConflict
	case errors.Is(err, storage.ErrBuiltinRole):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrNotImplemented):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
