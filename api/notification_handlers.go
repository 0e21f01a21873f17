package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"aegis/core"

	"github.com/gorilla/mux"
)

type createNotificationRequest struct {
	Message   string `json:"message" validate:"required,max=4096"`
	Recipient string `json:"recipient" validate:"required,max=255"`
}

// createNotificationHandler records a pending notification.
func (a *API) createNotificationHandler(w http.ResponseWriter, r *http.Request) {
	var req createNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err, a.logger)
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "message and recipient are required", err, a.logger)
		return
	}

	notification, err := a.notifications.CreateNotification(r.Context(), req.Message, req.Recipient)
	if err != nil {
		writeError(w, errorStatus(err), "Failed to create notification: "+err.Error(), err, a.logger)
		return
	}
	writeSuccess(w, http.StatusCreated, "Notification created", map[string]interface{}{
		"notification": notification,
	})
}

// listNotificationsHandler lists notifications with optional recipient
// filter.
func (a *API) listNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	notifications, err := a.notifications.ListNotifications(r.Context(), q.Get("recipient"), limit, offset)
	if err != nil {
		writeError(w, errorStatus(err), "Failed to list notifications", err, a.logger)
		return
	}
	if notifications == nil {
		notifications = []core.Notification{}
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{
		"notifications": notifications,
	})
}

// getNotificationHandler retrieves a single notification record.
func (a *API) getNotificationHandler(w http.ResponseWriter, r *http.Request) {
	notification, err := a.notifications.GetNotification(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, errorStatus(err), "Failed to get notification", err, a.logger)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]interface{}{
		"notification": notification,
	})
}

// sendNotificationHandler hands a notification to the sink.
func (a *API) sendNotificationHandler(w http.ResponseWriter, r *http.Request) {
	notification, err := a.notifications.Send(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, errorStatus(err), "Failed to send notification: "+err.Error(), err, a.logger)
		return
	}
	writeSuccess(w, http.StatusOK, "Notification processed", map[string]interface{}{
		"notification": notification,
	})
}
