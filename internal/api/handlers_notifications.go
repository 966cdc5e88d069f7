package api

import (
	"net/http"
	"strconv"

	"github.com/clinicbook/clinicbook/internal/scheduling"
)

const defaultNotificationLimit = 20

func (h *handlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	claims := CallerFromContext(r.Context())

	limit := defaultNotificationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	notifications, err := h.repo.ListUnreadNotifications(r.Context(), claims.UserID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]NotificationResponse, 0, len(notifications))
	for i := range notifications {
		out = append(out, toNotificationResponse(&notifications[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_notification_id", "id must be a valid UUID")
		return
	}

	claims := CallerFromContext(r.Context())
	notification, err := h.repo.GetNotificationByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if notification.UserID != claims.UserID {
		writeError(w, http.StatusNotFound, "not_found", scheduling.ErrNotificationNotFound.Error())
		return
	}

	if err := h.repo.MarkNotificationRead(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
