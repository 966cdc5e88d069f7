package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/clinicbook/clinicbook/internal/scheduling"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// decodeAndValidate parses the JSON body into v and runs the struct tags.
func decodeAndValidate(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("could not parse JSON body")
	}
	if err := validate.Struct(v); err != nil {
		return err
	}
	return nil
}

func parseIDParam(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

// parseTime accepts RFC 3339 with or without offset; bare timestamps are
// interpreted in the clinic timezone.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05", s, loc)
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, loc)
}

// writeDomainError maps scheduling errors onto HTTP statuses. Conflicts
// carry the blocking appointment so the client can show it.
func writeDomainError(w http.ResponseWriter, err error) {
	if ce := scheduling.AsConflict(err); ce != nil {
		resp := ErrorResponse{
			Error:   "appointment_conflict",
			Details: ce.Error(),
		}
		if ce.Conflicting != nil {
			c := toAppointmentResponse(ce.Conflicting)
			resp.Conflicting = &c
		}
		writeJSON(w, http.StatusConflict, resp)
		return
	}

	switch {
	case errors.Is(err, scheduling.ErrClinicNotFound),
		errors.Is(err, scheduling.ErrUserNotFound),
		errors.Is(err, scheduling.ErrPatientNotFound),
		errors.Is(err, scheduling.ErrServiceNotFound),
		errors.Is(err, scheduling.ErrAppointmentNotFound),
		errors.Is(err, scheduling.ErrNotificationNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())

	case errors.Is(err, scheduling.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())

	case errors.Is(err, scheduling.ErrNotEditable):
		writeError(w, http.StatusUnprocessableEntity, "appointment_not_editable", err.Error())

	case errors.Is(err, scheduling.ErrProfessionalBusy):
		writeError(w, http.StatusConflict, "professional_busy", err.Error())

	case errors.Is(err, scheduling.ErrInvalidInterval):
		writeError(w, http.StatusBadRequest, "invalid_interval", err.Error())

	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}
