package api

import (
	"net/http"
	"time"

	"github.com/clinicbook/clinicbook/internal/scheduling"
)

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	claims := CallerFromContext(r.Context())

	caller := &scheduling.User{
		ID:       claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
		ClinicID: claims.ClinicID,
	}

	stats, err := h.scheduler.Stats(r.Context(), caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *handlers) report(w http.ResponseWriter, r *http.Request) {
	clinicID, err := h.clinicScope(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_clinic_scope", err.Error())
		return
	}

	q := r.URL.Query()

	// Default to the current month.
	now := time.Now().In(h.loc)
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, h.loc)
	to := from.AddDate(0, 1, 0)

	if raw := q.Get("from"); raw != "" {
		from, err = parseDate(raw, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", "from must be YYYY-MM-DD")
			return
		}
	}
	if raw := q.Get("to"); raw != "" {
		to, err = parseDate(raw, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to", "to must be YYYY-MM-DD")
			return
		}
	}
	if !to.After(from) {
		writeError(w, http.StatusBadRequest, "invalid_range", "to must be after from")
		return
	}

	summary, err := h.scheduler.Report(r.Context(), clinicID, from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := ReportResponse{
		From:             from,
		To:               to,
		Total:            summary.Total,
		ByStatus:         make(map[string]int, len(summary.ByStatus)),
		EstimatedRevenue: summary.EstimatedRevenue,
	}
	for status, n := range summary.ByStatus {
		resp.ByStatus[string(status)] = n
	}
	for _, pc := range summary.ByProfessional {
		resp.ByProfessional = append(resp.ByProfessional, ProfessionalCountResponse{
			ProfessionalID:   pc.ProfessionalID,
			ProfessionalName: pc.ProfessionalName,
			Appointments:     pc.Appointments,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
