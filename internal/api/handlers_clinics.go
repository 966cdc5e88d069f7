package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/clinicbook/clinicbook/internal/scheduling"
)

const defaultThemeColor = "#0d6efd"

func (h *handlers) createClinic(w http.ResponseWriter, r *http.Request) {
	var req CreateClinicRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	clinic := &scheduling.Clinic{
		ID:         uuid.New(),
		Name:       req.Name,
		Phone:      req.Phone,
		Email:      req.Email,
		Address:    req.Address,
		ThemeColor: req.ThemeColor,
		Plan:       req.Plan,
		IsActive:   true,
	}
	if clinic.ThemeColor == "" {
		clinic.ThemeColor = defaultThemeColor
	}
	if clinic.Plan == "" {
		clinic.Plan = "basic"
	}

	if err := h.repo.CreateClinic(r.Context(), clinic); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toClinicResponse(clinic))
}

func (h *handlers) listClinics(w http.ResponseWriter, r *http.Request) {
	clinics, err := h.repo.ListClinics(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]ClinicResponse, 0, len(clinics))
	for i := range clinics {
		out = append(out, toClinicResponse(&clinics[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) getClinic(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_clinic_id", "id must be a valid UUID")
		return
	}
	if !h.canAccess(r, id) {
		writeError(w, http.StatusNotFound, "not_found", scheduling.ErrClinicNotFound.Error())
		return
	}

	clinic, err := h.repo.GetClinicByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toClinicResponse(clinic))
}

func (h *handlers) updateClinic(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_clinic_id", "id must be a valid UUID")
		return
	}

	claims := CallerFromContext(r.Context())
	if claims.Role != scheduling.RoleSuperAdmin &&
		(claims.ClinicID == nil || *claims.ClinicID != id) {
		writeError(w, http.StatusNotFound, "not_found", scheduling.ErrClinicNotFound.Error())
		return
	}

	clinic, err := h.repo.GetClinicByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req struct {
		CreateClinicRequest
		IsActive *bool `json:"is_active,omitempty"`
	}
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	clinic.Name = req.Name
	clinic.Phone = req.Phone
	clinic.Email = req.Email
	clinic.Address = req.Address
	if req.ThemeColor != "" {
		clinic.ThemeColor = req.ThemeColor
	}
	if req.Plan != "" && claims.Role == scheduling.RoleSuperAdmin {
		clinic.Plan = req.Plan
	}
	if req.IsActive != nil && claims.Role == scheduling.RoleSuperAdmin {
		clinic.IsActive = *req.IsActive
	}

	if err := h.repo.UpdateClinic(r.Context(), clinic); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toClinicResponse(clinic))
}
