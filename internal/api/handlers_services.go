package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/clinicbook/clinicbook/internal/scheduling"
)

func (h *handlers) createService(w http.ResponseWriter, r *http.Request) {
	clinicID, err := h.clinicScope(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_clinic_scope", err.Error())
		return
	}

	var req CreateServiceRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	service := &scheduling.Service{
		ID:              uuid.New(),
		ClinicID:        clinicID,
		Name:            req.Name,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price,
		IsActive:        true,
	}

	if err := h.repo.CreateService(r.Context(), service); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toServiceResponse(service))
}

func (h *handlers) listServices(w http.ResponseWriter, r *http.Request) {
	clinicID, err := h.clinicScope(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_clinic_scope", err.Error())
		return
	}

	activeOnly := true
	if raw := r.URL.Query().Get("include_inactive"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil && v {
			activeOnly = false
		}
	}

	services, err := h.repo.ListServices(r.Context(), clinicID, activeOnly)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]ServiceResponse, 0, len(services))
	for i := range services {
		out = append(out, toServiceResponse(&services[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) getService(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_service_id", "id must be a valid UUID")
		return
	}

	service, err := h.repo.GetServiceByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !h.canAccess(r, service.ClinicID) {
		writeError(w, http.StatusNotFound, "not_found", scheduling.ErrServiceNotFound.Error())
		return
	}

	writeJSON(w, http.StatusOK, toServiceResponse(service))
}

func (h *handlers) updateService(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_service_id", "id must be a valid UUID")
		return
	}

	service, err := h.repo.GetServiceByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !h.canAccess(r, service.ClinicID) {
		writeError(w, http.StatusNotFound, "not_found", scheduling.ErrServiceNotFound.Error())
		return
	}

	var req struct {
		CreateServiceRequest
		IsActive *bool `json:"is_active,omitempty"`
	}
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	service.Name = req.Name
	service.Description = req.Description
	service.DurationMinutes = req.DurationMinutes
	service.Price = req.Price
	if req.IsActive != nil {
		service.IsActive = *req.IsActive
	}

	if err := h.repo.UpdateService(r.Context(), service); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toServiceResponse(service))
}
