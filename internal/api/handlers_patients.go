package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/clinicbook/clinicbook/internal/scheduling"
)

func (h *handlers) createPatient(w http.ResponseWriter, r *http.Request) {
	clinicID, err := h.clinicScope(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_clinic_scope", err.Error())
		return
	}

	var req CreatePatientRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	patient := &scheduling.Patient{
		ID:       uuid.New(),
		ClinicID: clinicID,
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Address:  req.Address,
		Notes:    req.Notes,
	}
	if req.DateOfBirth != nil {
		dob, err := parseDate(*req.DateOfBirth, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date_of_birth", "date_of_birth must be YYYY-MM-DD")
			return
		}
		patient.DateOfBirth = &dob
	}

	if err := h.repo.CreatePatient(r.Context(), patient); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPatientResponse(patient))
}

func (h *handlers) listPatients(w http.ResponseWriter, r *http.Request) {
	clinicID, err := h.clinicScope(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_clinic_scope", err.Error())
		return
	}

	q := r.URL.Query()
	filter := scheduling.PatientFilter{
		ClinicID: clinicID,
		Query:    q.Get("q"),
	}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			filter.Offset = n
		}
	}

	patients, err := h.repo.ListPatients(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]PatientResponse, 0, len(patients))
	for i := range patients {
		out = append(out, toPatientResponse(&patients[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) getPatient(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
		return
	}

	patient, err := h.repo.GetPatientByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !h.canAccess(r, patient.ClinicID) {
		writeError(w, http.StatusNotFound, "not_found", scheduling.ErrPatientNotFound.Error())
		return
	}

	writeJSON(w, http.StatusOK, toPatientResponse(patient))
}

func (h *handlers) updatePatient(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
		return
	}

	patient, err := h.repo.GetPatientByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !h.canAccess(r, patient.ClinicID) {
		writeError(w, http.StatusNotFound, "not_found", scheduling.ErrPatientNotFound.Error())
		return
	}

	var req CreatePatientRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	patient.Name = req.Name
	patient.Phone = req.Phone
	patient.Email = req.Email
	patient.Address = req.Address
	patient.Notes = req.Notes
	patient.DateOfBirth = nil
	if req.DateOfBirth != nil {
		dob, err := parseDate(*req.DateOfBirth, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date_of_birth", "date_of_birth must be YYYY-MM-DD")
			return
		}
		patient.DateOfBirth = &dob
	}

	if err := h.repo.UpdatePatient(r.Context(), patient); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPatientResponse(patient))
}
