package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/clinicbook/clinicbook/internal/scheduling"
)

// clinicScope resolves the clinic every tenant-scoped endpoint operates
// on. Staff are pinned to their own clinic; super admins pick one with
// the clinic_id query parameter.
func (h *handlers) clinicScope(r *http.Request) (uuid.UUID, error) {
	claims := CallerFromContext(r.Context())
	if claims.ClinicID != nil {
		return *claims.ClinicID, nil
	}
	if claims.Role == scheduling.RoleSuperAdmin {
		raw := r.URL.Query().Get("clinic_id")
		if raw == "" {
			return uuid.Nil, errors.New("clinic_id query parameter is required for super admins")
		}
		return uuid.Parse(raw)
	}
	return uuid.Nil, errors.New("caller has no clinic")
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	clinicID, err := h.clinicScope(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_clinic_scope", err.Error())
		return
	}

	var req CreateAppointmentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	professionalID, err := uuid.Parse(req.ProfessionalID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_professional_id", "professional_id must be a valid UUID")
		return
	}

	// Professionals book onto their own calendar only.
	claims := CallerFromContext(r.Context())
	if claims.Role == scheduling.RoleProfessional && professionalID != claims.UserID {
		writeError(w, http.StatusForbidden, "forbidden", "professionals can only book their own calendar")
		return
	}

	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
		return
	}

	var serviceID *uuid.UUID
	if req.ServiceID != nil {
		id, err := uuid.Parse(*req.ServiceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
			return
		}
		serviceID = &id
	}

	start, err := parseTime(req.StartTime, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start_time", "start_time must be RFC 3339 or YYYY-MM-DDTHH:MM:SS")
		return
	}
	end, err := parseTime(req.EndTime, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_end_time", "end_time must be RFC 3339 or YYYY-MM-DDTHH:MM:SS")
		return
	}

	appt, err := h.scheduler.Book(r.Context(), scheduling.BookCommand{
		ClinicID:       clinicID,
		ProfessionalID: professionalID,
		PatientID:      patientID,
		ServiceID:      serviceID,
		Start:          start,
		End:            end,
		Notes:          req.Notes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	clinicID, err := h.clinicScope(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_clinic_scope", err.Error())
		return
	}

	filter, err := h.appointmentFilter(r, clinicID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}

	details, err := h.scheduler.List(r.Context(), *filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]AppointmentDetailResponse, 0, len(details))
	for i := range details {
		out = append(out, toAppointmentDetailResponse(&details[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) appointmentFilter(r *http.Request, clinicID uuid.UUID) (*scheduling.AppointmentFilter, error) {
	q := r.URL.Query()
	filter := scheduling.AppointmentFilter{ClinicID: clinicID}

	// Professionals only ever see their own calendar.
	if claims := CallerFromContext(r.Context()); claims.Role == scheduling.RoleProfessional {
		id := claims.UserID
		filter.ProfessionalID = &id
	} else if raw := q.Get("professional_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("professional_id: %w", err)
		}
		filter.ProfessionalID = &id
	}
	if raw := q.Get("status"); raw != "" {
		status := scheduling.AppointmentStatus(raw)
		if !status.IsValid() {
			return nil, fmt.Errorf("unknown status %q", raw)
		}
		filter.Status = &status
	}
	if raw := q.Get("from"); raw != "" {
		t, err := parseDate(raw, h.loc)
		if err != nil {
			return nil, fmt.Errorf("from: %w", err)
		}
		filter.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := parseDate(raw, h.loc)
		if err != nil {
			return nil, fmt.Errorf("to: %w", err)
		}
		filter.To = &t
	}
	if raw := q.Get("include_closed"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("include_closed: %w", err)
		}
		filter.IncludeClosed = v
	}

	return &filter, nil
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	detail, err := h.scheduler.GetDetail(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !h.canAccess(r, detail.ClinicID) {
		writeError(w, http.StatusNotFound, "not_found", scheduling.ErrAppointmentNotFound.Error())
		return
	}
	claims := CallerFromContext(r.Context())
	if claims.Role == scheduling.RoleProfessional && detail.ProfessionalID != claims.UserID {
		writeError(w, http.StatusForbidden, "forbidden", "professionals can only manage their own appointments")
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentDetailResponse(detail))
}

func (h *handlers) updateAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}
	if !h.canAccessAppointment(w, r, id) {
		return
	}

	var req UpdateAppointmentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	var cmd scheduling.EditCommand
	if req.StartTime != nil {
		t, err := parseTime(*req.StartTime, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_time", "start_time must be RFC 3339 or YYYY-MM-DDTHH:MM:SS")
			return
		}
		cmd.Start = &t
	}
	if req.EndTime != nil {
		t, err := parseTime(*req.EndTime, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end_time", "end_time must be RFC 3339 or YYYY-MM-DDTHH:MM:SS")
			return
		}
		cmd.End = &t
	}
	if req.PatientID != nil {
		pid, err := uuid.Parse(*req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		cmd.PatientID = &pid
	}
	if req.ServiceID != nil {
		sid, err := uuid.Parse(*req.ServiceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
			return
		}
		cmd.ServiceID = &sid
	}
	cmd.Notes = req.Notes

	appt, err := h.scheduler.Edit(r.Context(), id, cmd)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) completeAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}
	if !h.canAccessAppointment(w, r, id) {
		return
	}

	appt, err := h.scheduler.Complete(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}
	if !h.canAccessAppointment(w, r, id) {
		return
	}

	var req CancelAppointmentRequest
	if r.ContentLength > 0 {
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}
	}

	appt, err := h.scheduler.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) markNoShow(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}
	if !h.canAccessAppointment(w, r, id) {
		return
	}

	var req CancelAppointmentRequest
	if r.ContentLength > 0 {
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}
	}

	appt, err := h.scheduler.MarkNoShow(r.Context(), id, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}
	if !h.canAccessAppointment(w, r, id) {
		return
	}

	if err := h.scheduler.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	professionalID, err := uuid.Parse(q.Get("professional_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_professional_id", "professional_id must be a valid UUID")
		return
	}

	prof, err := h.repo.GetUserByID(r.Context(), professionalID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if prof.ClinicID == nil || !h.canAccess(r, *prof.ClinicID) {
		writeError(w, http.StatusForbidden, "forbidden", "professional belongs to another clinic")
		return
	}

	date, err := parseDate(q.Get("date"), h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}

	duration := 0
	if raw := q.Get("duration"); raw != "" {
		duration, err = strconv.Atoi(raw)
		if err != nil || duration <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be a positive number of minutes")
			return
		}
	}

	slots, err := h.scheduler.AvailableSlots(r.Context(), professionalID, date, duration)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{Start: s.Start, End: s.End})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) checkConflict(w http.ResponseWriter, r *http.Request) {
	clinicID, err := h.clinicScope(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_clinic_scope", err.Error())
		return
	}

	q := r.URL.Query()
	professionalID, err := uuid.Parse(q.Get("professional_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_professional_id", "professional_id must be a valid UUID")
		return
	}
	start, err := parseTime(q.Get("start"), h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start", "start must be RFC 3339 or YYYY-MM-DDTHH:MM:SS")
		return
	}
	end, err := parseTime(q.Get("end"), h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_end", "end must be RFC 3339 or YYYY-MM-DDTHH:MM:SS")
		return
	}
	if !end.After(start) {
		writeError(w, http.StatusBadRequest, "invalid_interval", scheduling.ErrInvalidInterval.Error())
		return
	}

	var excludeID *uuid.UUID
	if raw := q.Get("exclude_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_exclude_id", "exclude_id must be a valid UUID")
			return
		}
		excludeID = &id
	}

	conflict, err := h.scheduler.FindConflict(r.Context(), clinicID, professionalID, start, end, excludeID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := ConflictCheckResponse{Available: conflict == nil}
	if conflict != nil {
		c := toAppointmentResponse(conflict)
		resp.Conflicting = &c
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) exportAppointmentsCSV(w http.ResponseWriter, r *http.Request) {
	clinicID, err := h.clinicScope(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_clinic_scope", err.Error())
		return
	}

	filter, err := h.appointmentFilter(r, clinicID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}
	filter.IncludeClosed = true

	details, err := h.scheduler.List(r.Context(), *filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="appointments-%s.csv"`, time.Now().In(h.loc).Format("2006-01-02")))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "patient", "phone", "professional", "service", "start", "end", "status", "notes"})
	for i := range details {
		d := &details[i]
		service := ""
		if d.ServiceName != nil {
			service = *d.ServiceName
		}
		notes := ""
		if d.Notes != nil {
			notes = *d.Notes
		}
		_ = cw.Write([]string{
			d.ID.String(),
			d.PatientName,
			d.PatientPhone,
			d.ProfessionalName,
			service,
			d.StartTime.In(h.loc).Format("2006-01-02 15:04"),
			d.EndTime.In(h.loc).Format("2006-01-02 15:04"),
			string(d.Status),
			notes,
		})
	}
	cw.Flush()
}

func (h *handlers) whatsAppLink(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	detail, err := h.scheduler.GetDetail(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !h.canAccess(r, detail.ClinicID) {
		writeError(w, http.StatusNotFound, "not_found", scheduling.ErrAppointmentNotFound.Error())
		return
	}
	claims := CallerFromContext(r.Context())
	if claims.Role == scheduling.RoleProfessional && detail.ProfessionalID != claims.UserID {
		writeError(w, http.StatusForbidden, "forbidden", "professionals can only manage their own appointments")
		return
	}

	patient, err := h.repo.GetPatientByID(r.Context(), detail.PatientID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	msg := fmt.Sprintf("Hola %s, te recordamos tu cita el %s a las %s. Por favor confirma tu asistencia.",
		patient.Name,
		detail.StartTime.In(h.loc).Format("02/01/2006"),
		detail.StartTime.In(h.loc).Format("15:04"))

	link := patient.WhatsAppLink(msg)
	if link == "" {
		writeError(w, http.StatusUnprocessableEntity, "no_phone", "patient has no phone number on file")
		return
	}

	writeJSON(w, http.StatusOK, WhatsAppLinkResponse{URL: link})
}

// canAccess checks tenant visibility for the caller.
func (h *handlers) canAccess(r *http.Request, clinicID uuid.UUID) bool {
	claims := CallerFromContext(r.Context())
	if claims == nil {
		return false
	}
	if claims.Role == scheduling.RoleSuperAdmin {
		return true
	}
	return claims.ClinicID != nil && *claims.ClinicID == clinicID
}

// canAccessAppointment loads the appointment and enforces tenant
// visibility plus professional ownership, writing the error response
// itself. Professionals only touch their own calendar.
func (h *handlers) canAccessAppointment(w http.ResponseWriter, r *http.Request, id uuid.UUID) bool {
	appt, err := h.scheduler.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return false
	}
	if !h.canAccess(r, appt.ClinicID) {
		writeError(w, http.StatusNotFound, "not_found", scheduling.ErrAppointmentNotFound.Error())
		return false
	}
	claims := CallerFromContext(r.Context())
	if claims.Role == scheduling.RoleProfessional && appt.ProfessionalID != claims.UserID {
		writeError(w, http.StatusForbidden, "forbidden", "professionals can only manage their own appointments")
		return false
	}
	return true
}
