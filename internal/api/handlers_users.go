package api

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicbook/clinicbook/internal/auth"
	"github.com/clinicbook/clinicbook/internal/scheduling"
)

func (h *handlers) listProfessionals(w http.ResponseWriter, r *http.Request) {
	clinicID, err := h.clinicScope(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_clinic_scope", err.Error())
		return
	}

	professionals, err := h.repo.ListProfessionals(r.Context(), clinicID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]UserResponse, 0, len(professionals))
	for i := range professionals {
		out = append(out, toUserResponse(&professionals[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) createUser(w http.ResponseWriter, r *http.Request) {
	clinicID, err := h.clinicScope(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_clinic_scope", err.Error())
		return
	}

	var req CreateUserRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	role := scheduling.Role(req.Role)
	claims := CallerFromContext(r.Context())
	if role == scheduling.RoleClinicAdmin && claims.Role != scheduling.RoleSuperAdmin {
		writeError(w, http.StatusForbidden, "forbidden", "only super admins can create clinic admins")
		return
	}

	if _, err := h.repo.GetUserByLogin(r.Context(), req.Username); err == nil {
		writeError(w, http.StatusConflict, "username_taken", "username or email is already in use")
		return
	}
	if _, err := h.repo.GetUserByLogin(r.Context(), req.Email); err == nil {
		writeError(w, http.StatusConflict, "email_taken", "username or email is already in use")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.log.Error("hash password", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "could not create user")
		return
	}

	user := &scheduling.User{
		ID:           uuid.New(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		ClinicID:     &clinicID,
		FullName:     req.FullName,
		Phone:        req.Phone,
		IsActive:     true,
	}

	if err := h.repo.CreateUser(r.Context(), user); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *handlers) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_user_id", "id must be a valid UUID")
		return
	}

	user, err := h.repo.GetUserByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if user.ClinicID == nil || !h.canAccess(r, *user.ClinicID) {
		writeError(w, http.StatusNotFound, "not_found", scheduling.ErrUserNotFound.Error())
		return
	}

	var req struct {
		Email    *string `json:"email,omitempty" validate:"omitempty,email"`
		FullName *string `json:"full_name,omitempty"`
		Phone    *string `json:"phone,omitempty"`
		IsActive *bool   `json:"is_active,omitempty"`
	}
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.FullName != nil {
		user.FullName = req.FullName
	}
	if req.Phone != nil {
		user.Phone = req.Phone
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := h.repo.UpdateUser(r.Context(), user); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *handlers) resetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_user_id", "id must be a valid UUID")
		return
	}

	user, err := h.repo.GetUserByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if user.ClinicID == nil || !h.canAccess(r, *user.ClinicID) {
		writeError(w, http.StatusNotFound, "not_found", scheduling.ErrUserNotFound.Error())
		return
	}

	var req struct {
		NewPassword string `json:"new_password" validate:"required,min=8"`
	}
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		h.log.Error("hash password", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "could not reset password")
		return
	}

	if err := h.repo.UpdateUserPassword(r.Context(), id, hash); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_user_id", "id must be a valid UUID")
		return
	}

	user, err := h.repo.GetUserByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if user.ClinicID == nil || !h.canAccess(r, *user.ClinicID) {
		writeError(w, http.StatusNotFound, "not_found", scheduling.ErrUserNotFound.Error())
		return
	}

	if err := h.repo.DeleteUser(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
