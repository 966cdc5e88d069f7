package api

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/clinicbook/clinicbook/internal/auth"
	"github.com/clinicbook/clinicbook/internal/scheduling"
)

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	user, err := h.repo.GetUserByLogin(r.Context(), req.Login)
	if err != nil {
		if errors.Is(err, scheduling.ErrUserNotFound) {
			// Same response as a wrong password; do not leak which
			// accounts exist.
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "wrong login or password")
			return
		}
		writeDomainError(w, err)
		return
	}

	if !user.IsActive {
		writeError(w, http.StatusUnauthorized, "account_disabled", "this account has been deactivated")
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "wrong login or password")
		return
	}

	pair, err := h.jwt.GenerateTokenPair(&auth.Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		ClinicID: user.ClinicID,
	})
	if err != nil {
		h.log.Error("generate token pair", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "could not issue tokens")
		return
	}

	if err := h.repo.RecordLogin(r.Context(), user.ID, time.Now()); err != nil {
		h.log.Warn("record login", zap.String("user_id", user.ID.String()), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, pair)
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	claims, err := h.jwt.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_token", err.Error())
		return
	}

	// Re-read the user so a deactivated account cannot keep refreshing.
	user, err := h.repo.GetUserByID(r.Context(), claims.UserID)
	if err != nil || !user.IsActive {
		writeError(w, http.StatusUnauthorized, "account_disabled", "this account is no longer active")
		return
	}

	pair, err := h.jwt.GenerateTokenPair(&auth.Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		ClinicID: user.ClinicID,
	})
	if err != nil {
		h.log.Error("generate token pair", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "could not issue tokens")
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	claims := CallerFromContext(r.Context())

	user, err := h.repo.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *handlers) changePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	claims := CallerFromContext(r.Context())
	user, err := h.repo.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.CurrentPassword); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "current password is wrong")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		h.log.Error("hash password", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "could not update password")
		return
	}

	if err := h.repo.UpdateUserPassword(r.Context(), user.ID, hash); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
