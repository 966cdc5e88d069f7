package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicbook/clinicbook/internal/scheduling"
)

type LoginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

type CreateAppointmentRequest struct {
	ProfessionalID string  `json:"professional_id" validate:"required,uuid4"`
	PatientID      string  `json:"patient_id" validate:"required,uuid4"`
	ServiceID      *string `json:"service_id,omitempty" validate:"omitempty,uuid4"`
	StartTime      string  `json:"start_time" validate:"required"`
	EndTime        string  `json:"end_time" validate:"required"`
	Notes          string  `json:"notes,omitempty"`
}

type UpdateAppointmentRequest struct {
	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`
	PatientID *string `json:"patient_id,omitempty" validate:"omitempty,uuid4"`
	ServiceID *string `json:"service_id,omitempty" validate:"omitempty,uuid4"`
	Notes     *string `json:"notes,omitempty"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason,omitempty"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID  `json:"id"`
	ClinicID           uuid.UUID  `json:"clinic_id"`
	ProfessionalID     uuid.UUID  `json:"professional_id"`
	PatientID          uuid.UUID  `json:"patient_id"`
	ServiceID          *uuid.UUID `json:"service_id,omitempty"`
	StartTime          time.Time  `json:"start_time"`
	EndTime            time.Time  `json:"end_time"`
	Status             string     `json:"status"`
	Notes              *string    `json:"notes,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	PatientName      string  `json:"patient_name"`
	PatientPhone     string  `json:"patient_phone"`
	ProfessionalName string  `json:"professional_name"`
	ServiceName      *string `json:"service_name,omitempty"`
}

type SlotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type ConflictCheckResponse struct {
	Available   bool                 `json:"available"`
	Conflicting *AppointmentResponse `json:"conflicting,omitempty"`
}

type CreatePatientRequest struct {
	Name        string  `json:"name" validate:"required"`
	Phone       string  `json:"phone" validate:"required"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	DateOfBirth *string `json:"date_of_birth,omitempty"`
	Address     *string `json:"address,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

type PatientResponse struct {
	ID          uuid.UUID  `json:"id"`
	ClinicID    uuid.UUID  `json:"clinic_id"`
	Name        string     `json:"name"`
	Phone       string     `json:"phone"`
	Email       *string    `json:"email,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Address     *string    `json:"address,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type CreateServiceRequest struct {
	Name            string   `json:"name" validate:"required"`
	Description     *string  `json:"description,omitempty"`
	DurationMinutes int      `json:"duration_minutes" validate:"required,min=5,max=480"`
	Price           *float64 `json:"price,omitempty" validate:"omitempty,min=0"`
}

type ServiceResponse struct {
	ID              uuid.UUID `json:"id"`
	ClinicID        uuid.UUID `json:"clinic_id"`
	Name            string    `json:"name"`
	Description     *string   `json:"description,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	Price           *float64  `json:"price,omitempty"`
	IsActive        bool      `json:"is_active"`
}

type CreateUserRequest struct {
	Username string  `json:"username" validate:"required,min=3"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8"`
	Role     string  `json:"role" validate:"required,oneof=clinic_admin professional"`
	FullName *string `json:"full_name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

type UserResponse struct {
	ID        uuid.UUID  `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	ClinicID  *uuid.UUID `json:"clinic_id,omitempty"`
	FullName  *string    `json:"full_name,omitempty"`
	Phone     *string    `json:"phone,omitempty"`
	IsActive  bool       `json:"is_active"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

type CreateClinicRequest struct {
	Name       string  `json:"name" validate:"required"`
	Phone      *string `json:"phone,omitempty"`
	Email      *string `json:"email,omitempty" validate:"omitempty,email"`
	Address    *string `json:"address,omitempty"`
	ThemeColor string  `json:"theme_color,omitempty"`
	Plan       string  `json:"plan,omitempty"`
}

type ClinicResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Phone      *string   `json:"phone,omitempty"`
	Email      *string   `json:"email,omitempty"`
	Address    *string   `json:"address,omitempty"`
	ThemeColor string    `json:"theme_color"`
	Plan       string    `json:"plan"`
	IsActive   bool      `json:"is_active"`
}

type ReportResponse struct {
	From             time.Time                    `json:"from"`
	To               time.Time                    `json:"to"`
	Total            int                          `json:"total"`
	ByStatus         map[string]int               `json:"by_status"`
	EstimatedRevenue float64                      `json:"estimated_revenue"`
	ByProfessional   []ProfessionalCountResponse  `json:"by_professional"`
}

type ProfessionalCountResponse struct {
	ProfessionalID   uuid.UUID `json:"professional_id"`
	ProfessionalName string    `json:"professional_name"`
	Appointments     int       `json:"appointments"`
}

type NotificationResponse struct {
	ID        uuid.UUID `json:"id"`
	Message   string    `json:"message"`
	Kind      string    `json:"kind"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

type WhatsAppLinkResponse struct {
	URL string `json:"url"`
}

type ErrorResponse struct {
	Error       string               `json:"error"`
	Details     string               `json:"details,omitempty"`
	Conflicting *AppointmentResponse `json:"conflicting,omitempty"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 a.ID,
		ClinicID:           a.ClinicID,
		ProfessionalID:     a.ProfessionalID,
		PatientID:          a.PatientID,
		ServiceID:          a.ServiceID,
		StartTime:          a.StartTime,
		EndTime:            a.EndTime,
		Status:             string(a.Status),
		Notes:              a.Notes,
		CancelledAt:        a.CancelledAt,
		CancellationReason: a.CancellationReason,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func toAppointmentDetailResponse(d *scheduling.AppointmentDetail) AppointmentDetailResponse {
	return AppointmentDetailResponse{
		AppointmentResponse: toAppointmentResponse(&d.Appointment),
		PatientName:         d.PatientName,
		PatientPhone:        d.PatientPhone,
		ProfessionalName:    d.ProfessionalName,
		ServiceName:         d.ServiceName,
	}
}

func toPatientResponse(p *scheduling.Patient) PatientResponse {
	return PatientResponse{
		ID:          p.ID,
		ClinicID:    p.ClinicID,
		Name:        p.Name,
		Phone:       p.Phone,
		Email:       p.Email,
		DateOfBirth: p.DateOfBirth,
		Address:     p.Address,
		Notes:       p.Notes,
		CreatedAt:   p.CreatedAt,
	}
}

func toServiceResponse(s *scheduling.Service) ServiceResponse {
	return ServiceResponse{
		ID:              s.ID,
		ClinicID:        s.ClinicID,
		Name:            s.Name,
		Description:     s.Description,
		DurationMinutes: s.DurationMinutes,
		Price:           s.Price,
		IsActive:        s.IsActive,
	}
}

func toUserResponse(u *scheduling.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      string(u.Role),
		ClinicID:  u.ClinicID,
		FullName:  u.FullName,
		Phone:     u.Phone,
		IsActive:  u.IsActive,
		LastLogin: u.LastLogin,
	}
}

func toClinicResponse(c *scheduling.Clinic) ClinicResponse {
	return ClinicResponse{
		ID:         c.ID,
		Name:       c.Name,
		Phone:      c.Phone,
		Email:      c.Email,
		Address:    c.Address,
		ThemeColor: c.ThemeColor,
		Plan:       c.Plan,
		IsActive:   c.IsActive,
	}
}

func toNotificationResponse(n *scheduling.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Message:   n.Message,
		Kind:      string(n.Kind),
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}
