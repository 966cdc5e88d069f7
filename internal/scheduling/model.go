package scheduling

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is a closed set; add new roles here and the switch in IsValid.
type Role string

const (
	RoleSuperAdmin   Role = "super_admin"
	RoleClinicAdmin  Role = "clinic_admin"
	RoleProfessional Role = "professional"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleSuperAdmin, RoleClinicAdmin, RoleProfessional:
		return true
	}
	return false
}

// AppointmentStatus lifecycle:
//
//	scheduled → completed   (only after the end time has passed)
//	scheduled → cancelled
//	scheduled → no_show
//
// completed, cancelled and no_show are terminal. Only scheduled and
// no_show appointments may have their fields edited.
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

func (s AppointmentStatus) IsValid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// IsLive reports whether the status counts for conflict purposes.
// Cancelled and no-show appointments free their slot immediately.
func (s AppointmentStatus) IsLive() bool {
	return s == StatusScheduled || s == StatusCompleted
}

type NotificationKind string

const (
	KindInfo    NotificationKind = "info"
	KindSuccess NotificationKind = "success"
	KindWarning NotificationKind = "warning"
	KindDanger  NotificationKind = "danger"
)

// Clinic is the tenant boundary. Every patient, service and appointment
// belongs to exactly one clinic.
type Clinic struct {
	ID         uuid.UUID
	Name       string
	Phone      *string
	Email      *string
	Address    *string
	ThemeColor string
	Plan       string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// User is a staff account. ClinicID is nil only for super admins.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	ClinicID     *uuid.UUID
	FullName     *string
	Phone        *string
	IsActive     bool
	CreatedAt    time.Time
	LastLogin    *time.Time
}

func (u *User) IsSuperAdmin() bool   { return u.Role == RoleSuperAdmin }
func (u *User) IsClinicAdmin() bool  { return u.Role == RoleClinicAdmin }
func (u *User) IsProfessional() bool { return u.Role == RoleProfessional }

// CanManageClinic reports whether the user administers the given clinic.
func (u *User) CanManageClinic(clinicID uuid.UUID) bool {
	if u.IsSuperAdmin() {
		return true
	}
	return u.IsClinicAdmin() && u.ClinicID != nil && *u.ClinicID == clinicID
}

// CanAccessClinic reports whether the user may read data scoped to the
// given clinic at all.
func (u *User) CanAccessClinic(clinicID uuid.UUID) bool {
	if u.IsSuperAdmin() {
		return true
	}
	return u.ClinicID != nil && *u.ClinicID == clinicID
}

func (u *User) CanManageAppointments() bool {
	return u.Role == RoleClinicAdmin || u.Role == RoleProfessional
}

// DisplayName prefers the full name over the login name.
func (u *User) DisplayName() string {
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	return u.Username
}

// Patient is a clinic-local record, not a login account.
type Patient struct {
	ID          uuid.UUID
	ClinicID    uuid.UUID
	Name        string
	Phone       string
	Email       *string
	DateOfBirth *time.Time
	Address     *string
	Notes       *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WhatsAppLink builds a wa.me deep link with a prefilled reminder message.
// Numbers without a country code get the Peru prefix.
func (p *Patient) WhatsAppLink(message string) string {
	if p.Phone == "" {
		return ""
	}

	var digits strings.Builder
	for _, r := range p.Phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	phone := digits.String()
	if phone == "" {
		return ""
	}
	if !strings.HasPrefix(phone, "51") {
		phone = "51" + phone
	}

	if message == "" {
		message = "Hola " + p.Name + ", te recordamos tu cita programada."
	}

	return "https://wa.me/" + phone + "?text=" + url.QueryEscape(message)
}

// Service is a bookable treatment. DurationMinutes is only a client-side
// default for the appointment length, never enforced.
type Service struct {
	ID              uuid.UUID
	ClinicID        uuid.UUID
	Name            string
	Description     *string
	DurationMinutes int
	Price           *float64
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Appointment books the half-open interval [StartTime, EndTime) of one
// professional in one clinic for one patient.
type Appointment struct {
	ID                 uuid.UUID
	ClinicID           uuid.UUID
	ProfessionalID     uuid.UUID
	PatientID          uuid.UUID
	ServiceID          *uuid.UUID
	StartTime          time.Time
	EndTime            time.Time
	Status             AppointmentStatus
	Notes              *string
	CancelledAt        *time.Time
	CancellationReason *string
	ReminderSentAt     *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Message   string
	Kind      NotificationKind
	IsRead    bool
	CreatedAt time.Time
}

// AppointmentDetail hydrates an appointment with the names the API and the
// CSV export need.
type AppointmentDetail struct {
	Appointment
	PatientName      string
	PatientPhone     string
	ProfessionalName string
	ServiceName      *string
}

// Slot is one free candidate interval on the availability grid.
type Slot struct {
	Start time.Time
	End   time.Time
}
