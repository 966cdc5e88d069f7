package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AppointmentFilter narrows ListAppointments. ClinicID is mandatory; the
// request layer resolves it from the caller's tenant scope.
type AppointmentFilter struct {
	ClinicID       uuid.UUID
	ProfessionalID *uuid.UUID
	Status         *AppointmentStatus
	From           *time.Time
	To             *time.Time
	// IncludeClosed also returns cancelled and no-show rows. The default
	// mirrors the calendar view: live bookings only.
	IncludeClosed bool
}

// PatientFilter narrows ListPatients.
type PatientFilter struct {
	ClinicID uuid.UUID
	Query    string // case-insensitive substring on name or phone
	Limit    int
	Offset   int
}

// StatusCounts maps appointment status to row count.
type StatusCounts map[AppointmentStatus]int

// ReportSummary aggregates a clinic's bookings over a date range.
type ReportSummary struct {
	Total            int
	ByStatus         StatusCounts
	EstimatedRevenue float64
	ByProfessional   []ProfessionalCount
}

type ProfessionalCount struct {
	ProfessionalID   uuid.UUID
	ProfessionalName string
	Appointments     int
}

// Repository contains all DB interactions needed by the service, the API
// layer and the reminder worker.
type Repository interface {
	// Clinics
	CreateClinic(ctx context.Context, c *Clinic) error
	GetClinicByID(ctx context.Context, id uuid.UUID) (*Clinic, error)
	ListClinics(ctx context.Context) ([]Clinic, error)
	UpdateClinic(ctx context.Context, c *Clinic) error

	// Users
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByLogin(ctx context.Context, login string) (*User, error)
	ListProfessionals(ctx context.Context, clinicID uuid.UUID) ([]User, error)
	UpdateUser(ctx context.Context, u *User) error
	UpdateUserPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	DeleteUser(ctx context.Context, id uuid.UUID) error

	// Patients
	CreatePatient(ctx context.Context, p *Patient) error
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	ListPatients(ctx context.Context, f PatientFilter) ([]Patient, error)
	UpdatePatient(ctx context.Context, p *Patient) error

	// Services
	CreateService(ctx context.Context, s *Service) error
	GetServiceByID(ctx context.Context, id uuid.UUID) (*Service, error)
	ListServices(ctx context.Context, clinicID uuid.UUID, activeOnly bool) ([]Service, error)
	UpdateService(ctx context.Context, s *Service) error

	// Appointments
	CreateAppointment(ctx context.Context, a *Appointment) error
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]AppointmentDetail, error)

	// FindConflict returns the first live appointment for the
	// (clinic, professional) pair overlapping [start, end), in primary-key
	// order, or nil. excludeID skips the appointment being edited.
	FindConflict(ctx context.Context, clinicID, professionalID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (*Appointment, error)

	// ListLiveForProfessionalBetween returns scheduled and completed
	// appointments for the professional intersecting [from, to), ordered
	// by start time. Used by the availability grid.
	ListLiveForProfessionalBetween(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]Appointment, error)

	// UpdateAppointment persists interval, patient, service and notes.
	UpdateAppointment(ctx context.Context, a *Appointment) error

	// TransitionAppointment persists a state-machine transition with a
	// compare-and-set on the prior status. Returns ErrAppointmentNotFound
	// when the row is gone or another writer already moved it.
	TransitionAppointment(ctx context.Context, a *Appointment, from AppointmentStatus) error

	DeleteAppointment(ctx context.Context, id uuid.UUID) error

	// Stats and reports
	CountAppointmentsByStatus(ctx context.Context, clinicID uuid.UUID, professionalID *uuid.UUID, from, to *time.Time) (StatusCounts, error)
	CountPatients(ctx context.Context, clinicID uuid.UUID) (int, error)
	CountActiveProfessionals(ctx context.Context, clinicID uuid.UUID) (int, error)
	GlobalCounts(ctx context.Context) (clinics, users, appointments int, err error)
	Report(ctx context.Context, clinicID uuid.UUID, from, to time.Time) (*ReportSummary, error)

	// Notifications and reminders
	InsertNotification(ctx context.Context, n *Notification) error
	ListUnreadNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]Notification, error)
	GetNotificationByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	MarkNotificationRead(ctx context.Context, id uuid.UUID) error

	FindAppointmentsNeedingReminder(ctx context.Context, from, to time.Time) ([]AppointmentDetail, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error
}
