package scheduling

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a mutex-guarded in-memory Repository. It backs the
// package tests and the API handler tests; production code uses
// PgRepository.
type MemoryRepository struct {
	mu            sync.Mutex
	clinics       map[uuid.UUID]Clinic
	users         map[uuid.UUID]User
	patients      map[uuid.UUID]Patient
	services      map[uuid.UUID]Service
	appointments  map[uuid.UUID]Appointment
	notifications map[uuid.UUID]Notification
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		clinics:       make(map[uuid.UUID]Clinic),
		users:         make(map[uuid.UUID]User),
		patients:      make(map[uuid.UUID]Patient),
		services:      make(map[uuid.UUID]Service),
		appointments:  make(map[uuid.UUID]Appointment),
		notifications: make(map[uuid.UUID]Notification),
	}
}

var _ Repository = (*MemoryRepository)(nil)

// Clinics

func (r *MemoryRepository) CreateClinic(_ context.Context, c *Clinic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	r.clinics[c.ID] = *c
	return nil
}

func (r *MemoryRepository) GetClinicByID(_ context.Context, id uuid.UUID) (*Clinic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clinics[id]
	if !ok {
		return nil, ErrClinicNotFound
	}
	return &c, nil
}

func (r *MemoryRepository) ListClinics(_ context.Context) ([]Clinic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Clinic, 0, len(r.clinics))
	for _, c := range r.clinics {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) UpdateClinic(_ context.Context, c *Clinic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clinics[c.ID]; !ok {
		return ErrClinicNotFound
	}
	c.UpdatedAt = time.Now()
	r.clinics[c.ID] = *c
	return nil
}

// Users

func (r *MemoryRepository) CreateUser(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	r.users[u.ID] = *u
	return nil
}

func (r *MemoryRepository) GetUserByID(_ context.Context, id uuid.UUID) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (r *MemoryRepository) GetUserByLogin(_ context.Context, login string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == login || u.Email == login {
			out := u
			return &out, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *MemoryRepository) ListProfessionals(_ context.Context, clinicID uuid.UUID) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []User
	for _, u := range r.users {
		if u.Role == RoleProfessional && u.ClinicID != nil && *u.ClinicID == clinicID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName() < out[j].DisplayName() })
	return out, nil
}

func (r *MemoryRepository) UpdateUser(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return ErrUserNotFound
	}
	r.users[u.ID] = *u
	return nil
}

func (r *MemoryRepository) UpdateUserPassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	r.users[id] = u
	return nil
}

func (r *MemoryRepository) RecordLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.LastLogin = &at
	r.users[id] = u
	return nil
}

func (r *MemoryRepository) DeleteUser(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

// Patients

func (r *MemoryRepository) CreatePatient(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	r.patients[p.ID] = *p
	return nil
}

func (r *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) ListPatients(_ context.Context, f PatientFilter) ([]Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := strings.ToLower(f.Query)
	var out []Patient
	for _, p := range r.patients {
		if p.ClinicID != f.ClinicID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) && !strings.Contains(p.Phone, q) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *MemoryRepository) UpdatePatient(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patients[p.ID]; !ok {
		return ErrPatientNotFound
	}
	p.UpdatedAt = time.Now()
	r.patients[p.ID] = *p
	return nil
}

// Services

func (r *MemoryRepository) CreateService(_ context.Context, s *Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	r.services[s.ID] = *s
	return nil
}

func (r *MemoryRepository) GetServiceByID(_ context.Context, id uuid.UUID) (*Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.services[id]
	if !ok {
		return nil, ErrServiceNotFound
	}
	return &s, nil
}

func (r *MemoryRepository) ListServices(_ context.Context, clinicID uuid.UUID, activeOnly bool) ([]Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Service
	for _, s := range r.services {
		if s.ClinicID != clinicID {
			continue
		}
		if activeOnly && !s.IsActive {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) UpdateService(_ context.Context, s *Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.services[s.ID]; !ok {
		return ErrServiceNotFound
	}
	s.UpdatedAt = time.Now()
	r.services[s.ID] = *s
	return nil
}

// Appointments

func (r *MemoryRepository) CreateAppointment(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Honor the exclusion constraint the real schema enforces.
	if c := firstConflict(r.sortedAppointmentsLocked(a.ClinicID, &a.ProfessionalID), a.StartTime, a.EndTime, nil); c != nil && a.Status.IsLive() {
		return &ConflictError{Conflicting: c}
	}

	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	r.appointments[a.ID] = *a
	return nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) GetAppointmentDetail(_ context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	d := r.hydrateLocked(a)
	return &d, nil
}

func (r *MemoryRepository) ListAppointments(_ context.Context, f AppointmentFilter) ([]AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []AppointmentDetail
	for _, a := range r.appointments {
		if a.ClinicID != f.ClinicID {
			continue
		}
		if f.ProfessionalID != nil && a.ProfessionalID != *f.ProfessionalID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.Status == nil && !f.IncludeClosed && !a.Status.IsLive() {
			continue
		}
		if f.From != nil && a.StartTime.Before(*f.From) {
			continue
		}
		if f.To != nil && a.EndTime.After(*f.To) {
			continue
		}
		out = append(out, r.hydrateLocked(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *MemoryRepository) FindConflict(_ context.Context, clinicID, professionalID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return firstConflict(r.sortedAppointmentsLocked(clinicID, &professionalID), start, end, excludeID), nil
}

func (r *MemoryRepository) ListLiveForProfessionalBetween(_ context.Context, professionalID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.ProfessionalID != professionalID || !a.Status.IsLive() {
			continue
		}
		if a.OverlapsInterval(from, to) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *MemoryRepository) UpdateAppointment(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.appointments[a.ID]
	if !ok {
		return ErrAppointmentNotFound
	}
	if !stored.CanBeEdited() {
		return ErrNotEditable
	}
	if a.Status.IsLive() {
		id := a.ID
		if c := firstConflict(r.sortedAppointmentsLocked(a.ClinicID, &a.ProfessionalID), a.StartTime, a.EndTime, &id); c != nil {
			return &ConflictError{Conflicting: c}
		}
	}
	a.UpdatedAt = time.Now()
	r.appointments[a.ID] = *a
	return nil
}

func (r *MemoryRepository) TransitionAppointment(_ context.Context, a *Appointment, from AppointmentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.appointments[a.ID]
	if !ok || stored.Status != from {
		return ErrAppointmentNotFound
	}
	r.appointments[a.ID] = *a
	return nil
}

func (r *MemoryRepository) DeleteAppointment(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appointments[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(r.appointments, id)
	return nil
}

// Stats and reports

func (r *MemoryRepository) CountAppointmentsByStatus(_ context.Context, clinicID uuid.UUID, professionalID *uuid.UUID, from, to *time.Time) (StatusCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(StatusCounts)
	for _, a := range r.appointments {
		if a.ClinicID != clinicID {
			continue
		}
		if professionalID != nil && a.ProfessionalID != *professionalID {
			continue
		}
		if from != nil && a.StartTime.Before(*from) {
			continue
		}
		if to != nil && !a.StartTime.Before(*to) {
			continue
		}
		counts[a.Status]++
	}
	return counts, nil
}

func (r *MemoryRepository) CountPatients(_ context.Context, clinicID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.patients {
		if p.ClinicID == clinicID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) CountActiveProfessionals(_ context.Context, clinicID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, u := range r.users {
		if u.Role == RoleProfessional && u.IsActive && u.ClinicID != nil && *u.ClinicID == clinicID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) GlobalCounts(_ context.Context) (clinics, users, appointments int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clinics), len(r.users), len(r.appointments), nil
}

func (r *MemoryRepository) Report(_ context.Context, clinicID uuid.UUID, from, to time.Time) (*ReportSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	summary := &ReportSummary{ByStatus: make(StatusCounts)}
	perProf := make(map[uuid.UUID]int)
	for _, a := range r.appointments {
		if a.ClinicID != clinicID || a.StartTime.Before(from) || !a.StartTime.Before(to) {
			continue
		}
		summary.Total++
		summary.ByStatus[a.Status]++
		perProf[a.ProfessionalID]++
		if a.Status == StatusCompleted && a.ServiceID != nil {
			if s, ok := r.services[*a.ServiceID]; ok && s.Price != nil {
				summary.EstimatedRevenue += *s.Price
			}
		}
	}
	for id, n := range perProf {
		name := id.String()
		if u, ok := r.users[id]; ok {
			name = u.DisplayName()
		}
		summary.ByProfessional = append(summary.ByProfessional, ProfessionalCount{
			ProfessionalID:   id,
			ProfessionalName: name,
			Appointments:     n,
		})
	}
	sort.Slice(summary.ByProfessional, func(i, j int) bool {
		return summary.ByProfessional[i].Appointments > summary.ByProfessional[j].Appointments
	})
	return summary, nil
}

// Notifications and reminders

func (r *MemoryRepository) InsertNotification(_ context.Context, n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	r.notifications[n.ID] = *n
	return nil
}

func (r *MemoryRepository) ListUnreadNotifications(_ context.Context, userID uuid.UUID, limit int) ([]Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) GetNotificationByID(_ context.Context, id uuid.UUID) (*Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return nil, ErrNotificationNotFound
	}
	return &n, nil
}

func (r *MemoryRepository) MarkNotificationRead(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return ErrNotificationNotFound
	}
	n.IsRead = true
	r.notifications[id] = n
	return nil
}

func (r *MemoryRepository) FindAppointmentsNeedingReminder(_ context.Context, from, to time.Time) ([]AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []AppointmentDetail
	for _, a := range r.appointments {
		if a.Status != StatusScheduled || a.ReminderSentAt != nil {
			continue
		}
		if a.StartTime.Before(from) || !a.StartTime.Before(to) {
			continue
		}
		out = append(out, r.hydrateLocked(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *MemoryRepository) MarkReminderSent(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	a.ReminderSentAt = &at
	r.appointments[id] = a
	return nil
}

// sortedAppointmentsLocked returns the clinic's appointments in
// primary-key order, optionally filtered to one professional. Callers
// hold r.mu.
func (r *MemoryRepository) sortedAppointmentsLocked(clinicID uuid.UUID, professionalID *uuid.UUID) []Appointment {
	var out []Appointment
	for _, a := range r.appointments {
		if a.ClinicID != clinicID {
			continue
		}
		if professionalID != nil && a.ProfessionalID != *professionalID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(out[i].ID.String(), out[j].ID.String()) < 0
	})
	return out
}

func (r *MemoryRepository) hydrateLocked(a Appointment) AppointmentDetail {
	d := AppointmentDetail{Appointment: a}
	if p, ok := r.patients[a.PatientID]; ok {
		d.PatientName = p.Name
		d.PatientPhone = p.Phone
	}
	if u, ok := r.users[a.ProfessionalID]; ok {
		d.ProfessionalName = u.DisplayName()
	}
	if a.ServiceID != nil {
		if s, ok := r.services[*a.ServiceID]; ok {
			name := s.Name
			d.ServiceName = &name
		}
	}
	return d
}
