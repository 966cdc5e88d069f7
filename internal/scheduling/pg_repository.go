package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATE for exclusion constraint violations; raised by the
// appointments_no_overlap constraint when the lock-guarded fast path is
// ever bypassed or lied to.
const exclusionViolation = "23P01"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

var _ Repository = (*PgRepository)(nil)

// Helpers

func scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Phone,
		&c.Email,
		&c.Address,
		&c.ThemeColor,
		&c.Plan,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClinicNotFound
		}
		return nil, err
	}
	return &c, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.ClinicID,
		&u.FullName,
		&u.Phone,
		&u.IsActive,
		&u.CreatedAt,
		&u.LastLogin,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID,
		&p.ClinicID,
		&p.Name,
		&p.Phone,
		&p.Email,
		&p.DateOfBirth,
		&p.Address,
		&p.Notes,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanService(row pgx.Row) (*Service, error) {
	var s Service
	err := row.Scan(
		&s.ID,
		&s.ClinicID,
		&s.Name,
		&s.Description,
		&s.DurationMinutes,
		&s.Price,
		&s.IsActive,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.ClinicID,
		&a.ProfessionalID,
		&a.PatientID,
		&a.ServiceID,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.Notes,
		&a.CancelledAt,
		&a.CancellationReason,
		&a.ReminderSentAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

const appointmentColumns = `
	id, clinic_id, professional_id, patient_id, service_id,
	start_time, end_time, status, notes,
	cancelled_at, cancellation_reason, reminder_sent_at,
	created_at, updated_at`

func scanAppointmentDetail(row pgx.Row) (*AppointmentDetail, error) {
	var d AppointmentDetail
	var profFullName *string
	var profUsername string
	err := row.Scan(
		&d.ID,
		&d.ClinicID,
		&d.ProfessionalID,
		&d.PatientID,
		&d.ServiceID,
		&d.StartTime,
		&d.EndTime,
		&d.Status,
		&d.Notes,
		&d.CancelledAt,
		&d.CancellationReason,
		&d.ReminderSentAt,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.PatientName,
		&d.PatientPhone,
		&profFullName,
		&profUsername,
		&d.ServiceName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	if profFullName != nil && *profFullName != "" {
		d.ProfessionalName = *profFullName
	} else {
		d.ProfessionalName = profUsername
	}
	return &d, nil
}

const appointmentDetailQuery = `
	SELECT a.id, a.clinic_id, a.professional_id, a.patient_id, a.service_id,
	       a.start_time, a.end_time, a.status, a.notes,
	       a.cancelled_at, a.cancellation_reason, a.reminder_sent_at,
	       a.created_at, a.updated_at,
	       p.name, p.phone, u.full_name, u.username, s.name
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN users u ON u.id = a.professional_id
	LEFT JOIN services s ON s.id = a.service_id`

// mapConflict converts an exclusion constraint violation into the typed
// conflict error every caller already handles.
func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
		return &ConflictError{}
	}
	return err
}

// Clinics

func (r *PgRepository) CreateClinic(ctx context.Context, c *Clinic) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO clinics (id, name, phone, email, address, theme_color, plan, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.ID, c.Name, c.Phone, c.Email, c.Address, c.ThemeColor, c.Plan, c.IsActive, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert clinic: %w", err)
	}
	return nil
}

func (r *PgRepository) GetClinicByID(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, phone, email, address, theme_color, plan, is_active, created_at, updated_at
		FROM clinics
		WHERE id = $1
	`, id)
	return scanClinic(row)
}

func (r *PgRepository) ListClinics(ctx context.Context) ([]Clinic, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, phone, email, address, theme_color, plan, is_active, created_at, updated_at
		FROM clinics
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Clinic
	for rows.Next() {
		c, err := scanClinic(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

func (r *PgRepository) UpdateClinic(ctx context.Context, c *Clinic) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE clinics
		SET name = $2, phone = $3, email = $4, address = $5,
		    theme_color = $6, plan = $7, is_active = $8, updated_at = now()
		WHERE id = $1
	`, c.ID, c.Name, c.Phone, c.Email, c.Address, c.ThemeColor, c.Plan, c.IsActive)
	if err != nil {
		return fmt.Errorf("update clinic: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrClinicNotFound
	}
	return nil
}

// Users

func (r *PgRepository) CreateUser(ctx context.Context, u *User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, username, email, password_hash, role, clinic_id, full_name, phone, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.Role, u.ClinicID, u.FullName, u.Phone, u.IsActive, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *PgRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, role, clinic_id, full_name, phone, is_active, created_at, last_login
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (r *PgRepository) GetUserByLogin(ctx context.Context, login string) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, role, clinic_id, full_name, phone, is_active, created_at, last_login
		FROM users
		WHERE username = $1 OR email = $1
	`, login)
	return scanUser(row)
}

func (r *PgRepository) ListProfessionals(ctx context.Context, clinicID uuid.UUID) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, username, email, password_hash, role, clinic_id, full_name, phone, is_active, created_at, last_login
		FROM users
		WHERE clinic_id = $1 AND role = $2
		ORDER BY username
	`, clinicID, RoleProfessional)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *u)
	}
	return result, rows.Err()
}

func (r *PgRepository) UpdateUser(ctx context.Context, u *User) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET username = $2, email = $3, full_name = $4, phone = $5, is_active = $6
		WHERE id = $1
	`, u.ID, u.Username, u.Email, u.FullName, u.Phone, u.IsActive)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PgRepository) UpdateUserPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2 WHERE id = $1
	`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PgRepository) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
	return err
}

func (r *PgRepository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Patients

func (r *PgRepository) CreatePatient(ctx context.Context, p *Patient) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patients (id, clinic_id, name, phone, email, date_of_birth, address, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, p.ID, p.ClinicID, p.Name, p.Phone, p.Email, p.DateOfBirth, p.Address, p.Notes, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, clinic_id, name, phone, email, date_of_birth, address, notes, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) ListPatients(ctx context.Context, f PatientFilter) ([]Patient, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, clinic_id, name, phone, email, date_of_birth, address, notes, created_at, updated_at
		FROM patients
		WHERE clinic_id = $1`
	args := []any{f.ClinicID}

	if f.Query != "" {
		query += ` AND (name ILIKE '%' || $2 || '%' OR phone ILIKE '%' || $2 || '%')`
		args = append(args, f.Query)
	}
	query += fmt.Sprintf(` ORDER BY name LIMIT %d OFFSET %d`, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

func (r *PgRepository) UpdatePatient(ctx context.Context, p *Patient) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE patients
		SET name = $2, phone = $3, email = $4, date_of_birth = $5, address = $6, notes = $7, updated_at = now()
		WHERE id = $1
	`, p.ID, p.Name, p.Phone, p.Email, p.DateOfBirth, p.Address, p.Notes)
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

// Services

func (r *PgRepository) CreateService(ctx context.Context, s *Service) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO services (id, clinic_id, name, description, duration_minutes, price, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, s.ID, s.ClinicID, s.Name, s.Description, s.DurationMinutes, s.Price, s.IsActive, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert service: %w", err)
	}
	return nil
}

func (r *PgRepository) GetServiceByID(ctx context.Context, id uuid.UUID) (*Service, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, clinic_id, name, description, duration_minutes, price, is_active, created_at, updated_at
		FROM services
		WHERE id = $1
	`, id)
	return scanService(row)
}

func (r *PgRepository) ListServices(ctx context.Context, clinicID uuid.UUID, activeOnly bool) ([]Service, error) {
	query := `
		SELECT id, clinic_id, name, description, duration_minutes, price, is_active, created_at, updated_at
		FROM services
		WHERE clinic_id = $1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *PgRepository) UpdateService(ctx context.Context, s *Service) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE services
		SET name = $2, description = $3, duration_minutes = $4, price = $5, is_active = $6, updated_at = now()
		WHERE id = $1
	`, s.ID, s.Name, s.Description, s.DurationMinutes, s.Price, s.IsActive)
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrServiceNotFound
	}
	return nil
}

// Appointments

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (id, clinic_id, professional_id, patient_id, service_id,
		                          start_time, end_time, status, notes,
		                          cancelled_at, cancellation_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, a.ID, a.ClinicID, a.ProfessionalID, a.PatientID, a.ServiceID,
		a.StartTime, a.EndTime, a.Status, a.Notes,
		a.CancelledAt, a.CancellationReason, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return mapConflict(err)
	}
	return nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	row := r.pool.QueryRow(ctx, appointmentDetailQuery+` WHERE a.id = $1`, id)
	return scanAppointmentDetail(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, f AppointmentFilter) ([]AppointmentDetail, error) {
	query := appointmentDetailQuery + ` WHERE a.clinic_id = $1`
	args := []any{f.ClinicID}
	n := 1

	if f.ProfessionalID != nil {
		n++
		query += fmt.Sprintf(" AND a.professional_id = $%d", n)
		args = append(args, *f.ProfessionalID)
	}
	if f.Status != nil {
		n++
		query += fmt.Sprintf(" AND a.status = $%d", n)
		args = append(args, *f.Status)
	} else if !f.IncludeClosed {
		query += ` AND a.status IN ('scheduled', 'completed')`
	}
	if f.From != nil {
		n++
		query += fmt.Sprintf(" AND a.start_time >= $%d", n)
		args = append(args, *f.From)
	}
	if f.To != nil {
		n++
		query += fmt.Sprintf(" AND a.end_time <= $%d", n)
		args = append(args, *f.To)
	}
	query += ` ORDER BY a.start_time`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		d, err := scanAppointmentDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

func (r *PgRepository) FindConflict(ctx context.Context, clinicID, professionalID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (*Appointment, error) {
	query := `SELECT` + appointmentColumns + `
		FROM appointments
		WHERE clinic_id = $1
		  AND professional_id = $2
		  AND status IN ('scheduled', 'completed')
		  AND start_time < $4
		  AND end_time > $3`
	args := []any{clinicID, professionalID, start, end}

	if excludeID != nil {
		query += ` AND id <> $5`
		args = append(args, *excludeID)
	}
	query += ` ORDER BY id LIMIT 1`

	appt, err := scanAppointment(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return appt, nil
}

func (r *PgRepository) ListLiveForProfessionalBetween(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `SELECT`+appointmentColumns+`
		FROM appointments
		WHERE professional_id = $1
		  AND status IN ('scheduled', 'completed')
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`, professionalID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

// UpdateAppointment rewrites the mutable fields of an editable
// appointment. The status predicate re-checks editability at commit, so
// an edit racing a concurrent cancel or completion loses with
// ErrNotEditable instead of rewriting a closed row.
func (r *PgRepository) UpdateAppointment(ctx context.Context, a *Appointment) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET start_time = $2, end_time = $3, patient_id = $4, service_id = $5, notes = $6, updated_at = $7
		WHERE id = $1
		  AND status IN ('scheduled', 'no_show')
	`, a.ID, a.StartTime, a.EndTime, a.PatientID, a.ServiceID, a.Notes, a.UpdatedAt)
	if err != nil {
		return mapConflict(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotEditable
	}
	return nil
}

func (r *PgRepository) TransitionAppointment(ctx context.Context, a *Appointment, from AppointmentStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
		    cancelled_at = $3,
		    cancellation_reason = $4,
		    updated_at = $5
		WHERE id = $1
		  AND status = $6
	`, a.ID, a.Status, a.CancelledAt, a.CancellationReason, a.UpdatedAt, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// Stats and reports

func (r *PgRepository) CountAppointmentsByStatus(ctx context.Context, clinicID uuid.UUID, professionalID *uuid.UUID, from, to *time.Time) (StatusCounts, error) {
	query := `SELECT status, count(*) FROM appointments WHERE clinic_id = $1`
	args := []any{clinicID}
	n := 1

	if professionalID != nil {
		n++
		query += fmt.Sprintf(" AND professional_id = $%d", n)
		args = append(args, *professionalID)
	}
	if from != nil {
		n++
		query += fmt.Sprintf(" AND start_time >= $%d", n)
		args = append(args, *from)
	}
	if to != nil {
		n++
		query += fmt.Sprintf(" AND start_time < $%d", n)
		args = append(args, *to)
	}
	query += ` GROUP BY status`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(StatusCounts)
	for rows.Next() {
		var status AppointmentStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *PgRepository) CountPatients(ctx context.Context, clinicID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM patients WHERE clinic_id = $1`, clinicID).Scan(&n)
	return n, err
}

func (r *PgRepository) CountActiveProfessionals(ctx context.Context, clinicID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM users WHERE clinic_id = $1 AND role = $2 AND is_active
	`, clinicID, RoleProfessional).Scan(&n)
	return n, err
}

func (r *PgRepository) GlobalCounts(ctx context.Context) (clinics, users, appointments int, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT (SELECT count(*) FROM clinics WHERE is_active),
		       (SELECT count(*) FROM users),
		       (SELECT count(*) FROM appointments)
	`).Scan(&clinics, &users, &appointments)
	return clinics, users, appointments, err
}

func (r *PgRepository) Report(ctx context.Context, clinicID uuid.UUID, from, to time.Time) (*ReportSummary, error) {
	byStatus, err := r.CountAppointmentsByStatus(ctx, clinicID, nil, &from, &to)
	if err != nil {
		return nil, err
	}

	summary := &ReportSummary{ByStatus: byStatus}
	for _, n := range byStatus {
		summary.Total += n
	}

	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(sum(s.price), 0)
		FROM appointments a
		JOIN services s ON s.id = a.service_id
		WHERE a.clinic_id = $1
		  AND a.status = 'completed'
		  AND a.start_time >= $2
		  AND a.start_time < $3
	`, clinicID, from, to).Scan(&summary.EstimatedRevenue)
	if err != nil {
		return nil, fmt.Errorf("sum revenue: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT u.id, COALESCE(NULLIF(u.full_name, ''), u.username), count(a.id)
		FROM appointments a
		JOIN users u ON u.id = a.professional_id
		WHERE a.clinic_id = $1
		  AND a.start_time >= $2
		  AND a.start_time < $3
		GROUP BY u.id, u.full_name, u.username
		ORDER BY count(a.id) DESC
	`, clinicID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var pc ProfessionalCount
		if err := rows.Scan(&pc.ProfessionalID, &pc.ProfessionalName, &pc.Appointments); err != nil {
			return nil, err
		}
		summary.ByProfessional = append(summary.ByProfessional, pc)
	}
	return summary, rows.Err()
}

// Notifications and reminders

func (r *PgRepository) InsertNotification(ctx context.Context, n *Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, message, kind, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, n.ID, n.UserID, n.Message, n.Kind, n.IsRead, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *PgRepository) ListUnreadNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, message, kind, is_read, created_at
		FROM notifications
		WHERE user_id = $1 AND NOT is_read
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Kind, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetNotificationByID(ctx context.Context, id uuid.UUID) (*Notification, error) {
	var n Notification
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, message, kind, is_read, created_at
		FROM notifications
		WHERE id = $1
	`, id).Scan(&n.ID, &n.UserID, &n.Message, &n.Kind, &n.IsRead, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (r *PgRepository) MarkNotificationRead(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = true WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *PgRepository) FindAppointmentsNeedingReminder(ctx context.Context, from, to time.Time) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, appointmentDetailQuery+`
		WHERE a.status = 'scheduled'
		  AND a.reminder_sent_at IS NULL
		  AND a.start_time >= $1
		  AND a.start_time < $2
		ORDER BY a.start_time
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		d, err := scanAppointmentDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

func (r *PgRepository) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE appointments SET reminder_sent_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}
