package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicbook/clinicbook/internal/metrics"
	redisclient "github.com/clinicbook/clinicbook/internal/redis"
)

const defaultSlotMinutes = 30

type Scheduler struct {
	repo   Repository
	locker redisclient.Locker
	log    *zap.Logger
	col    *metrics.Collector
	loc    *time.Location

	now func() time.Time
}

func NewScheduler(repo Repository, locker redisclient.Locker, log *zap.Logger, col *metrics.Collector, loc *time.Location) *Scheduler {
	return &Scheduler{
		repo:   repo,
		locker: locker,
		log:    log,
		col:    col,
		loc:    loc,
		now:    time.Now,
	}
}

type BookCommand struct {
	ClinicID       uuid.UUID
	ProfessionalID uuid.UUID
	PatientID      uuid.UUID
	ServiceID      *uuid.UUID
	Start          time.Time
	End            time.Time
	Notes          string
}

type EditCommand struct {
	Start     *time.Time
	End       *time.Time
	PatientID *uuid.UUID
	ServiceID *uuid.UUID
	Notes     *string
}

// FindConflict is the read-only overlap probe. The caller guarantees
// end > start.
func (s *Scheduler) FindConflict(ctx context.Context, clinicID, professionalID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (*Appointment, error) {
	return s.repo.FindConflict(ctx, clinicID, professionalID, start, end, excludeID)
}

// AvailableSlots enumerates free fixed-grid slots for the professional on
// the given calendar day, chronologically ascending.
func (s *Scheduler) AvailableSlots(ctx context.Context, professionalID uuid.UUID, date time.Time, durationMins int) ([]Slot, error) {
	if durationMins <= 0 {
		durationMins = defaultSlotMinutes
	}

	y, m, d := date.In(s.loc).Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	busy, err := s.repo.ListLiveForProfessionalBetween(ctx, professionalID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("load day bookings: %w", err)
	}

	return freeSlots(dayStart, s.loc, time.Duration(durationMins)*time.Minute, busy), nil
}

// Book creates a scheduled appointment after the overlap check. The check
// and the insert run inside a per-professional lock so two concurrent
// requests cannot both pass the check; the database exclusion constraint
// backs the lock up at commit time.
func (s *Scheduler) Book(ctx context.Context, cmd BookCommand) (*Appointment, error) {
	if !cmd.End.After(cmd.Start) {
		return nil, ErrInvalidInterval
	}

	if err := s.validateParticipants(ctx, cmd.ClinicID, cmd.ProfessionalID, cmd.PatientID, cmd.ServiceID); err != nil {
		return nil, err
	}

	var created *Appointment

	err := s.locker.WithProfessionalLock(ctx, cmd.ClinicID, cmd.ProfessionalID, func(lockCtx context.Context) error {
		conflict, err := s.repo.FindConflict(lockCtx, cmd.ClinicID, cmd.ProfessionalID, cmd.Start, cmd.End, nil)
		if err != nil {
			return fmt.Errorf("check conflict: %w", err)
		}
		if conflict != nil {
			return &ConflictError{Conflicting: conflict}
		}

		now := s.now()
		appt := &Appointment{
			ID:             uuid.New(),
			ClinicID:       cmd.ClinicID,
			ProfessionalID: cmd.ProfessionalID,
			PatientID:      cmd.PatientID,
			ServiceID:      cmd.ServiceID,
			StartTime:      cmd.Start,
			EndTime:        cmd.End,
			Status:         StatusScheduled,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if cmd.Notes != "" {
			appt.Notes = &cmd.Notes
		}

		if err := s.repo.CreateAppointment(lockCtx, appt); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			s.countLockContention()
			return nil, ErrProfessionalBusy
		}
		if ce := AsConflict(err); ce != nil {
			s.countConflict()
			return nil, ce
		}
		return nil, err
	}

	s.countBooked()
	s.log.Info("appointment booked",
		zap.String("appointment_id", created.ID.String()),
		zap.String("clinic_id", cmd.ClinicID.String()),
		zap.String("professional_id", cmd.ProfessionalID.String()),
		zap.Time("start", cmd.Start),
		zap.Time("end", cmd.End),
	)

	return created, nil
}

// Edit mutates interval, patient, service or notes of an editable
// appointment. A new interval must independently pass the overlap check,
// excluding the appointment itself. Status never changes here.
func (s *Scheduler) Edit(ctx context.Context, id uuid.UUID, cmd EditCommand) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !appt.CanBeEdited() {
		return nil, ErrNotEditable
	}

	start, end := appt.StartTime, appt.EndTime
	if cmd.Start != nil {
		start = *cmd.Start
	}
	if cmd.End != nil {
		end = *cmd.End
	}
	if !end.After(start) {
		return nil, ErrInvalidInterval
	}

	if cmd.PatientID != nil {
		if err := s.checkPatient(ctx, appt.ClinicID, *cmd.PatientID); err != nil {
			return nil, err
		}
	}
	if cmd.ServiceID != nil {
		if err := s.checkService(ctx, appt.ClinicID, *cmd.ServiceID); err != nil {
			return nil, err
		}
	}

	intervalChanged := cmd.Start != nil || cmd.End != nil

	apply := func(lockCtx context.Context) error {
		if intervalChanged {
			conflict, err := s.repo.FindConflict(lockCtx, appt.ClinicID, appt.ProfessionalID, start, end, &appt.ID)
			if err != nil {
				return fmt.Errorf("check conflict: %w", err)
			}
			if conflict != nil {
				return &ConflictError{Conflicting: conflict}
			}
		}

		appt.StartTime = start
		appt.EndTime = end
		if cmd.PatientID != nil {
			appt.PatientID = *cmd.PatientID
		}
		if cmd.ServiceID != nil {
			appt.ServiceID = cmd.ServiceID
		}
		if cmd.Notes != nil {
			if *cmd.Notes == "" {
				appt.Notes = nil
			} else {
				appt.Notes = cmd.Notes
			}
		}
		appt.UpdatedAt = s.now()

		if err := s.repo.UpdateAppointment(lockCtx, appt); err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		return nil
	}

	if intervalChanged {
		err = s.locker.WithProfessionalLock(ctx, appt.ClinicID, appt.ProfessionalID, apply)
	} else {
		err = apply(ctx)
	}

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			s.countLockContention()
			return nil, ErrProfessionalBusy
		}
		if ce := AsConflict(err); ce != nil {
			s.countConflict()
			return nil, ce
		}
		return nil, err
	}

	return appt, nil
}

// Complete marks a scheduled appointment whose end time has passed as
// completed. A concurrent duplicate call loses the status compare-and-set
// and reports ErrInvalidTransition.
func (s *Scheduler) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, func(a *Appointment, now time.Time) error {
		return a.Complete(now)
	}, StatusCompleted)
}

func (s *Scheduler) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	return s.transition(ctx, id, func(a *Appointment, now time.Time) error {
		return a.Cancel(now, reason)
	}, StatusCancelled)
}

func (s *Scheduler) MarkNoShow(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	return s.transition(ctx, id, func(a *Appointment, now time.Time) error {
		return a.MarkNoShow(now, reason)
	}, StatusNoShow)
}

func (s *Scheduler) transition(ctx context.Context, id uuid.UUID, step func(*Appointment, time.Time) error, to AppointmentStatus) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := appt.Status
	if err := step(appt, s.now()); err != nil {
		return nil, err
	}

	if err := s.repo.TransitionAppointment(ctx, appt, from); err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost the compare-and-set to a concurrent writer.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("persist transition: %w", err)
	}

	s.countOutcome(to)
	return appt, nil
}

// Delete removes an appointment permanently. No state-machine gating
// applies; the handler restricts this to administrative roles.
func (s *Scheduler) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteAppointment(ctx, id)
}

func (s *Scheduler) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

func (s *Scheduler) GetDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	return s.repo.GetAppointmentDetail(ctx, id)
}

func (s *Scheduler) List(ctx context.Context, f AppointmentFilter) ([]AppointmentDetail, error) {
	return s.repo.ListAppointments(ctx, f)
}

// Stats returns role-dependent counters, keyed the way the dashboard
// expects them.
func (s *Scheduler) Stats(ctx context.Context, caller *User) (map[string]int, error) {
	stats := make(map[string]int)

	switch caller.Role {
	case RoleSuperAdmin:
		clinics, users, appointments, err := s.repo.GlobalCounts(ctx)
		if err != nil {
			return nil, err
		}
		stats["total_clinics"] = clinics
		stats["total_users"] = users
		stats["total_appointments"] = appointments

	case RoleClinicAdmin:
		clinicID := *caller.ClinicID
		professionals, err := s.repo.CountActiveProfessionals(ctx, clinicID)
		if err != nil {
			return nil, err
		}
		patients, err := s.repo.CountPatients(ctx, clinicID)
		if err != nil {
			return nil, err
		}
		byStatus, err := s.repo.CountAppointmentsByStatus(ctx, clinicID, nil, nil, nil)
		if err != nil {
			return nil, err
		}
		stats["professionals_count"] = professionals
		stats["patients_count"] = patients
		stats["appointments_scheduled"] = byStatus[StatusScheduled]
		stats["appointments_completed"] = byStatus[StatusCompleted]
		stats["appointments_cancelled"] = byStatus[StatusCancelled]

	case RoleProfessional:
		clinicID := *caller.ClinicID
		byStatus, err := s.repo.CountAppointmentsByStatus(ctx, clinicID, &caller.ID, nil, nil)
		if err != nil {
			return nil, err
		}
		stats["my_appointments_scheduled"] = byStatus[StatusScheduled]
		stats["my_appointments_completed"] = byStatus[StatusCompleted]
		stats["my_appointments_cancelled"] = byStatus[StatusCancelled]

		y, m, d := s.now().In(s.loc).Date()
		dayStart := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
		dayEnd := dayStart.AddDate(0, 0, 1)
		today, err := s.repo.CountAppointmentsByStatus(ctx, clinicID, &caller.ID, &dayStart, &dayEnd)
		if err != nil {
			return nil, err
		}
		stats["appointments_today"] = today[StatusScheduled]
	}

	return stats, nil
}

func (s *Scheduler) Report(ctx context.Context, clinicID uuid.UUID, from, to time.Time) (*ReportSummary, error) {
	return s.repo.Report(ctx, clinicID, from, to)
}

// SendReminders writes a notification to each professional whose scheduled
// appointments start within the lead window and have not been reminded
// yet. Intended for the worker loop.
func (s *Scheduler) SendReminders(ctx context.Context, lead time.Duration) (int, error) {
	now := s.now()
	due, err := s.repo.FindAppointmentsNeedingReminder(ctx, now, now.Add(lead))
	if err != nil {
		return 0, fmt.Errorf("find appointments needing reminder: %w", err)
	}

	sent := 0
	for i := range due {
		appt := &due[i]
		msg := fmt.Sprintf("Upcoming appointment with %s at %s",
			appt.PatientName, appt.StartTime.In(s.loc).Format("2006-01-02 15:04"))

		n := &Notification{
			ID:        uuid.New(),
			UserID:    appt.ProfessionalID,
			Message:   msg,
			Kind:      KindInfo,
			CreatedAt: now,
		}
		if err := s.repo.InsertNotification(ctx, n); err != nil {
			s.log.Error("insert reminder notification",
				zap.String("appointment_id", appt.ID.String()), zap.Error(err))
			continue
		}
		if err := s.repo.MarkReminderSent(ctx, appt.ID, now); err != nil {
			s.log.Error("mark reminder sent",
				zap.String("appointment_id", appt.ID.String()), zap.Error(err))
			continue
		}
		sent++
		if s.col != nil {
			s.col.RemindersSent.Inc()
		}
	}

	return sent, nil
}

func (s *Scheduler) validateParticipants(ctx context.Context, clinicID, professionalID, patientID uuid.UUID, serviceID *uuid.UUID) error {
	prof, err := s.repo.GetUserByID(ctx, professionalID)
	if err != nil {
		return err
	}
	if prof.ClinicID == nil || *prof.ClinicID != clinicID || !prof.IsProfessional() {
		return ErrUserNotFound
	}
	if !prof.IsActive {
		return fmt.Errorf("professional %s: %w", prof.Username, ErrUserNotFound)
	}

	if err := s.checkPatient(ctx, clinicID, patientID); err != nil {
		return err
	}
	if serviceID != nil {
		if err := s.checkService(ctx, clinicID, *serviceID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) checkPatient(ctx context.Context, clinicID, patientID uuid.UUID) error {
	p, err := s.repo.GetPatientByID(ctx, patientID)
	if err != nil {
		return err
	}
	if p.ClinicID != clinicID {
		return ErrPatientNotFound
	}
	return nil
}

func (s *Scheduler) checkService(ctx context.Context, clinicID, serviceID uuid.UUID) error {
	sv, err := s.repo.GetServiceByID(ctx, serviceID)
	if err != nil {
		return err
	}
	if sv.ClinicID != clinicID {
		return ErrServiceNotFound
	}
	return nil
}

func (s *Scheduler) countBooked() {
	if s.col != nil {
		s.col.AppointmentsBooked.Inc()
	}
}

func (s *Scheduler) countConflict() {
	if s.col != nil {
		s.col.BookingConflicts.Inc()
	}
}

func (s *Scheduler) countLockContention() {
	if s.col != nil {
		s.col.LockContention.Inc()
	}
}

func (s *Scheduler) countOutcome(status AppointmentStatus) {
	if s.col != nil {
		s.col.AppointmentOutcomes.WithLabelValues(string(status)).Inc()
	}
}
