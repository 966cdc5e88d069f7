package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	redisclient "github.com/clinicbook/clinicbook/internal/redis"
)

// mutexLocker serializes critical sections per (clinic, professional)
// pair, standing in for the Redis lock.
type mutexLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMutexLocker() *mutexLocker {
	return &mutexLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *mutexLocker) WithProfessionalLock(ctx context.Context, clinicID, professionalID uuid.UUID, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("%s:%s", clinicID, professionalID)
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}

// busyLocker always reports contention.
type busyLocker struct{}

func (busyLocker) WithProfessionalLock(context.Context, uuid.UUID, uuid.UUID, func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

type fixture struct {
	repo      *MemoryRepository
	scheduler *Scheduler
	clinic    *Clinic
	prof      *User
	patient   *Patient
	service   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithLocker(t, newMutexLocker())
}

func newFixtureWithLocker(t *testing.T, locker redisclient.Locker) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := NewMemoryRepository()

	clinic := &Clinic{ID: uuid.New(), Name: "Clinica San Marcos", ThemeColor: "#0d6efd", Plan: "basic", IsActive: true}
	if err := repo.CreateClinic(ctx, clinic); err != nil {
		t.Fatal(err)
	}

	fullName := "Dra. Elena Huaman"
	prof := &User{
		ID:       uuid.New(),
		Username: "ehuaman",
		Email:    "ehuaman@example.com",
		Role:     RoleProfessional,
		ClinicID: &clinic.ID,
		FullName: &fullName,
		IsActive: true,
	}
	if err := repo.CreateUser(ctx, prof); err != nil {
		t.Fatal(err)
	}

	patient := &Patient{ID: uuid.New(), ClinicID: clinic.ID, Name: "Jorge Quispe", Phone: "987654321"}
	if err := repo.CreatePatient(ctx, patient); err != nil {
		t.Fatal(err)
	}

	price := 80.0
	service := &Service{ID: uuid.New(), ClinicID: clinic.ID, Name: "Consulta general", DurationMinutes: 30, Price: &price, IsActive: true}
	if err := repo.CreateService(ctx, service); err != nil {
		t.Fatal(err)
	}

	scheduler := NewScheduler(repo, locker, zap.NewNop(), nil, time.UTC)
	return &fixture{repo: repo, scheduler: scheduler, clinic: clinic, prof: prof, patient: patient, service: service}
}

func (f *fixture) bookCmd(start, end time.Time) BookCommand {
	return BookCommand{
		ClinicID:       f.clinic.ID,
		ProfessionalID: f.prof.ID,
		PatientID:      f.patient.ID,
		ServiceID:      &f.service.ID,
		Start:          start,
		End:            end,
	}
}

func TestBookCreatesScheduledAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.scheduler.Book(ctx, f.bookCmd(at(9, 0), at(9, 30)))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if appt.Status != StatusScheduled {
		t.Errorf("status = %q, want scheduled", appt.Status)
	}

	stored, err := f.repo.GetAppointmentByID(ctx, appt.ID)
	if err != nil {
		t.Fatalf("appointment not persisted: %v", err)
	}
	if !stored.StartTime.Equal(at(9, 0)) || !stored.EndTime.Equal(at(9, 30)) {
		t.Errorf("stored interval [%v, %v)", stored.StartTime, stored.EndTime)
	}
}

func TestBookRejectsOverlap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.scheduler.Book(ctx, f.bookCmd(at(9, 0), at(10, 0)))
	if err != nil {
		t.Fatalf("first booking: %v", err)
	}

	_, err = f.scheduler.Book(ctx, f.bookCmd(at(9, 30), at(10, 30)))
	ce := AsConflict(err)
	if ce == nil {
		t.Fatalf("err = %v, want ConflictError", err)
	}
	if ce.Conflicting == nil || ce.Conflicting.ID != first.ID {
		t.Errorf("conflicting = %v, want %s", ce.Conflicting, first.ID)
	}
}

func TestBookAllowsTouchingIntervals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.scheduler.Book(ctx, f.bookCmd(at(9, 0), at(10, 0))); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if _, err := f.scheduler.Book(ctx, f.bookCmd(at(10, 0), at(11, 0))); err != nil {
		t.Fatalf("back-to-back booking rejected: %v", err)
	}
}

func TestBookAllowsOverlapAfterCancellation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.scheduler.Book(ctx, f.bookCmd(at(9, 0), at(10, 0)))
	if err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if _, err := f.scheduler.Cancel(ctx, first.ID, "patient sick"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if _, err := f.scheduler.Book(ctx, f.bookCmd(at(9, 0), at(10, 0))); err != nil {
		t.Fatalf("slot not freed after cancellation: %v", err)
	}
}

func TestBookDifferentProfessionalsDoNotConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := &User{ID: uuid.New(), Username: "mtorres", Email: "mtorres@example.com", Role: RoleProfessional, ClinicID: &f.clinic.ID, IsActive: true}
	if err := f.repo.CreateUser(ctx, other); err != nil {
		t.Fatal(err)
	}

	if _, err := f.scheduler.Book(ctx, f.bookCmd(at(9, 0), at(10, 0))); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	cmd := f.bookCmd(at(9, 0), at(10, 0))
	cmd.ProfessionalID = other.ID
	if _, err := f.scheduler.Book(ctx, cmd); err != nil {
		t.Fatalf("same interval on another professional rejected: %v", err)
	}
}

func TestBookRejectsInvertedInterval(t *testing.T) {
	f := newFixture(t)

	_, err := f.scheduler.Book(context.Background(), f.bookCmd(at(10, 0), at(9, 0)))
	if !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("err = %v, want ErrInvalidInterval", err)
	}

	_, err = f.scheduler.Book(context.Background(), f.bookCmd(at(9, 0), at(9, 0)))
	if !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("zero-length interval: err = %v, want ErrInvalidInterval", err)
	}
}

func TestBookRejectsCrossTenantParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	otherClinic := &Clinic{ID: uuid.New(), Name: "Otra Clinica", IsActive: true}
	if err := f.repo.CreateClinic(ctx, otherClinic); err != nil {
		t.Fatal(err)
	}
	strayPatient := &Patient{ID: uuid.New(), ClinicID: otherClinic.ID, Name: "Ana", Phone: "911111111"}
	if err := f.repo.CreatePatient(ctx, strayPatient); err != nil {
		t.Fatal(err)
	}

	cmd := f.bookCmd(at(9, 0), at(9, 30))
	cmd.PatientID = strayPatient.ID
	if _, err := f.scheduler.Book(ctx, cmd); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("err = %v, want ErrPatientNotFound", err)
	}
}

func TestBookLockContention(t *testing.T) {
	f := newFixtureWithLocker(t, busyLocker{})

	_, err := f.scheduler.Book(context.Background(), f.bookCmd(at(9, 0), at(9, 30)))
	if !errors.Is(err, ErrProfessionalBusy) {
		t.Errorf("err = %v, want ErrProfessionalBusy", err)
	}
}

func TestConcurrentBookingsOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.scheduler.Book(ctx, f.bookCmd(at(9, 0), at(10, 0)))
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case AsConflict(err) != nil:
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("%d bookings succeeded, want exactly 1", won)
	}
}

func TestEditInterval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.scheduler.Book(ctx, f.bookCmd(at(9, 0), at(9, 30)))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	newStart, newEnd := at(11, 0), at(11, 45)
	updated, err := f.scheduler.Edit(ctx, appt.ID, EditCommand{Start: &newStart, End: &newEnd})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if !updated.StartTime.Equal(newStart) || !updated.EndTime.Equal(newEnd) {
		t.Errorf("interval = [%v, %v), want [11:00, 11:45)", updated.StartTime, updated.EndTime)
	}
	if updated.Status != StatusScheduled {
		t.Errorf("status changed to %q during edit", updated.Status)
	}
}

func TestEditRejectsConflictExcludingSelf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.scheduler.Book(ctx, f.bookCmd(at(9, 0), at(9, 30)))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	other, err := f.scheduler.Book(ctx, f.bookCmd(at(10, 0), at(10, 30)))
	if err != nil {
		t.Fatalf("second booking: %v", err)
	}

	// Shrinking inside its own current interval must not self-conflict.
	selfStart, selfEnd := at(9, 10), at(9, 25)
	if _, err := f.scheduler.Edit(ctx, appt.ID, EditCommand{Start: &selfStart, End: &selfEnd}); err != nil {
		t.Fatalf("self-overlapping edit rejected: %v", err)
	}

	// Moving onto the other booking must conflict.
	clashStart, clashEnd := at(10, 15), at(10, 45)
	_, err = f.scheduler.Edit(ctx, appt.ID, EditCommand{Start: &clashStart, End: &clashEnd})
	ce := AsConflict(err)
	if ce == nil {
		t.Fatalf("err = %v, want ConflictError", err)
	}
	if ce.Conflicting == nil || ce.Conflicting.ID != other.ID {
		t.Errorf("conflicting = %v, want %s", ce.Conflicting, other.ID)
	}
}

func TestEditRejectsFrozenStatuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.scheduler.now = func() time.Time { return at(12, 0) }

	appt, err := f.scheduler.Book(ctx, f.bookCmd(at(9, 0), at(9, 30)))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if _, err := f.scheduler.Complete(ctx, appt.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	notes := "updated"
	if _, err := f.scheduler.Edit(ctx, appt.ID, EditCommand{Notes: &notes}); !errors.Is(err, ErrNotEditable) {
		t.Errorf("edit of completed: err = %v, want ErrNotEditable", err)
	}
}

// cancelRacingLocker closes the appointment after the lock is taken but
// before the critical section runs, standing in for a cancel that lands
// between an edit's editability pre-check and its commit.
type cancelRacingLocker struct {
	repo *MemoryRepository
	id   uuid.UUID
}

func (l *cancelRacingLocker) WithProfessionalLock(ctx context.Context, _, _ uuid.UUID, fn func(ctx context.Context) error) error {
	appt, err := l.repo.GetAppointmentByID(ctx, l.id)
	if err != nil {
		return err
	}
	if err := appt.Cancel(time.Now(), "walk-in cancelled"); err != nil {
		return err
	}
	if err := l.repo.TransitionAppointment(ctx, appt, StatusScheduled); err != nil {
		return err
	}
	return fn(ctx)
}

func TestEditLosesRaceWithCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.scheduler.Book(ctx, f.bookCmd(at(9, 0), at(9, 30)))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	f.scheduler.locker = &cancelRacingLocker{repo: f.repo, id: appt.ID}

	newStart, newEnd := at(11, 0), at(11, 30)
	if _, err := f.scheduler.Edit(ctx, appt.ID, EditCommand{Start: &newStart, End: &newEnd}); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("edit racing cancel: err = %v, want ErrNotEditable", err)
	}

	stored, err := f.repo.GetAppointmentByID(ctx, appt.ID)
	if err != nil {
		t.Fatalf("GetAppointmentByID: %v", err)
	}
	if stored.Status != StatusCancelled {
		t.Errorf("status = %q, want %q", stored.Status, StatusCancelled)
	}
	if !stored.StartTime.Equal(at(9, 0)) || !stored.EndTime.Equal(at(9, 30)) {
		t.Errorf("interval rewritten to [%v, %v) after cancel", stored.StartTime, stored.EndTime)
	}
}

func TestEditAllowedForNoShow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.scheduler.Book(ctx, f.bookCmd(at(9, 0), at(9, 30)))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if _, err := f.scheduler.MarkNoShow(ctx, appt.ID, ""); err != nil {
		t.Fatalf("MarkNoShow: %v", err)
	}

	newStart, newEnd := at(15, 0), at(15, 30)
	updated, err := f.scheduler.Edit(ctx, appt.ID, EditCommand{Start: &newStart, End: &newEnd})
	if err != nil {
		t.Fatalf("edit of no-show rejected: %v", err)
	}
	if updated.Status != StatusNoShow {
		t.Errorf("status = %q, edit must not resurrect the booking", updated.Status)
	}
}

func TestCompleteBeforeEndFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.scheduler.now = func() time.Time { return at(9, 15) }

	appt, err := f.scheduler.Book(ctx, f.bookCmd(at(9, 0), at(9, 30)))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	if _, err := f.scheduler.Complete(ctx, appt.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestCompleteTwiceFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.scheduler.now = func() time.Time { return at(12, 0) }

	appt, err := f.scheduler.Book(ctx, f.bookCmd(at(9, 0), at(9, 30)))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if _, err := f.scheduler.Complete(ctx, appt.ID); err != nil {
		t.Fatalf("first Complete: %v", err)
	}
	if _, err := f.scheduler.Complete(ctx, appt.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second Complete: err = %v, want ErrInvalidTransition", err)
	}
}

func TestAvailableSlotsReflectBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.scheduler.Book(ctx, f.bookCmd(at(10, 0), at(10, 30))); err != nil {
		t.Fatalf("Book: %v", err)
	}

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	slots, err := f.scheduler.AvailableSlots(ctx, f.prof.ID, day, 30)
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	if len(slots) != 23 {
		t.Errorf("got %d slots, want 23", len(slots))
	}
}

func TestStatsPerRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.scheduler.now = func() time.Time { return at(12, 0) }

	appt, err := f.scheduler.Book(ctx, f.bookCmd(at(9, 0), at(9, 30)))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if _, err := f.scheduler.Complete(ctx, appt.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, err := f.scheduler.Book(ctx, f.bookCmd(at(14, 0), at(14, 30))); err != nil {
		t.Fatalf("second booking: %v", err)
	}

	admin := &User{ID: uuid.New(), Role: RoleClinicAdmin, ClinicID: &f.clinic.ID}
	stats, err := f.scheduler.Stats(ctx, admin)
	if err != nil {
		t.Fatalf("Stats(admin): %v", err)
	}
	if stats["appointments_scheduled"] != 1 || stats["appointments_completed"] != 1 {
		t.Errorf("admin stats = %v", stats)
	}
	if stats["patients_count"] != 1 || stats["professionals_count"] != 1 {
		t.Errorf("admin counts = %v", stats)
	}

	profStats, err := f.scheduler.Stats(ctx, f.prof)
	if err != nil {
		t.Fatalf("Stats(professional): %v", err)
	}
	if profStats["my_appointments_scheduled"] != 1 || profStats["my_appointments_completed"] != 1 {
		t.Errorf("professional stats = %v", profStats)
	}
	if profStats["appointments_today"] != 1 {
		t.Errorf("appointments_today = %d, want 1", profStats["appointments_today"])
	}

	super := &User{ID: uuid.New(), Role: RoleSuperAdmin}
	superStats, err := f.scheduler.Stats(ctx, super)
	if err != nil {
		t.Fatalf("Stats(super): %v", err)
	}
	if superStats["total_clinics"] != 1 || superStats["total_appointments"] != 2 {
		t.Errorf("super stats = %v", superStats)
	}
}

func TestSendReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.scheduler.now = func() time.Time { return at(8, 0) }

	soon, err := f.scheduler.Book(ctx, f.bookCmd(at(9, 0), at(9, 30)))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if _, err := f.scheduler.Book(ctx, f.bookCmd(at(15, 0), at(15, 30))); err != nil {
		t.Fatalf("distant booking: %v", err)
	}

	sent, err := f.scheduler.SendReminders(ctx, 2*time.Hour)
	if err != nil {
		t.Fatalf("SendReminders: %v", err)
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}

	notifs, err := f.repo.ListUnreadNotifications(ctx, f.prof.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(notifs) != 1 {
		t.Fatalf("got %d notifications, want 1", len(notifs))
	}

	stored, err := f.repo.GetAppointmentByID(ctx, soon.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.ReminderSentAt == nil {
		t.Error("ReminderSentAt not set")
	}

	// A second pass sends nothing.
	sent, err = f.scheduler.SendReminders(ctx, 2*time.Hour)
	if err != nil {
		t.Fatalf("second SendReminders: %v", err)
	}
	if sent != 0 {
		t.Errorf("second pass sent = %d, want 0", sent)
	}
}

func TestReportAggregates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.scheduler.now = func() time.Time { return at(12, 0) }

	appt, err := f.scheduler.Book(ctx, f.bookCmd(at(9, 0), at(9, 30)))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if _, err := f.scheduler.Complete(ctx, appt.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	cancelled, err := f.scheduler.Book(ctx, f.bookCmd(at(14, 0), at(14, 30)))
	if err != nil {
		t.Fatalf("second booking: %v", err)
	}
	if _, err := f.scheduler.Cancel(ctx, cancelled.ID, ""); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	report, err := f.scheduler.Report(ctx, f.clinic.ID, from, to)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if report.Total != 2 {
		t.Errorf("total = %d, want 2", report.Total)
	}
	if report.ByStatus[StatusCompleted] != 1 || report.ByStatus[StatusCancelled] != 1 {
		t.Errorf("by status = %v", report.ByStatus)
	}
	if report.EstimatedRevenue != 80.0 {
		t.Errorf("revenue = %.2f, want 80.00", report.EstimatedRevenue)
	}
	if len(report.ByProfessional) != 1 || report.ByProfessional[0].Appointments != 2 {
		t.Errorf("by professional = %v", report.ByProfessional)
	}
}
