package scheduling

import (
	"errors"
	"fmt"
)

var (
	ErrClinicNotFound       = errors.New("clinic not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrPatientNotFound      = errors.New("patient not found")
	ErrServiceNotFound      = errors.New("service not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrInvalidTransition is returned by the state machine when an
	// operation is invoked from a state that does not permit it, including
	// completing an appointment before its end time has passed.
	ErrInvalidTransition = errors.New("invalid appointment status transition")

	// ErrNotEditable is returned when editing a completed or cancelled
	// appointment. Those records are frozen.
	ErrNotEditable = errors.New("completed and cancelled appointments cannot be edited")

	// ErrProfessionalBusy means the booking lock could not be taken;
	// callers may retry.
	ErrProfessionalBusy = errors.New("professional's calendar is being booked, retry shortly")

	ErrInvalidInterval = errors.New("appointment end must be after start")
)

// ConflictError reports an interval overlap with an existing live
// appointment. It carries the conflicting appointment for diagnostics.
type ConflictError struct {
	Conflicting *Appointment
}

func (e *ConflictError) Error() string {
	if e.Conflicting == nil {
		return "appointment interval conflicts with an existing booking"
	}
	return fmt.Sprintf("appointment interval conflicts with booking %s [%s, %s)",
		e.Conflicting.ID,
		e.Conflicting.StartTime.Format("2006-01-02 15:04"),
		e.Conflicting.EndTime.Format("15:04"))
}

// AsConflict unwraps err into a *ConflictError, or nil.
func AsConflict(err error) *ConflictError {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce
	}
	return nil
}
