package scheduling

import "time"

const (
	defaultCancelReason = "cancelled by staff"
	defaultNoShowReason = "patient did not attend"
)

// CanBeCompleted reports whether the appointment may be marked completed
// at the given instant. Completion records an encounter that already
// happened, so the end time must have passed.
func (a *Appointment) CanBeCompleted(now time.Time) bool {
	return a.Status == StatusScheduled && !now.Before(a.EndTime)
}

func (a *Appointment) CanBeCancelled() bool {
	return a.Status == StatusScheduled
}

// CanBeEdited permits edits to scheduled appointments and to no-shows,
// which often represent a rescheduling opportunity. Completed and
// cancelled records are frozen.
func (a *Appointment) CanBeEdited() bool {
	return a.Status == StatusScheduled || a.Status == StatusNoShow
}

// Complete transitions scheduled → completed. Fails with
// ErrInvalidTransition when the appointment is not scheduled or its end
// time is still in the future.
func (a *Appointment) Complete(now time.Time) error {
	if !a.CanBeCompleted(now) {
		return ErrInvalidTransition
	}
	a.Status = StatusCompleted
	a.UpdatedAt = now
	return nil
}

// Cancel transitions scheduled → cancelled and records when and why.
func (a *Appointment) Cancel(now time.Time, reason string) error {
	if !a.CanBeCancelled() {
		return ErrInvalidTransition
	}
	if reason == "" {
		reason = defaultCancelReason
	}
	a.Status = StatusCancelled
	a.CancelledAt = &now
	a.CancellationReason = &reason
	a.UpdatedAt = now
	return nil
}

// MarkNoShow transitions scheduled → no_show. The reason shares the
// cancellation_reason field; CancelledAt stays unset.
func (a *Appointment) MarkNoShow(now time.Time, reason string) error {
	if a.Status != StatusScheduled {
		return ErrInvalidTransition
	}
	if reason == "" {
		reason = defaultNoShowReason
	}
	a.Status = StatusNoShow
	a.CancellationReason = &reason
	a.UpdatedAt = now
	return nil
}
