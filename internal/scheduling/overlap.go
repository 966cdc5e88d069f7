package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Working-hours window for availability enumeration, clinic-local.
// A fixed global policy, not configurable per clinic or professional.
const (
	workDayStartHour = 8
	workDayEndHour   = 20
)

// Overlaps reports whether the half-open intervals [s1, e1) and [s2, e2)
// intersect. Intervals that merely touch at an endpoint do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && e1.After(s2)
}

// OverlapsInterval checks the candidate interval against the
// appointment's own interval.
func (a *Appointment) OverlapsInterval(start, end time.Time) bool {
	return Overlaps(a.StartTime, a.EndTime, start, end)
}

// freeSlots partitions the 08:00–20:00 window of date (in loc) into
// consecutive slots of the given length and drops every slot that overlaps
// a live appointment in busy. Trailing time that does not fit a whole slot
// is discarded. The caller filters busy to live statuses.
func freeSlots(date time.Time, loc *time.Location, slotDuration time.Duration, busy []Appointment) []Slot {
	y, m, d := date.In(loc).Date()
	windowStart := time.Date(y, m, d, workDayStartHour, 0, 0, 0, loc)
	windowEnd := time.Date(y, m, d, workDayEndHour, 0, 0, 0, loc)

	var slots []Slot
	for cur := windowStart; !cur.Add(slotDuration).After(windowEnd); cur = cur.Add(slotDuration) {
		slotEnd := cur.Add(slotDuration)

		occupied := false
		for i := range busy {
			if busy[i].OverlapsInterval(cur, slotEnd) {
				occupied = true
				break
			}
		}

		if !occupied {
			slots = append(slots, Slot{Start: cur, End: slotEnd})
		}
	}

	return slots
}

// firstConflict returns the first live appointment in candidates that
// overlaps [start, end), skipping excludeID when non-nil. Candidates are
// expected in primary-key order; the caller has already scoped them to one
// (clinic, professional) pair.
func firstConflict(candidates []Appointment, start, end time.Time, excludeID *uuid.UUID) *Appointment {
	for i := range candidates {
		a := &candidates[i]
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if !a.Status.IsLive() {
			continue
		}
		if a.OverlapsInterval(start, end) {
			return a
		}
	}
	return nil
}
