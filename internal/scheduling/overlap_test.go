package scheduling

import (
	"testing"
	"time"
)

func at(hour, min int) time.Time {
	return time.Date(2026, 3, 10, hour, min, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name           string
		s1, e1, s2, e2 time.Time
		want           bool
	}{
		{"identical", at(9, 0), at(10, 0), at(9, 0), at(10, 0), true},
		{"partial tail", at(9, 0), at(10, 0), at(9, 30), at(10, 30), true},
		{"partial head", at(9, 30), at(10, 30), at(9, 0), at(10, 0), true},
		{"containment", at(9, 0), at(11, 0), at(9, 30), at(10, 0), true},
		{"contained by", at(9, 30), at(10, 0), at(9, 0), at(11, 0), true},
		{"touching end-start", at(9, 0), at(10, 0), at(10, 0), at(11, 0), false},
		{"touching start-end", at(10, 0), at(11, 0), at(9, 0), at(10, 0), false},
		{"disjoint", at(9, 0), at(10, 0), at(14, 0), at(15, 0), false},
		{"one minute overlap", at(9, 0), at(10, 1), at(10, 0), at(11, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.s1, tt.e1, tt.s2, tt.e2); got != tt.want {
				t.Errorf("Overlaps(%v, %v, %v, %v) = %v, want %v",
					tt.s1.Format("15:04"), tt.e1.Format("15:04"),
					tt.s2.Format("15:04"), tt.e2.Format("15:04"), got, tt.want)
			}
		})
	}
}

func TestFreeSlotsEmptyDay(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	slots := freeSlots(day, time.UTC, 30*time.Minute, nil)
	if len(slots) != 24 {
		t.Fatalf("got %d slots, want 24", len(slots))
	}
	if !slots[0].Start.Equal(at(8, 0)) {
		t.Errorf("first slot starts %v, want 08:00", slots[0].Start)
	}
	last := slots[len(slots)-1]
	if !last.Start.Equal(at(19, 30)) || !last.End.Equal(at(20, 0)) {
		t.Errorf("last slot = [%v, %v), want [19:30, 20:00)", last.Start, last.End)
	}
}

func TestFreeSlotsSkipsBookedSlot(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	busy := []Appointment{
		{StartTime: at(10, 0), EndTime: at(10, 30), Status: StatusScheduled},
	}

	slots := freeSlots(day, time.UTC, 30*time.Minute, busy)
	if len(slots) != 23 {
		t.Fatalf("got %d slots, want 23", len(slots))
	}
	for _, s := range slots {
		if s.Start.Equal(at(10, 0)) {
			t.Error("10:00 slot offered despite booking")
		}
	}
}

func TestFreeSlotsUnalignedBookingBlocksBothSlots(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	busy := []Appointment{
		{StartTime: at(10, 15), EndTime: at(10, 45), Status: StatusScheduled},
	}

	slots := freeSlots(day, time.UTC, 30*time.Minute, busy)
	if len(slots) != 22 {
		t.Fatalf("got %d slots, want 22", len(slots))
	}
	for _, s := range slots {
		if s.Start.Equal(at(10, 0)) || s.Start.Equal(at(10, 30)) {
			t.Errorf("slot starting %v offered despite unaligned booking", s.Start.Format("15:04"))
		}
	}
}

func TestFreeSlotsDiscardsPartialTrailingSlot(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	// 08:00-20:00 is 720 minutes; 50-minute slots fit 14 times with
	// 20 minutes left over.
	slots := freeSlots(day, time.UTC, 50*time.Minute, nil)
	if len(slots) != 14 {
		t.Fatalf("got %d slots, want 14", len(slots))
	}
	last := slots[len(slots)-1]
	if last.End.After(at(20, 0)) {
		t.Errorf("last slot ends %v, past 20:00", last.End)
	}
}

func TestFreeSlotsTouchingBookingDoesNotBlock(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	busy := []Appointment{
		{StartTime: at(10, 0), EndTime: at(10, 30), Status: StatusScheduled},
	}

	slots := freeSlots(day, time.UTC, 30*time.Minute, busy)
	var sawBefore, sawAfter bool
	for _, s := range slots {
		if s.Start.Equal(at(9, 30)) {
			sawBefore = true
		}
		if s.Start.Equal(at(10, 30)) {
			sawAfter = true
		}
	}
	if !sawBefore || !sawAfter {
		t.Errorf("adjacent slots blocked: 09:30 offered=%v, 10:30 offered=%v", sawBefore, sawAfter)
	}
}

func TestFirstConflictSkipsExcludedAndClosed(t *testing.T) {
	target := scheduledAppointment(at(9, 0), at(10, 0))
	cancelled := scheduledAppointment(at(9, 0), at(10, 0))
	cancelled.Status = StatusCancelled
	completed := scheduledAppointment(at(9, 30), at(10, 30))
	completed.Status = StatusCompleted

	candidates := []Appointment{*cancelled, *target, *completed}

	if got := firstConflict(candidates, at(9, 15), at(9, 45), nil); got == nil || got.ID != target.ID {
		t.Fatalf("firstConflict = %v, want %s", got, target.ID)
	}

	// Excluding the scheduled row leaves the completed one, which still
	// counts as live.
	if got := firstConflict(candidates, at(9, 15), at(9, 45), &target.ID); got == nil || got.ID != completed.ID {
		t.Fatalf("firstConflict with exclusion = %v, want %s", got, completed.ID)
	}

	if got := firstConflict([]Appointment{*cancelled}, at(9, 15), at(9, 45), nil); got != nil {
		t.Errorf("cancelled appointment reported as conflict: %v", got)
	}
}
