package scheduling

import (
	"errors"
	"time"

	"github.com/rentora/appointment-service/internal/model"
)

// ErrInvalidWindow rejects candidate windows with non-positive duration.
// Validation upstream should have caught this; the detector refuses to
// treat a malformed window as conflict-free.
var ErrInvalidWindow = errors.New("scheduling: candidate window must have positive duration")

// Overlaps reports whether the half-open intervals [s1,e1) and [s2,e2)
// intersect. Back-to-back windows (e1 == s2) do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// HasConflict reports whether [start,end) overlaps any active appointment in
// busy, skipping excludeID (used when rescheduling an appointment against
// itself). Cancelled and no-show entries never conflict.
func HasConflict(busy []model.Appointment, start, end time.Time, excludeID string) (bool, error) {
	if !end.After(start) {
		return false, ErrInvalidWindow
	}
	for i := range busy {
		a := &busy[i]
		if excludeID != "" && a.ID == excludeID {
			continue
		}
		if !a.Status.Active() {
			continue
		}
		if Overlaps(start, end, a.StartTime, a.EndTime()) {
			return true, nil
		}
	}
	return false, nil
}
