package scheduling

import (
	"time"

	"github.com/rentora/appointment-service/internal/model"
)

// BusinessHours describes the bookable window of a calendar day and the
// granularity of candidate slot starts.
type BusinessHours struct {
	StartHour    int
	StartMinute  int
	EndHour      int
	EndMinute    int
	SlotInterval time.Duration
}

// DefaultBusinessHours is the 09:00-17:00 / 30-minute grid.
func DefaultBusinessHours() BusinessHours {
	return BusinessHours{
		StartHour:    9,
		EndHour:      17,
		SlotInterval: 30 * time.Minute,
	}
}

// Window resolves the business-hours interval on the given calendar day,
// in that day's location.
func (b BusinessHours) Window(date time.Time) (start, end time.Time) {
	start = time.Date(date.Year(), date.Month(), date.Day(), b.StartHour, b.StartMinute, 0, 0, date.Location())
	end = time.Date(date.Year(), date.Month(), date.Day(), b.EndHour, b.EndMinute, 0, 0, date.Location())
	return start, end
}

// AvailableSlots returns the ascending start times within business hours on
// date where an appointment of the given duration would not overlap any
// active appointment in busy. A slot must fit entirely before the end of
// business hours.
func AvailableSlots(date time.Time, busy []model.Appointment, durationMinutes int, hours BusinessHours) []time.Time {
	if durationMinutes <= 0 {
		return nil
	}
	step := hours.SlotInterval
	if step <= 0 {
		step = 30 * time.Minute
	}
	duration := time.Duration(durationMinutes) * time.Minute

	windowStart, windowEnd := hours.Window(date)
	if !windowEnd.After(windowStart) {
		return nil
	}

	var slots []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		conflict, err := HasConflict(busy, t, t.Add(duration), "")
		if err != nil {
			return nil
		}
		if !conflict {
			slots = append(slots, t)
		}
	}
	return slots
}
