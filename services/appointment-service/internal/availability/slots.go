package availability

import (
	"time"

	"github.com/md-rashed-zaman/apptbook/services/appointment-service/internal/model"
)

// AvailableSlots returns slot start times within [windowStart, windowEnd) where a booking of
// length duration would not overlap any of the busy intervals. Starts before now are skipped.
//
// All times are expected to be in the same location (timezone).
func AvailableSlots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if windowStart.Add(duration).After(windowEnd) {
		return nil
	}

	var slots []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		if t.Before(now) {
			continue
		}
		if !overlapsAny(Interval{Start: t, End: t.Add(duration)}, busy) {
			slots = append(slots, t)
		}
	}
	return slots
}

func overlapsAny(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(candidate, b) {
			return true
		}
	}
	return false
}

// BusyIntervals projects the appointments that still hold their slot into intervals.
func BusyIntervals(appts []model.Appointment) []Interval {
	out := make([]Interval, 0, len(appts))
	for _, a := range appts {
		if a.Status.ConflictExempt() {
			continue
		}
		out = append(out, Interval{Start: a.StartTime, End: a.EndTime})
	}
	return out
}
