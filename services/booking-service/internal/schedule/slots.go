// Package schedule suggests open consultation slots for a doctor and day.
// The booking surface works in display times ("10:00 AM"); this package
// keeps the interval math in time.Time and converts at the edges.
package schedule

import (
	"time"

	"github.com/kbrhealth/carebook/services/booking-service/internal/model"
)

const (
	displayTime = "03:04 PM"
	displayDate = "2006-01-02"

	// Consultation hours and slot size for walk-in style booking.
	dayStartHour = 9
	dayEndHour   = 17
	slotLength   = 30 * time.Minute
)

type interval struct {
	start time.Time
	end   time.Time
}

// Suggest returns open slot display times for a doctor on a date. Slots
// already held by an active appointment for that doctor are excluded, as
// are slots that have started relative to now. A malformed date yields nil.
func Suggest(date, doctorName string, existing []model.Appointment, now time.Time) []string {
	day, err := time.ParseInLocation(displayDate, date, time.UTC)
	if err != nil {
		return nil
	}
	windowStart := day.Add(dayStartHour * time.Hour)
	windowEnd := day.Add(dayEndHour * time.Hour)

	var busy []interval
	for _, appt := range existing {
		if !appt.Active() || appt.Date != date || appt.DoctorName != doctorName {
			continue
		}
		t, err := time.ParseInLocation(displayTime, appt.Time, time.UTC)
		if err != nil {
			continue
		}
		start := day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
		busy = append(busy, interval{start: start, end: start.Add(slotLength)})
	}

	var out []string
	for t := windowStart; !t.Add(slotLength).After(windowEnd); t = t.Add(slotLength) {
		if t.Before(now) {
			continue
		}
		if overlapsAny(t, t.Add(slotLength), busy) {
			continue
		}
		out = append(out, t.Format(displayTime))
	}
	return out
}

func overlapsAny(start, end time.Time, busy []interval) bool {
	for _, b := range busy {
		// Half-open intervals: [start,end) overlaps [b.start,b.end) iff
		// start < b.end && b.start < end.
		if start.Before(b.end) && b.start.Before(end) {
			return true
		}
	}
	return false
}
