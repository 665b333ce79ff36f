// Package conflict detects double-bookings and drives their resolution.
package conflict

import (
	"github.com/kbrhealth/carebook/services/booking-service/internal/model"
)

// Find reports the first existing appointment that collides with the
// incoming request: same date, same display time, same patient name, and
// still in confirmed state. Cancelled, completed, and rescheduled records
// never block a new booking. The scan is pure and order-deterministic:
// it walks the slice in insertion order and returns the first hit.
func Find(req model.BookingRequest, existing []model.Appointment) *model.Appointment {
	for i := range existing {
		appt := &existing[i]
		if appt.Status != model.StatusConfirmed {
			continue
		}
		if appt.Date == req.Date && appt.Time == req.Time && appt.PatientName == req.PatientName {
			return appt
		}
	}
	return nil
}
