// Package invoice derives the immutable financial record for a committed
// appointment.
package invoice

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kbrhealth/carebook/services/booking-service/internal/model"
)

// DefaultBaseFee is the hospital's standard consultation fee, charged when
// a booking request carries no explicit amount.
const DefaultBaseFee = 500

// Deriver produces exactly one Invoice per committed appointment. Invoices
// are never re-derived: later cancel/reschedule of the source appointment
// must not touch an already-issued invoice.
type Deriver struct {
	baseFee float64
	now     func() time.Time
}

func NewDeriver(baseFee float64) *Deriver {
	if baseFee <= 0 {
		baseFee = DefaultBaseFee
	}
	return &Deriver{baseFee: baseFee, now: time.Now}
}

// WithClock overrides the wall clock; tests use it to pin invoice numbers.
func (d *Deriver) WithClock(now func() time.Time) *Deriver {
	d.now = now
	return d
}

// Derive builds the invoice from booking-time appointment state. The
// invoice number is the wall-clock millisecond timestamp at derivation
// time, an accepted non-cryptographic uniqueness risk for a
// single-process booking path.
func (d *Deriver) Derive(appt model.Appointment) model.Invoice {
	now := d.now().UTC()

	amount := appt.Amount
	if amount <= 0 {
		amount = d.baseFee
	}

	return model.Invoice{
		ID:            uuid.NewString(),
		AppointmentID: appt.ID,
		PatientName:   appt.PatientName,
		ServiceName:   appt.ServiceName,
		DoctorName:    appt.DoctorName,
		Date:          appt.Date,
		Time:          appt.Time,
		Amount:        amount,
		PaymentMethod: appt.PaymentMethod,
		PaymentStatus: appt.PaymentStatus,
		TokenNumber:   appt.TokenNumber,
		InvoiceNumber: "INV" + strconv.FormatInt(now.UnixMilli(), 10),
		CreatedAt:     now,
	}
}
