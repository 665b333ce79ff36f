package model

import "time"

// Appointment status values. confirmed is the initial state; completed and
// cancelled are terminal; rescheduled behaves like confirmed for further
// transitions. completed is only ever written by the clinical workflow on
// the admin side, never by this service.
const (
	StatusConfirmed   = "confirmed"
	StatusCompleted   = "completed"
	StatusCancelled   = "cancelled"
	StatusRescheduled = "rescheduled"
)

// Payment status values.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
)

// Payment types accepted on a booking request.
const (
	PaymentTypeOnline     = "online"
	PaymentTypeAtFacility = "at-facility"
)

// Appointment is the authoritative booking record. The JSON tags are the
// persisted field names shared with the admin-side dashboard readers; do
// not rename them.
type Appointment struct {
	ID            string     `json:"id"`
	PatientName   string     `json:"patientName"`
	PatientAge    int        `json:"patientAge"`
	PatientGender string     `json:"patientGender"`
	ServiceName   string     `json:"serviceName"`
	DoctorName    string     `json:"doctorName"`
	Date          string     `json:"date"` // ISO date, e.g. 2025-11-01
	Time          string     `json:"time"` // display string, e.g. 10:00 AM
	TokenNumber   string     `json:"tokenNumber"`
	Status        string     `json:"status"`
	PaymentStatus string     `json:"paymentStatus"`
	PaymentMethod string     `json:"paymentMethod"`
	PaymentID     string     `json:"paymentId,omitempty"`
	Amount        float64    `json:"amount"`
	CreatedAt     time.Time  `json:"createdAt"`
	CancelledAt   *time.Time `json:"cancelledAt,omitempty"`
	RescheduledAt *time.Time `json:"rescheduledAt,omitempty"`
}

// Active reports whether the appointment still holds its slot: confirmed
// and rescheduled appointments count, terminal states do not.
func (a Appointment) Active() bool {
	return a.Status == StatusConfirmed || a.Status == StatusRescheduled
}
