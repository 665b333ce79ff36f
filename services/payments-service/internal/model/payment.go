package model

import "time"

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusRefunded  = "refunded"
)

// Payment is one settled charge. Its JSON form is the payments feed record
// consumed by the dashboard; amount is in currency units, not cents.
type Payment struct {
	ID            string    `json:"id"`
	AppointmentID string    `json:"appointmentId,omitempty"`
	PatientName   string    `json:"patientName,omitempty"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	PaymentID     string    `json:"paymentId"`
	CreatedAt     time.Time `json:"createdAt"`
}
