package model

import "time"

// Invoice is derived exactly once, at appointment creation, and is never
// updated afterwards: it records booking-time state for financial history
// even if the source appointment is later cancelled or rescheduled. JSON
// tags are the persisted field names shared with admin-side readers.
type Invoice struct {
	ID            string    `json:"id"`
	AppointmentID string    `json:"appointmentId"`
	PatientName   string    `json:"patientName"`
	ServiceName   string    `json:"serviceName"`
	DoctorName    string    `json:"doctorName"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	Amount        float64   `json:"amount"`
	PaymentMethod string    `json:"paymentMethod"`
	PaymentStatus string    `json:"paymentStatus"`
	TokenNumber   string    `json:"tokenNumber"`
	InvoiceNumber string    `json:"invoiceNumber"`
	CreatedAt     time.Time `json:"createdAt"`
}
