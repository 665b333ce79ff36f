package model

// BookingRequest is what the booking origin (the mobile app) submits.
// Amount is optional; the invoice deriver substitutes the base
// consultation fee when it is zero.
type BookingRequest struct {
	PatientName   string  `json:"patientName"`
	PatientAge    int     `json:"patientAge"`
	PatientGender string  `json:"patientGender"`
	ServiceName   string  `json:"serviceName"`
	DoctorName    string  `json:"doctorName"`
	Date          string  `json:"date"`
	Time          string  `json:"time"`
	PaymentType   string  `json:"paymentType"` // online | at-facility
	PaymentID     string  `json:"paymentId,omitempty"`
	Amount        float64 `json:"amount,omitempty"`
}
