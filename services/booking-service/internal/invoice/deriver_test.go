package invoice

import (
	"strings"
	"testing"
	"time"

	"github.com/kbrhealth/carebook/services/booking-service/internal/model"
)

func TestDeriveCopiesBookingState(t *testing.T) {
	fixed := time.Date(2025, 11, 1, 9, 30, 0, 0, time.UTC)
	d := NewDeriver(500).WithClock(func() time.Time { return fixed })

	appt := model.Appointment{
		ID:            "appt-1",
		PatientName:   "Asha",
		ServiceName:   "Cardiology",
		DoctorName:    "Dr. Mehta",
		Date:          "2025-11-01",
		Time:          "10:00 AM",
		TokenNumber:   "KBR08",
		PaymentStatus: model.PaymentPending,
		PaymentMethod: "at-facility",
		Amount:        750,
	}

	inv := d.Derive(appt)
	if inv.AppointmentID != "appt-1" || inv.PatientName != "Asha" || inv.TokenNumber != "KBR08" {
		t.Fatalf("invoice did not copy booking state: %+v", inv)
	}
	if inv.Amount != 750 {
		t.Fatalf("expected amount 750, got %v", inv.Amount)
	}
	if !strings.HasPrefix(inv.InvoiceNumber, "INV") {
		t.Fatalf("unexpected invoice number %q", inv.InvoiceNumber)
	}
	if inv.InvoiceNumber != "INV"+"1761989400000" {
		t.Fatalf("invoice number not derived from wall clock: %q", inv.InvoiceNumber)
	}
	if inv.ID == "" {
		t.Fatal("invoice id not assigned")
	}
}

func TestDeriveDefaultsToBaseFee(t *testing.T) {
	d := NewDeriver(500)
	inv := d.Derive(model.Appointment{ID: "appt-2"})
	if inv.Amount != 500 {
		t.Fatalf("expected base fee 500, got %v", inv.Amount)
	}
}
