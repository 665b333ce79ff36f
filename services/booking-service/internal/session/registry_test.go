package session

import (
	"context"
	"errors"
	"testing"

	"github.com/kbrhealth/carebook/services/booking-service/internal/conflict"
	"github.com/kbrhealth/carebook/services/booking-service/internal/model"
)

func ashaRequest() model.BookingRequest {
	return model.BookingRequest{
		PatientName: "Asha",
		ServiceName: "Cardiology",
		DoctorName:  "Dr. Mehta",
		Date:        "2025-11-01",
		Time:        "10:00 AM",
		PaymentType: model.PaymentTypeAtFacility,
	}
}

func TestBookWithoutConflictCommits(t *testing.T) {
	reg := NewRegistry(1, 500, nil, nil)
	s := reg.Get("patient-1")

	out, err := s.Book(context.Background(), ashaRequest())
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if out.Appointment == nil || out.Conflict != nil {
		t.Fatalf("expected committed appointment, got %+v", out)
	}
	if out.Appointment.TokenNumber != "KBR01" {
		t.Fatalf("unexpected token %s", out.Appointment.TokenNumber)
	}
}

func TestBookConflictReturnsPendingWithoutCommitting(t *testing.T) {
	reg := NewRegistry(1, 500, nil, nil)
	s := reg.Get("patient-1")

	if _, err := s.Book(context.Background(), ashaRequest()); err != nil {
		t.Fatalf("book: %v", err)
	}
	out, err := s.Book(context.Background(), ashaRequest())
	if err != nil {
		t.Fatalf("second book: %v", err)
	}
	if out.Conflict == nil || out.Appointment != nil {
		t.Fatalf("expected pending conflict, got %+v", out)
	}
	if len(s.Appointments()) != 1 {
		t.Fatalf("conflicting request must not commit, have %d appointments", len(s.Appointments()))
	}
}

func TestResolveConsumesPending(t *testing.T) {
	reg := NewRegistry(1, 500, nil, nil)
	s := reg.Get("patient-1")
	s.Book(context.Background(), ashaRequest())
	out, _ := s.Book(context.Background(), ashaRequest())

	res, err := s.Resolve(context.Background(), out.Conflict.ID, conflict.VerdictReplace)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Action != "replaced" {
		t.Fatalf("expected replaced, got %q", res.Action)
	}

	var nf *ErrPendingNotFound
	if _, err := s.Resolve(context.Background(), out.Conflict.ID, conflict.VerdictAbort); !errors.As(err, &nf) {
		t.Fatalf("answered prompt must be consumed, got %v", err)
	}
}

func TestRejectedVerdictLeavesPromptOpen(t *testing.T) {
	reg := NewRegistry(1, 500, nil, nil)
	s := reg.Get("patient-1")
	s.Book(context.Background(), ashaRequest())
	out, _ := s.Book(context.Background(), ashaRequest())

	if _, err := s.Resolve(context.Background(), out.Conflict.ID, conflict.Verdict("maybe")); err == nil {
		t.Fatal("expected verdict error")
	}
	// The same prompt can still be answered.
	if _, err := s.Resolve(context.Background(), out.Conflict.ID, conflict.VerdictKeepBoth); err != nil {
		t.Fatalf("prompt should remain open after bad verdict: %v", err)
	}
}

func TestDismissRecordsNothing(t *testing.T) {
	reg := NewRegistry(1, 500, nil, nil)
	s := reg.Get("patient-1")
	s.Book(context.Background(), ashaRequest())
	out, _ := s.Book(context.Background(), ashaRequest())

	s.Dismiss(out.Conflict.ID)

	if len(s.Appointments()) != 1 {
		t.Fatalf("dismissal must not commit, have %d appointments", len(s.Appointments()))
	}
	var nf *ErrPendingNotFound
	if _, err := s.Resolve(context.Background(), out.Conflict.ID, conflict.VerdictReplace); !errors.As(err, &nf) {
		t.Fatalf("dismissed prompt must be gone, got %v", err)
	}
}

func TestLogoutResetsTokenCounter(t *testing.T) {
	reg := NewRegistry(1, 500, nil, nil)
	s := reg.Get("patient-1")
	s.Book(context.Background(), ashaRequest())

	second := ashaRequest()
	second.Time = "11:00 AM"
	out, _ := s.Book(context.Background(), second)
	if out.Appointment.TokenNumber != "KBR02" {
		t.Fatalf("expected KBR02 before logout, got %s", out.Appointment.TokenNumber)
	}

	reg.Logout("patient-1")
	fresh := reg.Get("patient-1")
	out, err := fresh.Book(context.Background(), ashaRequest())
	if err != nil {
		t.Fatalf("book after logout: %v", err)
	}
	if out.Appointment.TokenNumber != "KBR01" {
		t.Fatalf("expected counter reset to KBR01, got %s", out.Appointment.TokenNumber)
	}
}

func TestSessionsAreIsolatedBySubject(t *testing.T) {
	reg := NewRegistry(1, 500, nil, nil)
	a := reg.Get("patient-a")
	b := reg.Get("patient-b")

	a.Book(context.Background(), ashaRequest())
	outB, _ := b.Book(context.Background(), ashaRequest())

	// Same slot, different session: no conflict, independent counter.
	if outB.Conflict != nil {
		t.Fatal("sessions must not see each other's appointments")
	}
	if outB.Appointment.TokenNumber != "KBR01" {
		t.Fatalf("expected independent counter, got %s", outB.Appointment.TokenNumber)
	}
}
