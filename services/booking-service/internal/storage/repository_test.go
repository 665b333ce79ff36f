package storage

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/kbrhealth/carebook/libs/outbox"
	"github.com/kbrhealth/carebook/services/booking-service/internal/model"
)

func TestSaveAppointmentCommitsRowAndFeedEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	appt := model.Appointment{
		ID:            "appt-1",
		PatientName:   "Asha",
		PatientAge:    34,
		ServiceName:   "Cardiology",
		DoctorName:    "Dr. Mehta",
		Date:          "2025-11-01",
		Time:          "10:00 AM",
		TokenNumber:   "KBR08",
		Status:        model.StatusConfirmed,
		PaymentStatus: model.PaymentPending,
		PaymentMethod: model.PaymentTypeAtFacility,
		Amount:        500,
		CreatedAt:     time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(appt.ID, appt.PatientName, appt.PatientAge, appt.PatientGender, appt.ServiceName, appt.DoctorName,
			appt.Date, appt.Time, appt.TokenNumber, appt.Status, appt.PaymentStatus, appt.PaymentMethod, appt.PaymentID,
			appt.Amount, appt.CreatedAt, appt.CancelledAt, appt.RescheduledAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs("appointment", appt.ID, TopicAppointments, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	repo := NewRepository(mock, outbox.NewRepository(nil))
	if err := repo.SaveAppointment(context.Background(), appt); err != nil {
		t.Fatalf("save appointment: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveInvoiceCommitsRowAndFeedEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	inv := model.Invoice{
		ID:            "inv-1",
		AppointmentID: "appt-1",
		PatientName:   "Asha",
		Amount:        500,
		InvoiceNumber: "INV1761989400000",
		CreatedAt:     time.Date(2025, 11, 1, 9, 30, 0, 0, time.UTC),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO invoices").
		WithArgs(inv.ID, inv.AppointmentID, inv.PatientName, inv.ServiceName, inv.DoctorName, inv.Date, inv.Time,
			inv.Amount, inv.PaymentMethod, inv.PaymentStatus, inv.TokenNumber, inv.InvoiceNumber, inv.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs("invoice", inv.ID, TopicInvoices, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	repo := NewRepository(mock, outbox.NewRepository(nil))
	if err := repo.SaveInvoice(context.Background(), inv); err != nil {
		t.Fatalf("save invoice: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveAppointmentRollsBackOnOutboxFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	appt := model.Appointment{ID: "appt-1", CreatedAt: time.Now().UTC()}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(appt.ID, appt.PatientName, appt.PatientAge, appt.PatientGender, appt.ServiceName, appt.DoctorName,
			appt.Date, appt.Time, appt.TokenNumber, appt.Status, appt.PaymentStatus, appt.PaymentMethod, appt.PaymentID,
			appt.Amount, appt.CreatedAt, appt.CancelledAt, appt.RescheduledAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs("appointment", appt.ID, TopicAppointments, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	repo := NewRepository(mock, outbox.NewRepository(nil))
	if err := repo.SaveAppointment(context.Background(), appt); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
