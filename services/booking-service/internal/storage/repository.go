// Package storage writes committed booking records through to Postgres and
// publishes the matching feed events transactionally via the outbox.
package storage

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/kbrhealth/carebook/libs/outbox"
	"github.com/kbrhealth/carebook/services/booking-service/internal/model"
)

// Feed topics carried by the outbox relay. Each record payload is the
// model's JSON wire form, so downstream consumers see the same field names
// the mobile app does.
const (
	TopicAppointments = "records.appointments.v1"
	TopicInvoices     = "records.invoices.v1"
)

type db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository implements store.Persister. Row upsert and outbox insert
// commit in one transaction; the relay ships the event afterwards.
type Repository struct {
	db     db
	outbox *outbox.Repository
}

func NewRepository(db db, outboxRepo *outbox.Repository) *Repository {
	return &Repository{db: db, outbox: outboxRepo}
}

func (r *Repository) SaveAppointment(ctx context.Context, appt model.Appointment) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments
			(id, patient_name, patient_age, patient_gender, service_name, doctor_name,
			 date, time, token_number, status, payment_status, payment_method, payment_id,
			 amount, created_at, cancelled_at, rescheduled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			date = EXCLUDED.date,
			time = EXCLUDED.time,
			status = EXCLUDED.status,
			payment_status = EXCLUDED.payment_status,
			payment_id = EXCLUDED.payment_id,
			cancelled_at = EXCLUDED.cancelled_at,
			rescheduled_at = EXCLUDED.rescheduled_at
	`, appt.ID, appt.PatientName, appt.PatientAge, appt.PatientGender, appt.ServiceName, appt.DoctorName,
		appt.Date, appt.Time, appt.TokenNumber, appt.Status, appt.PaymentStatus, appt.PaymentMethod, appt.PaymentID,
		appt.Amount, appt.CreatedAt, appt.CancelledAt, appt.RescheduledAt)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(appt)
	if err != nil {
		return err
	}
	if err := r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     TopicAppointments,
		Payload:       payload,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) SaveInvoice(ctx context.Context, inv model.Invoice) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Invoices are immutable: a replayed save of the same id is a no-op.
	_, err = tx.Exec(ctx, `
		INSERT INTO invoices
			(id, appointment_id, patient_name, service_name, doctor_name, date, time,
			 amount, payment_method, payment_status, token_number, invoice_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`, inv.ID, inv.AppointmentID, inv.PatientName, inv.ServiceName, inv.DoctorName, inv.Date, inv.Time,
		inv.Amount, inv.PaymentMethod, inv.PaymentStatus, inv.TokenNumber, inv.InvoiceNumber, inv.CreatedAt)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	if err := r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "invoice",
		AggregateID:   inv.ID,
		EventType:     TopicInvoices,
		Payload:       payload,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
