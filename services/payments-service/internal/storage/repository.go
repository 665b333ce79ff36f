package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/kbrhealth/carebook/libs/outbox"
	"github.com/kbrhealth/carebook/services/payments-service/internal/model"
)

// TopicPayments carries settled payments to the dashboard feed.
const TopicPayments = "records.payments.v1"

var ErrDuplicateProviderEvent = errors.New("duplicate provider event")

type db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Repository struct {
	db     db
	outbox *outbox.Repository
}

func NewRepository(db db, outboxRepo *outbox.Repository) *Repository {
	return &Repository{db: db, outbox: outboxRepo}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

type ProviderEvent struct {
	Provider        string
	ProviderEventID string
	EventType       string
	Payload         []byte
}

// InsertProviderEvent records the provider delivery for idempotency.
// A replayed event returns ErrDuplicateProviderEvent and must not be
// processed again.
func (r *Repository) InsertProviderEvent(ctx context.Context, tx pgx.Tx, evt ProviderEvent) error {
	var payload any
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO provider_events (provider, provider_event_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider, provider_event_id) DO NOTHING
	`, evt.Provider, evt.ProviderEventID, evt.EventType, payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateProviderEvent
	}
	return nil
}

// InsertPayment stores the settled charge and queues the matching feed
// record in the same transaction.
func (r *Repository) InsertPayment(ctx context.Context, tx pgx.Tx, p model.Payment) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO payments (id, appointment_id, patient_name, amount, currency, status, provider_payment_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, p.ID, p.AppointmentID, p.PatientName, p.Amount, p.Currency, p.Status, p.PaymentID, p.CreatedAt)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "payment",
		AggregateID:   p.ID,
		EventType:     TopicPayments,
		Payload:       payload,
	})
}
