package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/kbrhealth/carebook/services/payments-service/internal/model"
	"github.com/kbrhealth/carebook/services/payments-service/internal/storage"
)

type Handler struct {
	repo                   *storage.Repository
	logger                 *slog.Logger
	stripeWebhookSecret    string
	stripeWebhookTolerance time.Duration
}

func NewHandler(repo *storage.Repository, logger *slog.Logger, webhookSecret string, tolerance time.Duration) *Handler {
	return &Handler{
		repo:                   repo,
		logger:                 logger,
		stripeWebhookSecret:    webhookSecret,
		stripeWebhookTolerance: tolerance,
	}
}

// StripeWebhook handles Stripe deliveries (no session auth; signature
// verification is the auth). The gateway exposes this path publicly.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if strings.TrimSpace(h.stripeWebhookSecret) == "" {
		http.Error(w, "stripe webhook not configured", http.StatusServiceUnavailable)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		http.Error(w, "missing Stripe-Signature header", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1 MiB hard cap
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	evt, err := webhook.ConstructEventWithTolerance(body, sigHeader, h.stripeWebhookSecret, h.stripeWebhookTolerance)
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	occurredAt := time.Unix(evt.Created, 0).UTC()
	evtType := string(evt.Type)
	h.logger.Info("payment provider event received",
		"provider", "stripe",
		"provider_event_id", evt.ID,
		"event_type", evtType,
		"occurred_at", occurredAt.Format(time.RFC3339),
	)

	tx, err := h.repo.Begin(r.Context())
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(r.Context()) }()

	// Idempotency: ignore replayed Stripe events.
	if err := h.repo.InsertProviderEvent(r.Context(), tx, storage.ProviderEvent{
		Provider:        "stripe",
		ProviderEventID: evt.ID,
		EventType:       evtType,
		Payload:         body,
	}); err != nil {
		if errors.Is(err, storage.ErrDuplicateProviderEvent) {
			h.logger.Info("payment provider event duplicate ignored", "provider", "stripe", "provider_event_id", evt.ID, "event_type", evtType)
			writeJSON(w, http.StatusOK, map[string]any{"status": "duplicate"})
			_ = tx.Commit(r.Context())
			return
		}
		http.Error(w, "failed to record provider event", http.StatusInternalServerError)
		return
	}

	switch evtType {
	case "payment_intent.succeeded":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &intent); err != nil {
			h.logger.Error("stripe: invalid payment intent payload", "err", err)
			break
		}
		payment := model.Payment{
			ID:            uuid.NewString(),
			AppointmentID: strings.TrimSpace(intent.Metadata["appointment_id"]),
			PatientName:   strings.TrimSpace(intent.Metadata["patient_name"]),
			Amount:        float64(intent.Amount) / 100,
			Currency:      string(intent.Currency),
			Status:        model.StatusSucceeded,
			PaymentID:     intent.ID,
			CreatedAt:     occurredAt,
		}
		if err := h.repo.InsertPayment(r.Context(), tx, payment); err != nil {
			http.Error(w, "failed to record payment", http.StatusInternalServerError)
			return
		}

	case "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &intent); err != nil {
			h.logger.Error("stripe: invalid payment intent payload", "err", err)
			break
		}
		h.logger.Warn("payment failed",
			"payment_intent", intent.ID,
			"appointment_id", intent.Metadata["appointment_id"],
		)

	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(evt.Data.Raw, &charge); err != nil {
			h.logger.Error("stripe: invalid charge payload", "err", err)
			break
		}
		payment := model.Payment{
			ID:            uuid.NewString(),
			AppointmentID: strings.TrimSpace(charge.Metadata["appointment_id"]),
			Amount:        -float64(charge.AmountRefunded) / 100,
			Currency:      string(charge.Currency),
			Status:        model.StatusRefunded,
			PaymentID:     charge.ID,
			CreatedAt:     occurredAt,
		}
		if err := h.repo.InsertPayment(r.Context(), tx, payment); err != nil {
			http.Error(w, "failed to record refund", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(r.Context()); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
