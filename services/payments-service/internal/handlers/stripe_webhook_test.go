package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/kbrhealth/carebook/libs/outbox"
	"github.com/kbrhealth/carebook/services/payments-service/internal/storage"
)

const testSecret = "whsec_test"

func signPayload(t *testing.T, payload string, at time.Time) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(testSecret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func intentEvent(eventID string, at time.Time) string {
	return fmt.Sprintf(`{
		"id": %q,
		"api_version": "2024-06-20",
		"type": "payment_intent.succeeded",
		"created": %d,
		"data": {
			"object": {
				"id": "pi_123",
				"amount": 50000,
				"currency": "inr",
				"metadata": {"appointment_id": "appt-1", "patient_name": "Asha"}
			}
		}
	}`, eventID, at.Unix())
}

func newWebhookHandler(t *testing.T) (*Handler, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	repo := storage.NewRepository(mock, outbox.NewRepository(nil))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(repo, logger, testSecret, 5*time.Minute), mock
}

func postWebhook(h *Handler, body, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(body))
	if sig != "" {
		req.Header.Set("Stripe-Signature", sig)
	}
	rw := httptest.NewRecorder()
	h.StripeWebhook(rw, req)
	return rw
}

func TestWebhookRecordsPaymentAndFeedEvent(t *testing.T) {
	h, mock := newWebhookHandler(t)
	defer mock.Close()

	now := time.Now()
	body := intentEvent("evt_1", now)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO provider_events").
		WithArgs("stripe", "evt_1", "payment_intent.succeeded", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO payments").
		WithArgs(pgxmock.AnyArg(), "appt-1", "Asha", 500.0, "inr", "succeeded", "pi_123", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs("payment", pgxmock.AnyArg(), storage.TopicPayments, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	rw := postWebhook(h, body, signPayload(t, body, now))
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWebhookDuplicateEventIgnored(t *testing.T) {
	h, mock := newWebhookHandler(t)
	defer mock.Close()

	now := time.Now()
	body := intentEvent("evt_dup", now)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO provider_events").
		WithArgs("stripe", "evt_dup", "payment_intent.succeeded", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	rw := postWebhook(h, body, signPayload(t, body, now))
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if !strings.Contains(rw.Body.String(), "duplicate") {
		t.Fatalf("expected duplicate status, got %s", rw.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h, mock := newWebhookHandler(t)
	defer mock.Close()

	body := intentEvent("evt_2", time.Now())
	rw := postWebhook(h, body, "t=1,v1=deadbeef")
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}

func TestWebhookRequiresSignatureHeader(t *testing.T) {
	h, mock := newWebhookHandler(t)
	defer mock.Close()

	rw := postWebhook(h, intentEvent("evt_3", time.Now()), "")
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}
