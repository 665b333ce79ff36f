package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kbrhealth/carebook/services/booking-service/internal/metrics"
	"github.com/kbrhealth/carebook/services/booking-service/internal/model"
	"github.com/kbrhealth/carebook/services/booking-service/internal/session"
)

func newTestHandler() *BookingHandler {
	reg := session.NewRegistry(1, 500, nil, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBookingHandler(reg, logger, metrics.NewBookingMetrics(prometheus.NewRegistry()))
}

func doJSON(t *testing.T, h http.HandlerFunc, method, target, body, patientID string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *strings.Reader
	if body == "" {
		rdr = strings.NewReader("{}")
	} else {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if patientID != "" {
		req.Header.Set(PatientIDHeader, patientID)
	}
	rw := httptest.NewRecorder()
	h(rw, req)
	return rw
}

func TestBookRequiresIdentity(t *testing.T) {
	h := newTestHandler()
	rw := doJSON(t, h.Book, http.MethodPost, "/api/v1/appointments/book", `{}`, "")
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rw.Code)
	}
}

func TestBookCreatesAppointment(t *testing.T) {
	h := newTestHandler()
	body := `{"patientName":"Asha","date":"2025-11-01","time":"10:00 AM","serviceName":"Cardiology","doctorName":"Dr. Mehta"}`
	rw := doJSON(t, h.Book, http.MethodPost, "/api/v1/appointments/book", body, "patient-1")
	if rw.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rw.Code, rw.Body.String())
	}
	var appt model.Appointment
	if err := json.Unmarshal(rw.Body.Bytes(), &appt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if appt.TokenNumber != "KBR01" || appt.Status != model.StatusConfirmed {
		t.Fatalf("unexpected appointment %+v", appt)
	}
	if appt.PaymentStatus != model.PaymentPending {
		t.Fatalf("default payment type should yield pending, got %s", appt.PaymentStatus)
	}
}

func TestBookMissingFieldsRejected(t *testing.T) {
	h := newTestHandler()
	rw := doJSON(t, h.Book, http.MethodPost, "/api/v1/appointments/book", `{"patientName":"Asha"}`, "patient-1")
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}

func TestBookConflictThenResolve(t *testing.T) {
	h := newTestHandler()
	body := `{"patientName":"Asha","date":"2025-11-01","time":"10:00 AM"}`

	if rw := doJSON(t, h.Book, http.MethodPost, "/api/v1/appointments/book", body, "patient-1"); rw.Code != http.StatusCreated {
		t.Fatalf("first booking: expected 201, got %d", rw.Code)
	}

	rw := doJSON(t, h.Book, http.MethodPost, "/api/v1/appointments/book", body, "patient-1")
	if rw.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rw.Code, rw.Body.String())
	}
	var conflictResp conflictResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &conflictResp); err != nil {
		t.Fatalf("decode conflict: %v", err)
	}
	if conflictResp.ConflictID == "" || len(conflictResp.Verdicts) != 3 {
		t.Fatalf("malformed conflict response: %+v", conflictResp)
	}

	resolveBody := `{"conflictId":"` + conflictResp.ConflictID + `","verdict":"replace"}`
	rw = doJSON(t, h.Resolve, http.MethodPost, "/api/v1/appointments/resolve", resolveBody, "patient-1")
	if rw.Code != http.StatusOK {
		t.Fatalf("resolve: expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var res struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(rw.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode resolution: %v", err)
	}
	if res.Action != "replaced" {
		t.Fatalf("expected replaced, got %q", res.Action)
	}
}

func TestResolveUnknownConflict(t *testing.T) {
	h := newTestHandler()
	rw := doJSON(t, h.Resolve, http.MethodPost, "/api/v1/appointments/resolve", `{"conflictId":"nope","verdict":"abort"}`, "patient-1")
	if rw.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rw.Code)
	}
}

func TestCancelAndList(t *testing.T) {
	h := newTestHandler()
	body := `{"patientName":"Asha","date":"2025-11-01","time":"10:00 AM"}`
	rw := doJSON(t, h.Book, http.MethodPost, "/api/v1/appointments/book", body, "patient-1")
	var appt model.Appointment
	json.Unmarshal(rw.Body.Bytes(), &appt)

	rw = doJSON(t, h.Cancel, http.MethodPost, "/api/v1/appointments/cancel", `{"appointmentId":"`+appt.ID+`"}`, "patient-1")
	if rw.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", rw.Code)
	}

	rw = doJSON(t, h.List, http.MethodGet, "/api/v1/appointments?view=all", "", "patient-1")
	if rw.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rw.Code)
	}
	var appts []model.Appointment
	if err := json.Unmarshal(rw.Body.Bytes(), &appts); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(appts) != 1 || appts[0].Status != model.StatusCancelled {
		t.Fatalf("cancelled record must stay listed: %+v", appts)
	}
}

func TestCancelUnknown(t *testing.T) {
	h := newTestHandler()
	rw := doJSON(t, h.Cancel, http.MethodPost, "/api/v1/appointments/cancel", `{"appointmentId":"nope"}`, "patient-1")
	if rw.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rw.Code)
	}
}

func TestInvoicesListed(t *testing.T) {
	h := newTestHandler()
	body := `{"patientName":"Asha","date":"2025-11-01","time":"10:00 AM"}`
	doJSON(t, h.Book, http.MethodPost, "/api/v1/appointments/book", body, "patient-1")

	rw := doJSON(t, h.Invoices, http.MethodGet, "/api/v1/invoices", "", "patient-1")
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	var invs []model.Invoice
	if err := json.Unmarshal(rw.Body.Bytes(), &invs); err != nil {
		t.Fatalf("decode invoices: %v", err)
	}
	if len(invs) != 1 || invs[0].Amount != 500 {
		t.Fatalf("expected one invoice at base fee, got %+v", invs)
	}
	if !strings.HasPrefix(invs[0].InvoiceNumber, "INV") {
		t.Fatalf("invoice number %q", invs[0].InvoiceNumber)
	}
}

func TestSlotsExcludeBooked(t *testing.T) {
	h := newTestHandler()
	body := `{"patientName":"Asha","date":"2099-11-01","time":"10:00 AM","doctorName":"Dr. Mehta"}`
	doJSON(t, h.Book, http.MethodPost, "/api/v1/appointments/book", body, "patient-1")

	rw := doJSON(t, h.Slots, http.MethodGet, "/api/v1/slots?date=2099-11-01&doctor=Dr.+Mehta", "", "patient-1")
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	var resp struct {
		Slots []string `json:"slots"`
	}
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode slots: %v", err)
	}
	for _, s := range resp.Slots {
		if s == "10:00 AM" {
			t.Fatal("booked slot must not be suggested")
		}
	}
}

func TestLogoutResetsCounter(t *testing.T) {
	h := newTestHandler()
	body := `{"patientName":"Asha","date":"2025-11-01","time":"10:00 AM"}`
	doJSON(t, h.Book, http.MethodPost, "/api/v1/appointments/book", body, "patient-1")

	rw := doJSON(t, h.Logout, http.MethodPost, "/api/v1/logout", "", "patient-1")
	if rw.Code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", rw.Code)
	}

	rw = doJSON(t, h.Book, http.MethodPost, "/api/v1/appointments/book", body, "patient-1")
	var appt model.Appointment
	json.Unmarshal(rw.Body.Bytes(), &appt)
	if appt.TokenNumber != "KBR01" {
		t.Fatalf("expected fresh counter after logout, got %s", appt.TokenNumber)
	}
}
