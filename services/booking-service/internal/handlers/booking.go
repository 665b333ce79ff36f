package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kbrhealth/carebook/services/booking-service/internal/conflict"
	"github.com/kbrhealth/carebook/services/booking-service/internal/metrics"
	"github.com/kbrhealth/carebook/services/booking-service/internal/model"
	"github.com/kbrhealth/carebook/services/booking-service/internal/schedule"
	"github.com/kbrhealth/carebook/services/booking-service/internal/session"
	"github.com/kbrhealth/carebook/services/booking-service/internal/store"
)

// PatientIDHeader carries the verified subject id. The gateway strips any
// client-supplied value and sets it from the session token, so its presence
// here is trusted.
const PatientIDHeader = "X-Patient-Id"

type BookingHandler struct {
	sessions *session.Registry
	logger   *slog.Logger
	metrics  *metrics.BookingMetrics
	now      func() time.Time
}

func NewBookingHandler(sessions *session.Registry, logger *slog.Logger, m *metrics.BookingMetrics) *BookingHandler {
	return &BookingHandler{
		sessions: sessions,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

type bookRequest struct {
	PatientName   string  `json:"patientName"`
	PatientAge    int     `json:"patientAge"`
	PatientGender string  `json:"patientGender"`
	ServiceName   string  `json:"serviceName"`
	DoctorName    string  `json:"doctorName"`
	Date          string  `json:"date"`
	Time          string  `json:"time"`
	PaymentType   string  `json:"paymentType"`
	PaymentID     string  `json:"paymentId"`
	Amount        float64 `json:"amount"`
}

type conflictResponse struct {
	ConflictID  string            `json:"conflictId"`
	Conflicting model.Appointment `json:"conflicting"`
	Verdicts    []string          `json:"verdicts"`
}

type resolveRequest struct {
	ConflictID string `json:"conflictId"`
	Verdict    string `json:"verdict"`
}

type cancelRequest struct {
	AppointmentID string `json:"appointmentId"`
}

type rescheduleRequest struct {
	AppointmentID string `json:"appointmentId"`
	Date          string `json:"date"`
	Time          string `json:"time"`
}

func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	// The mobile app books for the signed-in patient; the name falls back
	// to the verified identity when omitted.
	if strings.TrimSpace(req.PatientName) == "" {
		req.PatientName = r.Header.Get("X-Patient-Name")
	}
	if req.PaymentType == "" {
		req.PaymentType = model.PaymentTypeAtFacility
	}

	out, err := sess.Book(r.Context(), model.BookingRequest{
		PatientName:   req.PatientName,
		PatientAge:    req.PatientAge,
		PatientGender: req.PatientGender,
		ServiceName:   req.ServiceName,
		DoctorName:    req.DoctorName,
		Date:          req.Date,
		Time:          req.Time,
		PaymentType:   req.PaymentType,
		PaymentID:     req.PaymentID,
		Amount:        req.Amount,
	})
	if err != nil {
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			h.metrics.ObserveBooking("rejected")
			http.Error(w, verr.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("booking failed", "err", err)
		http.Error(w, "booking failed", http.StatusInternalServerError)
		return
	}

	switch {
	case out.Conflict != nil:
		h.metrics.ObserveConflict()
		writeJSON(w, http.StatusConflict, conflictResponse{
			ConflictID:  out.Conflict.ID,
			Conflicting: out.Conflict.Conflicting,
			Verdicts:    []string{string(conflict.VerdictReplace), string(conflict.VerdictKeepBoth), string(conflict.VerdictAbort)},
		})
	case out.Resolution != nil:
		h.metrics.ObserveConflict()
		h.metrics.ObserveResolution(out.Resolution.Action)
		writeJSON(w, http.StatusOK, out.Resolution)
	default:
		h.metrics.ObserveBooking("confirmed")
		writeJSON(w, http.StatusCreated, out.Appointment)
	}
}

func (h *BookingHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	res, err := sess.Resolve(r.Context(), req.ConflictID, conflict.Verdict(req.Verdict))
	if err != nil {
		var nf *session.ErrPendingNotFound
		switch {
		case errors.As(err, &nf):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, conflict.ErrUnknownVerdict):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			var verr *store.ValidationError
			if errors.As(err, &verr) {
				http.Error(w, verr.Error(), http.StatusBadRequest)
				return
			}
			h.logger.Error("conflict resolution failed", "err", err, "conflictId", req.ConflictID)
			http.Error(w, "resolution failed", http.StatusInternalServerError)
		}
		return
	}
	h.metrics.ObserveResolution(res.Action)
	writeJSON(w, http.StatusOK, res)
}

func (h *BookingHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	sess.Dismiss(req.ConflictID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	appt, err := sess.Cancel(r.Context(), req.AppointmentID)
	if err != nil {
		h.writeLifecycleError(w, err, req.AppointmentID)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	appt, err := sess.Reschedule(r.Context(), req.AppointmentID, req.Date, req.Time)
	if err != nil {
		h.writeLifecycleError(w, err, req.AppointmentID)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var appts []model.Appointment
	switch r.URL.Query().Get("view") {
	case "upcoming":
		appts = sess.Upcoming(h.now().UTC())
	case "past":
		appts = sess.Past(h.now().UTC())
	case "", "all":
		appts = sess.Appointments()
	default:
		http.Error(w, "unknown view", http.StatusBadRequest)
		return
	}
	if appts == nil {
		appts = []model.Appointment{}
	}
	writeJSON(w, http.StatusOK, appts)
}

func (h *BookingHandler) Invoices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	invs := sess.Invoices()
	if invs == nil {
		invs = []model.Invoice{}
	}
	writeJSON(w, http.StatusOK, invs)
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	date := r.URL.Query().Get("date")
	doctor := r.URL.Query().Get("doctor")
	if date == "" || doctor == "" {
		http.Error(w, "date and doctor are required", http.StatusBadRequest)
		return
	}

	slots := schedule.Suggest(date, doctor, sess.Appointments(), h.now().UTC())
	if slots == nil {
		slots = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "doctor": doctor, "slots": slots})
}

// Logout tears down the booking session: the token counter returns to its
// baseline and open conflict prompts are discarded. The identity session
// itself is the gateway's concern.
func (h *BookingHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sub := strings.TrimSpace(r.Header.Get(PatientIDHeader))
	if sub == "" {
		http.Error(w, "missing patient identity", http.StatusUnauthorized)
		return
	}
	h.sessions.Logout(sub)
	w.WriteHeader(http.StatusNoContent)
}

func (h *BookingHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sub := strings.TrimSpace(r.Header.Get(PatientIDHeader))
	if sub == "" {
		http.Error(w, "missing patient identity", http.StatusUnauthorized)
		return nil, false
	}
	return h.sessions.Get(sub), true
}

func (h *BookingHandler) writeLifecycleError(w http.ResponseWriter, err error, appointmentID string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "appointment not found", http.StatusNotFound)
	case errors.Is(err, store.ErrTerminalState):
		http.Error(w, "appointment is in a terminal state", http.StatusConflict)
	default:
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("lifecycle operation failed", "err", err, "appointmentId", appointmentID)
		http.Error(w, "operation failed", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
