// Package store holds the authoritative per-session appointment list and
// owns every lifecycle transition. One Store is exclusively owned by one
// session context; all operations are synchronous and applied in
// invocation order.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kbrhealth/carebook/services/booking-service/internal/invoice"
	"github.com/kbrhealth/carebook/services/booking-service/internal/model"
	"github.com/kbrhealth/carebook/services/booking-service/internal/token"
)

var (
	ErrNotFound = errors.New("appointment not found")
	// ErrTerminalState is returned for transitions out of completed, the
	// one terminal state this service never owns.
	ErrTerminalState = errors.New("appointment is in a terminal state")
)

// ValidationError rejects a malformed booking request before any token is
// issued; a failed create has no side effects.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("booking request missing required field %q", e.Field)
}

// Persister is the write-through hook to the shared record store. The
// in-memory list stays authoritative for the session; persistence exists
// for cross-reader interoperability (admin dashboards read the same
// records). A nil persister is valid and used by tests.
type Persister interface {
	SaveAppointment(ctx context.Context, appt model.Appointment) error
	SaveInvoice(ctx context.Context, inv model.Invoice) error
}

// Store owns the session's appointments and invoices. Appointments are
// never hard-deleted; history feeds the metrics pipeline.
type Store struct {
	tokens  *token.Issuer
	deriver *invoice.Deriver
	persist Persister
	now     func() time.Time

	appts    []model.Appointment // insertion order
	invoices []model.Invoice
}

func New(tokens *token.Issuer, deriver *invoice.Deriver, persist Persister) *Store {
	return &Store{
		tokens:  tokens,
		deriver: deriver,
		persist: persist,
		now:     time.Now,
	}
}

// WithClock overrides the wall clock for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Validate checks a booking request without side effects. The conflict
// workflow calls this before cancelling the original in a Replace, so the
// cancel+create pair can never half-apply.
func (s *Store) Validate(req model.BookingRequest) error {
	if strings.TrimSpace(req.PatientName) == "" {
		return &ValidationError{Field: "patientName"}
	}
	if strings.TrimSpace(req.Date) == "" {
		return &ValidationError{Field: "date"}
	}
	if strings.TrimSpace(req.Time) == "" {
		return &ValidationError{Field: "time"}
	}
	return nil
}

// Create validates the request, issues the next queue token, appends the
// confirmed appointment, and derives its invoice. Payment state follows the
// payment type: at-facility bookings stay pending, online bookings arrive
// already paid and carry the provider's payment id.
func (s *Store) Create(ctx context.Context, req model.BookingRequest) (model.Appointment, error) {
	if err := s.Validate(req); err != nil {
		return model.Appointment{}, err
	}

	now := s.now().UTC()
	appt := model.Appointment{
		ID:            uuid.NewString(),
		PatientName:   strings.TrimSpace(req.PatientName),
		PatientAge:    req.PatientAge,
		PatientGender: req.PatientGender,
		ServiceName:   req.ServiceName,
		DoctorName:    req.DoctorName,
		Date:          req.Date,
		Time:          req.Time,
		TokenNumber:   s.tokens.Next(),
		Status:        model.StatusConfirmed,
		PaymentMethod: req.PaymentType,
		Amount:        req.Amount,
		CreatedAt:     now,
	}
	if req.PaymentType == model.PaymentTypeAtFacility {
		appt.PaymentStatus = model.PaymentPending
	} else {
		appt.PaymentStatus = model.PaymentCompleted
	}
	if req.PaymentType == model.PaymentTypeOnline {
		appt.PaymentID = req.PaymentID
		if appt.PaymentID == "" {
			appt.PaymentID = "pay_" + uuid.NewString()
		}
	}

	s.appts = append(s.appts, appt)

	inv := s.deriver.Derive(appt)
	s.invoices = append(s.invoices, inv)

	if s.persist != nil {
		if err := s.persist.SaveAppointment(ctx, appt); err != nil {
			return appt, err
		}
		if err := s.persist.SaveInvoice(ctx, inv); err != nil {
			return appt, err
		}
	}
	return appt, nil
}

// Cancel moves a confirmed or rescheduled appointment to cancelled and
// stamps cancelledAt. Re-cancelling an already-cancelled appointment is a
// no-op, not an error.
func (s *Store) Cancel(ctx context.Context, id string) (model.Appointment, error) {
	idx := s.indexOf(id)
	if idx < 0 {
		return model.Appointment{}, ErrNotFound
	}
	appt := &s.appts[idx]

	if appt.Status == model.StatusCancelled {
		return *appt, nil
	}
	if appt.Status == model.StatusCompleted {
		return model.Appointment{}, ErrTerminalState
	}

	now := s.now().UTC()
	appt.Status = model.StatusCancelled
	appt.CancelledAt = &now

	if s.persist != nil {
		if err := s.persist.SaveAppointment(ctx, *appt); err != nil {
			return *appt, err
		}
	}
	return *appt, nil
}

// Reschedule moves a confirmed or rescheduled appointment to rescheduled,
// updates its slot, and stamps rescheduledAt. Rescheduling an already
// rescheduled appointment is permitted.
func (s *Store) Reschedule(ctx context.Context, id, newDate, newTime string) (model.Appointment, error) {
	if strings.TrimSpace(newDate) == "" {
		return model.Appointment{}, &ValidationError{Field: "date"}
	}
	if strings.TrimSpace(newTime) == "" {
		return model.Appointment{}, &ValidationError{Field: "time"}
	}

	idx := s.indexOf(id)
	if idx < 0 {
		return model.Appointment{}, ErrNotFound
	}
	appt := &s.appts[idx]

	if !appt.Active() {
		return model.Appointment{}, ErrTerminalState
	}

	now := s.now().UTC()
	appt.Status = model.StatusRescheduled
	appt.Date = newDate
	appt.Time = newTime
	appt.RescheduledAt = &now

	if s.persist != nil {
		if err := s.persist.SaveAppointment(ctx, *appt); err != nil {
			return *appt, err
		}
	}
	return *appt, nil
}

// Replace applies a conflict resolution's cancel+create pair as one logical
// transaction: the incoming request is validated before the original is
// cancelled, so a rejected request leaves the original untouched.
func (s *Store) Replace(ctx context.Context, conflictID string, req model.BookingRequest) (model.Appointment, error) {
	if err := s.Validate(req); err != nil {
		return model.Appointment{}, err
	}
	if s.indexOf(conflictID) < 0 {
		return model.Appointment{}, ErrNotFound
	}
	if _, err := s.Cancel(ctx, conflictID); err != nil {
		return model.Appointment{}, err
	}
	return s.Create(ctx, req)
}

// Upcoming returns active appointments whose slot has not passed now. The
// view is recomputed on every call from the live records, never cached.
func (s *Store) Upcoming(now time.Time) []model.Appointment {
	var out []model.Appointment
	for _, appt := range s.appts {
		if appt.Active() && !slotBefore(appt, now) {
			out = append(out, appt)
		}
	}
	return out
}

// Past returns appointments that are terminal or whose slot has passed now.
func (s *Store) Past(now time.Time) []model.Appointment {
	var out []model.Appointment
	for _, appt := range s.appts {
		if !appt.Active() || slotBefore(appt, now) {
			out = append(out, appt)
		}
	}
	return out
}

// slotBefore parses the display-form slot. An unparsable slot on an active
// appointment sorts as upcoming rather than silently disappearing.
func slotBefore(appt model.Appointment, now time.Time) bool {
	at, err := time.ParseInLocation("2006-01-02 03:04 PM", appt.Date+" "+appt.Time, time.UTC)
	if err != nil {
		return false
	}
	return at.Before(now)
}

// All returns the session's appointments in insertion order.
func (s *Store) All() []model.Appointment {
	out := make([]model.Appointment, len(s.appts))
	copy(out, s.appts)
	return out
}

func (s *Store) Get(id string) (model.Appointment, bool) {
	idx := s.indexOf(id)
	if idx < 0 {
		return model.Appointment{}, false
	}
	return s.appts[idx], true
}

// Invoices returns the session's invoices in derivation order.
func (s *Store) Invoices() []model.Invoice {
	out := make([]model.Invoice, len(s.invoices))
	copy(out, s.invoices)
	return out
}

func (s *Store) indexOf(id string) int {
	for i := range s.appts {
		if s.appts[i].ID == id {
			return i
		}
	}
	return -1
}
