// Package session maps authenticated patients to their booking state. The
// gateway verifies identity and forwards it in headers; this registry gives
// each subject its own token issuer, appointment store, and open conflict
// prompts, all serialized behind one lock per session.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbrhealth/carebook/services/booking-service/internal/conflict"
	"github.com/kbrhealth/carebook/services/booking-service/internal/decision"
	"github.com/kbrhealth/carebook/services/booking-service/internal/invoice"
	"github.com/kbrhealth/carebook/services/booking-service/internal/model"
	"github.com/kbrhealth/carebook/services/booking-service/internal/store"
	"github.com/kbrhealth/carebook/services/booking-service/internal/token"
)

// Pending is an unresolved conflict prompt handed back to the client. The
// client either answers it via Resolve or abandons it; an abandoned prompt
// produces no resolution record.
type Pending struct {
	ID          string               `json:"conflictId"`
	Request     model.BookingRequest `json:"request"`
	Conflicting model.Appointment    `json:"conflicting"`
	CreatedAt   time.Time            `json:"createdAt"`
}

// ErrPendingNotFound covers resolve calls for prompts that were never
// issued, already answered, or discarded at logout.
type ErrPendingNotFound struct{ ID string }

func (e *ErrPendingNotFound) Error() string {
	return "no pending conflict " + e.ID
}

// Session is one patient's booking context. All methods serialize on the
// session lock, which is what lets store and token.Issuer stay lock-free.
type Session struct {
	Sub string

	mu       sync.Mutex
	issuer   *token.Issuer
	store    *store.Store
	workflow *conflict.Workflow
	decider  decision.Provider
	pending  map[string]Pending
}

// BookOutcome is the result of a booking attempt: either a committed
// appointment or a pending conflict awaiting a verdict.
type BookOutcome struct {
	Appointment *model.Appointment
	Conflict    *Pending
	// Resolution is set when a decision provider answered the conflict
	// without a round-trip to the caller.
	Resolution *conflict.Resolution
}

// Book detects a slot collision before committing. No conflict: the
// appointment is created and returned. Conflict with no decision provider:
// nothing is committed and a Pending prompt comes back for the caller to
// answer. Conflict with a provider: the provider's verdict is applied
// immediately.
func (s *Session) Book(ctx context.Context, req model.BookingRequest) (BookOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Validate(req); err != nil {
		return BookOutcome{}, err
	}

	hit := conflict.Find(req, s.store.All())
	if hit == nil {
		appt, err := s.store.Create(ctx, req)
		if err != nil {
			return BookOutcome{}, err
		}
		return BookOutcome{Appointment: &appt}, nil
	}

	if s.decider != nil {
		verdict, err := s.decider.Decide(ctx, req, *hit)
		if err == nil {
			res, rerr := s.workflow.Resolve(ctx, verdict, hit.ID, req)
			if rerr != nil {
				return BookOutcome{}, rerr
			}
			return BookOutcome{Resolution: &res}, nil
		}
		// Provider failure falls back to prompting the caller.
	}

	p := Pending{
		ID:          uuid.NewString(),
		Request:     req,
		Conflicting: *hit,
		CreatedAt:   time.Now().UTC(),
	}
	s.pending[p.ID] = p
	return BookOutcome{Conflict: &p}, nil
}

// Resolve answers a pending conflict prompt. The prompt is consumed only
// when the verdict applies cleanly; a rejected verdict leaves it open so
// the caller can answer again.
func (s *Session) Resolve(ctx context.Context, pendingID string, verdict conflict.Verdict) (conflict.Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[pendingID]
	if !ok {
		return conflict.Resolution{}, &ErrPendingNotFound{ID: pendingID}
	}
	res, err := s.workflow.Resolve(ctx, verdict, p.Conflicting.ID, p.Request)
	if err != nil {
		return conflict.Resolution{}, err
	}
	delete(s.pending, pendingID)
	return res, nil
}

// Dismiss drops a pending prompt without applying any verdict. Dismissal
// is not an abort: it records nothing and changes nothing.
func (s *Session) Dismiss(pendingID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, pendingID)
}

func (s *Session) Cancel(ctx context.Context, id string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Cancel(ctx, id)
}

func (s *Session) Reschedule(ctx context.Context, id, newDate, newTime string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Reschedule(ctx, id, newDate, newTime)
}

func (s *Session) Appointments() []model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.All()
}

func (s *Session) Upcoming(now time.Time) []model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Upcoming(now)
}

func (s *Session) Past(now time.Time) []model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Past(now)
}

func (s *Session) Invoices() []model.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Invoices()
}

// Registry hands out sessions by subject id.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	baseline int
	baseFee  float64
	persist  store.Persister
	decider  decision.Provider
}

func NewRegistry(tokenBaseline int, baseFee float64, persist store.Persister, decider decision.Provider) *Registry {
	return &Registry{
		sessions: map[string]*Session{},
		baseline: tokenBaseline,
		baseFee:  baseFee,
		persist:  persist,
		decider:  decider,
	}
}

// Get returns the subject's session, creating it on first use with a fresh
// token counter at the configured baseline.
func (r *Registry) Get(sub string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[sub]; ok {
		return s
	}
	iss := token.NewIssuer(r.baseline)
	st := store.New(iss, invoice.NewDeriver(r.baseFee), r.persist)
	s := &Session{
		Sub:      sub,
		issuer:   iss,
		store:    st,
		workflow: conflict.NewWorkflow(st),
		decider:  r.decider,
		pending:  map[string]Pending{},
	}
	r.sessions[sub] = s
	return s
}

// Logout discards the subject's session: the token counter returns to its
// baseline and open conflict prompts are dropped. Persisted records are
// untouched.
func (r *Registry) Logout(sub string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sub)
}
