package conflict

import (
	"context"
	"errors"
	"fmt"

	"github.com/kbrhealth/carebook/services/booking-service/internal/model"
	"github.com/kbrhealth/carebook/services/booking-service/internal/store"
)

// Verdict is the caller's answer to a detected double-booking.
type Verdict string

const (
	// VerdictReplace cancels the conflicting appointment and books the new
	// request in its place, as one logical transaction.
	VerdictReplace Verdict = "replace"
	// VerdictKeepBoth books the new request alongside the existing one.
	VerdictKeepBoth Verdict = "keep_both"
	// VerdictAbort abandons the new request and leaves the existing
	// appointment untouched.
	VerdictAbort Verdict = "abort"
)

// Resolution records how a conflict was settled. Action is a stable wire
// value ("replaced", "kept_both", "cancelled"); Appointment is the booking
// that came out of the verdict, zero-valued for aborts.
type Resolution struct {
	Action      string            `json:"action"`
	Appointment model.Appointment `json:"appointment,omitzero"`
}

// Decider picks a verdict without user input. The default deployment has
// none and every conflict waits for the caller; an optional decision
// provider (see internal/decision) can short-circuit the prompt.
type Decider interface {
	Decide(ctx context.Context, req model.BookingRequest, conflicting model.Appointment) (Verdict, error)
}

// ErrUnknownVerdict rejects verdict strings outside the three defined
// answers; the pending conflict stays open.
var ErrUnknownVerdict = errors.New("unknown conflict verdict")

// Workflow applies verdicts against one session's store.
type Workflow struct {
	store *store.Store
}

func NewWorkflow(s *store.Store) *Workflow {
	return &Workflow{store: s}
}

// Resolve applies the verdict for a conflict between req and the existing
// appointment conflictID. Replace validates req before cancelling the
// original, so a malformed request can never strand the session with
// neither appointment. A dismissed prompt is simply a Resolve that never
// happens; no resolution record exists for it.
func (w *Workflow) Resolve(ctx context.Context, verdict Verdict, conflictID string, req model.BookingRequest) (Resolution, error) {
	switch verdict {
	case VerdictReplace:
		appt, err := w.store.Replace(ctx, conflictID, req)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Action: "replaced", Appointment: appt}, nil

	case VerdictKeepBoth:
		appt, err := w.store.Create(ctx, req)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Action: "kept_both", Appointment: appt}, nil

	case VerdictAbort:
		return Resolution{Action: "cancelled"}, nil

	default:
		return Resolution{}, fmt.Errorf("%w: %q", ErrUnknownVerdict, verdict)
	}
}
