//go:build !protogen

package decision

import (
	"context"

	"github.com/kbrhealth/carebook/services/booking-service/internal/conflict"
	"github.com/kbrhealth/carebook/services/booking-service/internal/model"
)

// Provider answers conflict prompts automatically, typically from a triage
// policy service. A nil provider means every conflict waits for the caller.
type Provider interface {
	Decide(ctx context.Context, req model.BookingRequest, conflicting model.Appointment) (conflict.Verdict, error)
}

func NewProvider(_ string) (Provider, error) {
	return nil, nil
}
