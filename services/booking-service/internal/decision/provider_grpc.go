//go:build protogen

package decision

import (
	"context"
	"fmt"
	"time"

	"github.com/kbrhealth/carebook/libs/grpcx"
	decisionv1 "github.com/kbrhealth/carebook/protos/gen/decision/v1"
	"github.com/kbrhealth/carebook/services/booking-service/internal/conflict"
	"github.com/kbrhealth/carebook/services/booking-service/internal/model"
)

// Provider answers conflict prompts automatically, typically from a triage
// policy service. A nil provider means every conflict waits for the caller.
type Provider interface {
	Decide(ctx context.Context, req model.BookingRequest, conflicting model.Appointment) (conflict.Verdict, error)
}

type grpcProvider struct {
	client decisionv1.DecisionServiceClient
}

func NewProvider(addr string) (Provider, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &grpcProvider{client: decisionv1.NewDecisionServiceClient(conn)}, nil
}

func (p *grpcProvider) Decide(ctx context.Context, req model.BookingRequest, conflicting model.Appointment) (conflict.Verdict, error) {
	resp, err := p.client.Decide(ctx, &decisionv1.DecideRequest{
		PatientName:   req.PatientName,
		ServiceName:   req.ServiceName,
		DoctorName:    req.DoctorName,
		Date:          req.Date,
		Time:          req.Time,
		ConflictId:    conflicting.ID,
		ConflictToken: conflicting.TokenNumber,
	})
	if err != nil {
		return "", err
	}
	switch resp.GetVerdict() {
	case decisionv1.Verdict_VERDICT_REPLACE:
		return conflict.VerdictReplace, nil
	case decisionv1.Verdict_VERDICT_KEEP_BOTH:
		return conflict.VerdictKeepBoth, nil
	case decisionv1.Verdict_VERDICT_ABORT:
		return conflict.VerdictAbort, nil
	default:
		return "", fmt.Errorf("decision service returned unspecified verdict for conflict %s", conflicting.ID)
	}
}
