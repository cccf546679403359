package domain

import (
	"context"

	billingdomain "github.com/smallbiznis/quotepilot/internal/billingprovider/domain"
)

type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeIgnored   Outcome = "ignored"
)

// Service authenticates and dispatches provider webhook deliveries.
type Service interface {
	// Ingest verifies payload against signatureHeader before interpreting it.
	// An error means the delivery should be retried by the sender.
	Ingest(ctx context.Context, payload []byte, signatureHeader string) (Outcome, error)
}

var (
	ErrInvalidSignature = billingdomain.ErrInvalidSignature
	ErrInvalidPayload   = billingdomain.ErrInvalidPayload
)
