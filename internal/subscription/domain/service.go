package domain

import (
	"context"
	"errors"
	"time"
)

// TrialPeriod is added to the requested trial start.
const TrialPeriod = 14 * 24 * time.Hour

type CreateRequest struct {
	CustomerID    string
	TeamSize      int64
	DocsPerMonth  int64
	TrialStartISO string
}

type Result struct {
	SubscriptionID string
	// TrialEnd is in epoch seconds.
	TrialEnd int64
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Result, error)
}

var (
	ErrInvalidCustomer   = errors.New("invalid_customer_id")
	ErrInvalidTrialStart = errors.New("invalid_trial_start_iso")
)
