package domain

import (
	"context"
	"errors"
)

type Service interface {
	// Resolve never fails: an empty, unknown or inactive code yields nil.
	Resolve(ctx context.Context, code string) *Discount
	Lookup(ctx context.Context, code string) (LookupResult, error)
}

var ErrInvalidCode = errors.New("invalid_code")
