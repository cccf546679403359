package domain

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Service interface {
	// Resolve finds the identity registered for email, creating one when none exists.
	Resolve(ctx context.Context, email string) (Identity, error)
	// Update overwrites the stored selection. Last write wins.
	Update(ctx context.Context, id string, sel Selection) (Identity, error)
	Get(ctx context.Context, id string) (Identity, error)
}

var (
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrInvalidIdentity = errors.New("invalid_identity")
)

var validate = validator.New()

// ValidateEmail trims email and checks its syntax.
func ValidateEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}
