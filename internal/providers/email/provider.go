package email

import (
	"context"
	"errors"
)

// Message is one rendered transactional email.
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
}

type Provider interface {
	Send(ctx context.Context, msg Message) error
}

var ErrNoRecipients = errors.New("email: no recipients")

type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, msg Message) error {
	return nil
}

func validateMessage(msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	return nil
}
