package domain

import (
	"context"
	"errors"
)

type Template string

const (
	TemplateOnboarding   Template = "onboarding"
	TemplateQuoteCreated Template = "quote_created"
)

// Template variables.
const (
	VarQuoteURL = "quote_url"
	VarQuoteID  = "quote_id"
	VarPack     = "pack"
	VarTeamSize = "team_size"
)

// Service sends transactional email. Failures are logged and counted, never
// returned, so a notification cannot fail the operation that triggered it.
type Service interface {
	Send(ctx context.Context, tmpl Template, recipients []string, vars map[string]string)
}

var ErrUnknownTemplate = errors.New("unknown_template")
