package domain

import (
	"errors"
	"fmt"
	"strings"
)

type CreateRequest struct {
	Email     string
	Pack      string
	TeamSize  int64
	PromoCode string
}

type Result struct {
	URL          string `json:"url"`
	ID           string `json:"id"`
	DashboardURL string `json:"dashboardUrl"`
}

var (
	ErrHostedURLUnavailable = errors.New("quote_incomplete")
	ErrQuoteNotFinalized    = errors.New("quote_not_finalized")
)

const (
	StageDraft     = "draft"
	StageFinalized = "finalized"
)

// IncompleteQuoteError reports a quote that exists on the provider side but
// cannot be shared yet. Stage tells whether finalization itself failed or
// only the public link is missing. Cause is the provider failure, if any.
type IncompleteQuoteError struct {
	QuoteID      string
	DashboardURL string
	Stage        string
	Cause        error
}

func (e *IncompleteQuoteError) Error() string {
	var msg string
	if e.Stage == StageDraft {
		msg = fmt.Sprintf("quote %s was created but could not be finalized", e.QuoteID)
	} else {
		msg = fmt.Sprintf("quote %s was finalized but has no hosted url", e.QuoteID)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *IncompleteQuoteError) Unwrap() []error {
	sentinel := ErrHostedURLUnavailable
	if e.Stage == StageDraft {
		sentinel = ErrQuoteNotFinalized
	}
	if e.Cause == nil {
		return []error{sentinel}
	}
	return []error{sentinel, e.Cause}
}

// DashboardURL links to the quote in the provider dashboard.
func DashboardURL(base string, live bool, quoteID string) string {
	base = strings.TrimRight(base, "/")
	if live {
		return fmt.Sprintf("%s/quotes/%s", base, quoteID)
	}
	return fmt.Sprintf("%s/test/quotes/%s", base, quoteID)
}
