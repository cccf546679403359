package domain

import "context"

type Request struct {
	Email        string
	Pack         string
	TeamSize     int64
	DocsPerMonth int64
	PromoCode    string
}

type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Service creates card-capture sessions. No charge is made at this step and
// the provider always creates a fresh customer for the session.
type Service interface {
	Build(ctx context.Context, req Request) (*Session, error)
}
