package domain

import "context"

// CustomerAPI resolves and mutates billing identities.
// FindCustomerByEmail returns nil without error when nothing matches.
type CustomerAPI interface {
	FindCustomerByEmail(ctx context.Context, email string) (*Customer, error)
	CreateCustomer(ctx context.Context, params CustomerParams) (*Customer, error)
	UpdateCustomer(ctx context.Context, id string, params CustomerParams) (*Customer, error)
	GetCustomer(ctx context.Context, id string) (*Customer, error)
}

// PromotionAPI returns nil without error when no active code matches.
type PromotionAPI interface {
	FindActivePromotionCode(ctx context.Context, code string) (*PromotionCode, error)
}

type QuoteAPI interface {
	CreateQuote(ctx context.Context, params QuoteParams) (*Quote, error)
	FinalizeQuote(ctx context.Context, id string) (*Quote, error)
	GetQuote(ctx context.Context, id string) (*Quote, error)
}

type CheckoutAPI interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error)
}

type SubscriptionAPI interface {
	ListPaymentMethods(ctx context.Context, customerID, methodType string) ([]PaymentMethod, error)
	CreateSubscription(ctx context.Context, params SubscriptionParams) (*Subscription, error)
}

// Provider is the full billing provider surface.
type Provider interface {
	CustomerAPI
	PromotionAPI
	QuoteAPI
	CheckoutAPI
	SubscriptionAPI
}

// EventVerifier authenticates a raw webhook payload against its signature header.
type EventVerifier interface {
	Verify(payload []byte, signatureHeader string) (*Event, error)
}
