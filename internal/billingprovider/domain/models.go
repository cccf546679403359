package domain

import (
	"encoding/json"
	"time"
)

// Customer is the provider-side billing identity.
type Customer struct {
	ID          string
	Email       string
	Description string
	Metadata    map[string]string
}

type CustomerParams struct {
	Email       string
	Description *string
	Metadata    map[string]string
}

// LineItem references a catalog price and a quantity.
type LineItem struct {
	PriceRef string
	Quantity int64
}

type Coupon struct {
	ID         string
	PercentOff *float64
	AmountOff  *int64
	Currency   string
	Duration   string
}

type PromotionCode struct {
	ID     string
	Code   string
	Active bool
	Coupon Coupon
}

type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "draft"
	QuoteStatusOpen     QuoteStatus = "open"
	QuoteStatusAccepted QuoteStatus = "accepted"
	QuoteStatusCanceled QuoteStatus = "canceled"
)

type QuoteParams struct {
	CustomerID string
	LineItems  []LineItem
	// PromotionCodeID takes precedence over CouponID when both are set.
	PromotionCodeID string
	CouponID        string
	TaxRateID       string
	ExpiresAt       *time.Time
	Metadata        map[string]string
}

type Quote struct {
	ID         string
	CustomerID string
	Status     QuoteStatus
	// HostedURL stays empty until the provider has published the quote page.
	HostedURL string
	Livemode  bool
	ExpiresAt time.Time
	Metadata  map[string]string
}

const (
	CheckoutModeSetup             = "setup"
	CustomerCreationAlways        = "always"
	PaymentMethodTypeCard         = "card"
	ProrationCreateProrations     = "create_prorations"
	EventCheckoutSessionCompleted = "checkout.session.completed"
)

type CheckoutSessionParams struct {
	Mode               string
	CustomerCreation   string
	CustomerEmail      string
	PaymentMethodTypes []string
	SuccessURL         string
	CancelURL          string
	Metadata           map[string]string
}

type CheckoutSession struct {
	ID            string
	URL           string
	CustomerID    string
	CustomerEmail string
	Metadata      map[string]string
}

type PaymentMethod struct {
	ID   string
	Type string
}

type SubscriptionParams struct {
	CustomerID           string
	Items                []LineItem
	TrialEnd             time.Time
	DefaultPaymentMethod string
	ProrationBehavior    string
	Metadata             map[string]string
}

type Subscription struct {
	ID         string
	CustomerID string
	Status     string
	TrialEnd   time.Time
	Metadata   map[string]string
}

// Event is a verified webhook event. Data holds the raw event object.
type Event struct {
	ID       string
	Type     string
	Livemode bool
	Data     json.RawMessage
}
