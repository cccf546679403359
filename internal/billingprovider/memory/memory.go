// Package memory is an in-process billing provider used for sandbox runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/quotepilot/internal/billingprovider/domain"
)

const (
	OpFindCustomer    = "customers.list"
	OpCreateCustomer  = "customers.create"
	OpUpdateCustomer  = "customers.update"
	OpGetCustomer     = "customers.retrieve"
	OpFindPromotion   = "promotion_codes.list"
	OpCreateQuote     = "quotes.create"
	OpFinalizeQuote   = "quotes.finalize"
	OpGetQuote        = "quotes.retrieve"
	OpCreateCheckout  = "checkout.sessions.create"
	OpListPayments    = "payment_methods.list"
	OpCreateSubscribe = "subscriptions.create"
)

type Options struct {
	// HostedURLDelay is the number of quote reads, finalize included, that
	// return no hosted URL before the link is published.
	HostedURLDelay int
	Livemode       bool
	HostedBaseURL  string
}

type quoteRecord struct {
	quote  domain.Quote
	params domain.QuoteParams
	reads  int
}

// Provider keeps every resource in maps guarded by one mutex.
type Provider struct {
	mu   sync.Mutex
	node *snowflake.Node
	opts Options

	customers      map[string]*domain.Customer
	customerOrder  []string
	promotions     map[string]*domain.PromotionCode
	quotes         map[string]*quoteRecord
	sessions       []domain.CheckoutSessionParams
	subscriptions  []domain.SubscriptionParams
	paymentMethods map[string][]domain.PaymentMethod

	calls    map[string]int
	failures map[string]error
}

func New(opts Options) (*Provider, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, err
	}
	if opts.HostedBaseURL == "" {
		opts.HostedBaseURL = "https://billing.sandbox.local"
	}
	return &Provider{
		node:           node,
		opts:           opts,
		customers:      map[string]*domain.Customer{},
		promotions:     map[string]*domain.PromotionCode{},
		quotes:         map[string]*quoteRecord{},
		paymentMethods: map[string][]domain.PaymentMethod{},
		calls:          map[string]int{},
		failures:       map[string]error{},
	}, nil
}

// FailOn makes every later call to op return err.
func (p *Provider) FailOn(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[op] = err
}

// Calls reports how many times op was invoked.
func (p *Provider) Calls(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

func (p *Provider) AddPromotionCode(code string, active bool, coupon domain.Coupon) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.promotions[code] = &domain.PromotionCode{
		ID:     p.newID("promo"),
		Code:   code,
		Active: active,
		Coupon: coupon,
	}
}

func (p *Provider) AddPaymentMethod(customerID, id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paymentMethods[customerID] = append(p.paymentMethods[customerID], domain.PaymentMethod{ID: id, Type: domain.PaymentMethodTypeCard})
}

// Customer returns a copy of the stored customer.
func (p *Provider) Customer(id string) (domain.Customer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.customers[id]
	if !ok {
		return domain.Customer{}, false
	}
	return copyCustomer(c), true
}

func (p *Provider) CustomerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.customers)
}

// QuoteParams returns the parameters a quote was created with.
func (p *Provider) QuoteParams(id string) (domain.QuoteParams, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.quotes[id]
	if !ok {
		return domain.QuoteParams{}, false
	}
	return rec.params, true
}

func (p *Provider) CheckoutSessions() []domain.CheckoutSessionParams {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.CheckoutSessionParams(nil), p.sessions...)
}

func (p *Provider) Subscriptions() []domain.SubscriptionParams {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.SubscriptionParams(nil), p.subscriptions...)
}

func (p *Provider) FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(OpFindCustomer); err != nil {
		return nil, err
	}
	for _, id := range p.customerOrder {
		if c := p.customers[id]; c.Email == email {
			out := copyCustomer(c)
			return &out, nil
		}
	}
	return nil, nil
}

func (p *Provider) CreateCustomer(ctx context.Context, params domain.CustomerParams) (*domain.Customer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(OpCreateCustomer); err != nil {
		return nil, err
	}
	c := &domain.Customer{
		ID:       p.newID("cus"),
		Email:    params.Email,
		Metadata: map[string]string{},
	}
	applyCustomerParams(c, params)
	p.customers[c.ID] = c
	p.customerOrder = append(p.customerOrder, c.ID)
	out := copyCustomer(c)
	return &out, nil
}

func (p *Provider) UpdateCustomer(ctx context.Context, id string, params domain.CustomerParams) (*domain.Customer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(OpUpdateCustomer); err != nil {
		return nil, err
	}
	c, ok := p.customers[id]
	if !ok {
		return nil, notFound(OpUpdateCustomer, "customer", id)
	}
	applyCustomerParams(c, params)
	out := copyCustomer(c)
	return &out, nil
}

func (p *Provider) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(OpGetCustomer); err != nil {
		return nil, err
	}
	c, ok := p.customers[id]
	if !ok {
		return nil, notFound(OpGetCustomer, "customer", id)
	}
	out := copyCustomer(c)
	return &out, nil
}

func (p *Provider) FindActivePromotionCode(ctx context.Context, code string) (*domain.PromotionCode, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(OpFindPromotion); err != nil {
		return nil, err
	}
	pc, ok := p.promotions[code]
	if !ok || !pc.Active {
		return nil, nil
	}
	out := *pc
	return &out, nil
}

func (p *Provider) CreateQuote(ctx context.Context, params domain.QuoteParams) (*domain.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(OpCreateQuote); err != nil {
		return nil, err
	}
	if _, ok := p.customers[params.CustomerID]; !ok {
		return nil, notFound(OpCreateQuote, "customer", params.CustomerID)
	}

	rec := &quoteRecord{
		params: params,
		quote: domain.Quote{
			ID:         p.newID("qt"),
			CustomerID: params.CustomerID,
			Status:     domain.QuoteStatusDraft,
			Livemode:   p.opts.Livemode,
			Metadata:   copyMap(params.Metadata),
		},
	}
	if params.ExpiresAt != nil {
		rec.quote.ExpiresAt = params.ExpiresAt.UTC()
	}
	p.quotes[rec.quote.ID] = rec
	out := rec.quote
	return &out, nil
}

func (p *Provider) FinalizeQuote(ctx context.Context, id string) (*domain.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(OpFinalizeQuote); err != nil {
		return nil, err
	}
	rec, ok := p.quotes[id]
	if !ok {
		return nil, notFound(OpFinalizeQuote, "quote", id)
	}
	if rec.quote.Status != domain.QuoteStatusDraft {
		return nil, &domain.ProviderError{Op: OpFinalizeQuote, StatusCode: 400, Message: fmt.Sprintf("quote %s is not a draft", id)}
	}
	rec.quote.Status = domain.QuoteStatusOpen
	return p.readQuote(rec), nil
}

func (p *Provider) GetQuote(ctx context.Context, id string) (*domain.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(OpGetQuote); err != nil {
		return nil, err
	}
	rec, ok := p.quotes[id]
	if !ok {
		return nil, notFound(OpGetQuote, "quote", id)
	}
	return p.readQuote(rec), nil
}

func (p *Provider) CreateCheckoutSession(ctx context.Context, params domain.CheckoutSessionParams) (*domain.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(OpCreateCheckout); err != nil {
		return nil, err
	}
	p.sessions = append(p.sessions, params)
	id := p.newID("cs")
	session := &domain.CheckoutSession{
		ID:            id,
		URL:           fmt.Sprintf("%s/checkout/%s", p.opts.HostedBaseURL, id),
		CustomerEmail: params.CustomerEmail,
		Metadata:      copyMap(params.Metadata),
	}
	// The hosted page would mint a fresh customer on completion, even when
	// one already exists for the email.
	if params.CustomerCreation == domain.CustomerCreationAlways {
		c := &domain.Customer{
			ID:       p.newID("cus"),
			Email:    params.CustomerEmail,
			Metadata: map[string]string{},
		}
		p.customers[c.ID] = c
		p.customerOrder = append(p.customerOrder, c.ID)
		session.CustomerID = c.ID
	}
	return session, nil
}

func (p *Provider) ListPaymentMethods(ctx context.Context, customerID, methodType string) ([]domain.PaymentMethod, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(OpListPayments); err != nil {
		return nil, err
	}
	var out []domain.PaymentMethod
	for _, pm := range p.paymentMethods[customerID] {
		if methodType == "" || pm.Type == methodType {
			out = append(out, pm)
		}
	}
	return out, nil
}

func (p *Provider) CreateSubscription(ctx context.Context, params domain.SubscriptionParams) (*domain.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(OpCreateSubscribe); err != nil {
		return nil, err
	}
	p.subscriptions = append(p.subscriptions, params)
	return &domain.Subscription{
		ID:         p.newID("sub"),
		CustomerID: params.CustomerID,
		Status:     "trialing",
		TrialEnd:   params.TrialEnd.UTC(),
		Metadata:   copyMap(params.Metadata),
	}, nil
}

// begin must be called with mu held.
func (p *Provider) begin(op string) error {
	p.calls[op]++
	if err, ok := p.failures[op]; ok {
		return err
	}
	return nil
}

func (p *Provider) readQuote(rec *quoteRecord) *domain.Quote {
	rec.reads++
	if rec.quote.HostedURL == "" && rec.reads > p.opts.HostedURLDelay {
		rec.quote.HostedURL = fmt.Sprintf("%s/quotes/%s", p.opts.HostedBaseURL, rec.quote.ID)
	}
	out := rec.quote
	out.Metadata = copyMap(rec.quote.Metadata)
	return &out
}

func (p *Provider) newID(prefix string) string {
	return prefix + "_" + p.node.Generate().Base58()
}

func applyCustomerParams(c *domain.Customer, params domain.CustomerParams) {
	if params.Description != nil {
		c.Description = *params.Description
	}
	for k, v := range params.Metadata {
		c.Metadata[k] = v
	}
}

func copyCustomer(c *domain.Customer) domain.Customer {
	out := *c
	out.Metadata = copyMap(c.Metadata)
	return out
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func notFound(op, kind, id string) error {
	var sentinel error
	switch kind {
	case "customer":
		sentinel = domain.ErrCustomerNotFound
	case "quote":
		sentinel = domain.ErrQuoteNotFound
	}
	return &domain.ProviderError{
		Op:         op,
		StatusCode: 404,
		Code:       "resource_missing",
		Message:    fmt.Sprintf("No such %s: '%s'", kind, id),
		Err:        sentinel,
	}
}

var _ domain.Provider = (*Provider)(nil)
