package stripeprovider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/smallbiznis/quotepilot/internal/billingprovider/domain"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const defaultHTTPTimeout = 80 * time.Second

type Config struct {
	SecretKey  string
	HTTPClient *http.Client
	// BackendURL overrides the API host, used against local fakes.
	BackendURL string
}

// Client implements domain.Provider on top of the Stripe API.
type Client struct {
	api *client.API
	log *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Client {
	log = log.Named("billingprovider.stripe")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   defaultHTTPTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		LeveledLogger:     log.Sugar(),
		MaxNetworkRetries: stripe.Int64(0),
	}
	if cfg.BackendURL != "" {
		backendCfg.URL = stripe.String(cfg.BackendURL)
	}

	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
	}

	return &Client{
		api: client.New(cfg.SecretKey, backends),
		log: log,
	}
}

func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	params.Single = true

	iter := c.api.Customers.List(params)
	if iter.Next() {
		return toCustomer(iter.Customer()), nil
	}
	if err := iter.Err(); err != nil {
		return nil, mapStripeError("customers.list", err)
	}
	return nil, nil
}

func (c *Client) CreateCustomer(ctx context.Context, p domain.CustomerParams) (*domain.Customer, error) {
	params := customerParams(ctx, p)
	if p.Email != "" {
		params.Email = stripe.String(p.Email)
	}

	cus, err := c.api.Customers.New(params)
	if err != nil {
		return nil, mapStripeError("customers.create", err)
	}
	return toCustomer(cus), nil
}

func (c *Client) UpdateCustomer(ctx context.Context, id string, p domain.CustomerParams) (*domain.Customer, error) {
	cus, err := c.api.Customers.Update(id, customerParams(ctx, p))
	if err != nil {
		return nil, mapStripeError("customers.update", err)
	}
	return toCustomer(cus), nil
}

func (c *Client) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	cus, err := c.api.Customers.Get(id, params)
	if err != nil {
		return nil, mapStripeError("customers.retrieve", err)
	}
	if cus.Deleted {
		return nil, domain.ErrCustomerNotFound
	}
	return toCustomer(cus), nil
}

func (c *Client) FindActivePromotionCode(ctx context.Context, code string) (*domain.PromotionCode, error) {
	params := &stripe.PromotionCodeListParams{
		Code:   stripe.String(code),
		Active: stripe.Bool(true),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	params.Single = true

	iter := c.api.PromotionCodes.List(params)
	if iter.Next() {
		return toPromotionCode(iter.PromotionCode()), nil
	}
	if err := iter.Err(); err != nil {
		return nil, mapStripeError("promotion_codes.list", err)
	}
	return nil, nil
}

func (c *Client) CreateQuote(ctx context.Context, p domain.QuoteParams) (*domain.Quote, error) {
	params := &stripe.QuoteParams{Customer: stripe.String(p.CustomerID)}
	params.Context = ctx
	for _, item := range p.LineItems {
		params.LineItems = append(params.LineItems, &stripe.QuoteLineItemParams{
			Price:    stripe.String(item.PriceRef),
			Quantity: stripe.Int64(item.Quantity),
		})
	}
	switch {
	case p.PromotionCodeID != "":
		params.Discounts = []*stripe.QuoteDiscountParams{{PromotionCode: stripe.String(p.PromotionCodeID)}}
	case p.CouponID != "":
		params.Discounts = []*stripe.QuoteDiscountParams{{Coupon: stripe.String(p.CouponID)}}
	}
	if p.TaxRateID != "" {
		params.DefaultTaxRates = stripe.StringSlice([]string{p.TaxRateID})
	}
	if p.ExpiresAt != nil {
		params.ExpiresAt = stripe.Int64(p.ExpiresAt.Unix())
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	q, err := c.api.Quotes.New(params)
	if err != nil {
		return nil, mapStripeError("quotes.create", err)
	}
	return toQuote(q), nil
}

func (c *Client) FinalizeQuote(ctx context.Context, id string) (*domain.Quote, error) {
	params := &stripe.QuoteFinalizeQuoteParams{}
	params.Context = ctx

	q, err := c.api.Quotes.FinalizeQuote(id, params)
	if err != nil {
		return nil, mapStripeError("quotes.finalize", err)
	}
	return toQuote(q), nil
}

func (c *Client) GetQuote(ctx context.Context, id string) (*domain.Quote, error) {
	params := &stripe.QuoteParams{}
	params.Context = ctx

	q, err := c.api.Quotes.Get(id, params)
	if err != nil {
		return nil, mapStripeError("quotes.retrieve", err)
	}
	return toQuote(q), nil
}

func (c *Client) CreateCheckoutSession(ctx context.Context, p domain.CheckoutSessionParams) (*domain.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(p.Mode),
		SuccessURL:         stripe.String(p.SuccessURL),
		CancelURL:          stripe.String(p.CancelURL),
		PaymentMethodTypes: stripe.StringSlice(p.PaymentMethodTypes),
	}
	params.Context = ctx
	if p.CustomerCreation != "" {
		params.CustomerCreation = stripe.String(p.CustomerCreation)
	}
	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, mapStripeError("checkout.sessions.create", err)
	}

	out := &domain.CheckoutSession{
		ID:            sess.ID,
		URL:           sess.URL,
		CustomerEmail: sess.CustomerEmail,
		Metadata:      sess.Metadata,
	}
	if sess.Customer != nil {
		out.CustomerID = sess.Customer.ID
	}
	return out, nil
}

func (c *Client) ListPaymentMethods(ctx context.Context, customerID, methodType string) ([]domain.PaymentMethod, error) {
	params := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
		Type:     stripe.String(methodType),
	}
	params.Context = ctx
	params.Single = true

	var out []domain.PaymentMethod
	iter := c.api.PaymentMethods.List(params)
	for iter.Next() {
		pm := iter.PaymentMethod()
		out = append(out, domain.PaymentMethod{ID: pm.ID, Type: string(pm.Type)})
	}
	if err := iter.Err(); err != nil {
		return nil, mapStripeError("payment_methods.list", err)
	}
	return out, nil
}

func (c *Client) CreateSubscription(ctx context.Context, p domain.SubscriptionParams) (*domain.Subscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(p.CustomerID),
		TrialEnd: stripe.Int64(p.TrialEnd.Unix()),
	}
	params.Context = ctx
	for _, item := range p.Items {
		params.Items = append(params.Items, &stripe.SubscriptionItemsParams{
			Price:    stripe.String(item.PriceRef),
			Quantity: stripe.Int64(item.Quantity),
		})
	}
	if p.DefaultPaymentMethod != "" {
		params.DefaultPaymentMethod = stripe.String(p.DefaultPaymentMethod)
	}
	if p.ProrationBehavior != "" {
		params.ProrationBehavior = stripe.String(p.ProrationBehavior)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	sub, err := c.api.Subscriptions.New(params)
	if err != nil {
		return nil, mapStripeError("subscriptions.create", err)
	}

	out := &domain.Subscription{
		ID:       sub.ID,
		Status:   string(sub.Status),
		Metadata: sub.Metadata,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.TrialEnd > 0 {
		out.TrialEnd = time.Unix(sub.TrialEnd, 0).UTC()
	}
	return out, nil
}

func customerParams(ctx context.Context, p domain.CustomerParams) *stripe.CustomerParams {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	if p.Description != nil {
		params.Description = stripe.String(*p.Description)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	return params
}

func toCustomer(c *stripe.Customer) *domain.Customer {
	return &domain.Customer{
		ID:          c.ID,
		Email:       c.Email,
		Description: c.Description,
		Metadata:    c.Metadata,
	}
}

func toPromotionCode(pc *stripe.PromotionCode) *domain.PromotionCode {
	out := &domain.PromotionCode{
		ID:     pc.ID,
		Code:   pc.Code,
		Active: pc.Active,
	}
	if pc.Coupon == nil {
		return out
	}

	out.Coupon = domain.Coupon{
		ID:       pc.Coupon.ID,
		Currency: string(pc.Coupon.Currency),
		Duration: string(pc.Coupon.Duration),
	}
	if pc.Coupon.PercentOff > 0 {
		percent := pc.Coupon.PercentOff
		out.Coupon.PercentOff = &percent
	}
	if pc.Coupon.AmountOff > 0 {
		amount := pc.Coupon.AmountOff
		out.Coupon.AmountOff = &amount
	}
	return out
}

func toQuote(q *stripe.Quote) *domain.Quote {
	out := &domain.Quote{
		ID:        q.ID,
		Status:    domain.QuoteStatus(q.Status),
		Livemode:  q.Livemode,
		Metadata:  q.Metadata,
		HostedURL: hostedURL(q.LastResponse),
	}
	if q.Customer != nil {
		out.CustomerID = q.Customer.ID
	}
	if q.ExpiresAt > 0 {
		out.ExpiresAt = time.Unix(q.ExpiresAt, 0).UTC()
	}
	return out
}

// hostedURL reads the public quote link from the raw response; the typed
// Quote resource does not carry it.
func hostedURL(resp *stripe.APIResponse) string {
	if resp == nil || len(resp.RawJSON) == 0 {
		return ""
	}
	var body struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(resp.RawJSON, &body); err != nil {
		return ""
	}
	return body.URL
}

func mapStripeError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &domain.ProviderError{
			Op:         op,
			StatusCode: stripeErr.HTTPStatusCode,
			Code:       string(stripeErr.Code),
			Message:    stripeErr.Msg,
			Err:        err,
		}
	}
	return &domain.ProviderError{Op: op, Message: err.Error(), Err: err}
}
