package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	billingdomain "github.com/smallbiznis/quotepilot/internal/billingprovider/domain"
	"github.com/smallbiznis/quotepilot/internal/billingprovider/memory"
	catalogdomain "github.com/smallbiznis/quotepilot/internal/catalog/domain"
	catalogservice "github.com/smallbiznis/quotepilot/internal/catalog/service"
	"github.com/smallbiznis/quotepilot/internal/clock"
	"github.com/smallbiznis/quotepilot/internal/config"
	identitydomain "github.com/smallbiznis/quotepilot/internal/identity/domain"
	identityservice "github.com/smallbiznis/quotepilot/internal/identity/service"
	notificationdomain "github.com/smallbiznis/quotepilot/internal/notification/domain"
	promotiondomain "github.com/smallbiznis/quotepilot/internal/promotion/domain"
	promotionservice "github.com/smallbiznis/quotepilot/internal/promotion/service"
	"github.com/smallbiznis/quotepilot/internal/quote/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type sentNotification struct {
	template   notificationdomain.Template
	recipients []string
	vars       map[string]string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Send(ctx context.Context, tmpl notificationdomain.Template, recipients []string, vars map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{template: tmpl, recipients: recipients, vars: vars})
}

type harness struct {
	svc      domain.Service
	provider *memory.Provider
	notifier *recordingNotifier
	clock    *clock.FakeClock
}

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func testConfig() config.Config {
	return config.Config{
		BillingProvider: config.ProviderMemory,
		Stripe: config.StripeConfig{
			SecretKey:    "sk_test_123",
			DashboardURL: "https://dashboard.stripe.com",
		},
		Prices: config.PriceConfig{
			Users:          "price_users",
			PackPro:        "price_pro",
			PackEntreprise: "price_ent",
		},
		TaxRateID:       "txr_20",
		QuoteExpiryDays: 14,
	}
}

func newHarness(t *testing.T, cfg config.Config, opts memory.Options) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)

	provider, err := memory.New(opts)
	require.NoError(t, err)

	percent := 10.0
	provider.AddPromotionCode("WELCOME", true, billingdomain.Coupon{ID: "co_welcome", PercentOff: &percent, Duration: "once"})

	h := &harness{
		provider: provider,
		notifier: &recordingNotifier{},
		clock:    clock.NewFakeClock(testNow),
	}
	h.svc = New(Params{
		Config:    cfg,
		Log:       log,
		Clock:     h.clock,
		Catalog:   catalogservice.New(catalogservice.Params{Log: log, Catalog: config.NewStaticCatalogHolder(config.DefaultCatalogConfig(cfg))}),
		Identity:  identityservice.New(identityservice.Params{Log: log, Customers: provider}),
		Promotion: promotionservice.New(promotionservice.Params{Log: zap.NewNop(), Promotions: provider}),
		Quotes:    provider,
		Notifier:  h.notifier,
	})
	return h
}

func TestCreateQuoteEndToEnd(t *testing.T) {
	h := newHarness(t, testConfig(), memory.Options{})

	result, err := h.svc.Create(context.Background(), domain.CreateRequest{Email: "a@b.com", Pack: "pro", TeamSize: 3})
	require.NoError(t, err)
	require.NotEmpty(t, result.URL)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "https://dashboard.stripe.com/test/quotes/"+result.ID, result.DashboardURL)

	params, ok := h.provider.QuoteParams(result.ID)
	require.True(t, ok)
	assert.Equal(t, []billingdomain.LineItem{
		{PriceRef: "price_users", Quantity: 3},
		{PriceRef: "price_pro", Quantity: 3},
	}, params.LineItems)
	assert.Equal(t, "txr_20", params.TaxRateID)
	assert.Empty(t, params.PromotionCodeID)
	assert.Equal(t, map[string]string{"pack": "pro", "team_size": "3", "promo_code": ""}, params.Metadata)
	require.NotNil(t, params.ExpiresAt)
	assert.Equal(t, testNow.Add(14*24*time.Hour), *params.ExpiresAt)

	customer, ok := h.provider.Customer(params.CustomerID)
	require.True(t, ok)
	assert.Equal(t, "a@b.com", customer.Email)
	assert.Equal(t, "pro", customer.Metadata[identitydomain.MetadataPack])
	assert.Equal(t, "3", customer.Metadata[identitydomain.MetadataTeamSize])

	require.Len(t, h.notifier.sent, 1)
	assert.Equal(t, notificationdomain.TemplateQuoteCreated, h.notifier.sent[0].template)
	assert.Equal(t, []string{"a@b.com"}, h.notifier.sent[0].recipients)
	assert.Equal(t, result.URL, h.notifier.sent[0].vars[notificationdomain.VarQuoteURL])
	assert.Equal(t, 0, h.provider.Calls(memory.OpGetQuote))
}

func TestCreateQuoteReusesIdentity(t *testing.T) {
	h := newHarness(t, testConfig(), memory.Options{})
	ctx := context.Background()

	first, err := h.svc.Create(ctx, domain.CreateRequest{Email: "a@b.com", Pack: "pro", TeamSize: 3})
	require.NoError(t, err)
	second, err := h.svc.Create(ctx, domain.CreateRequest{Email: "a@b.com", Pack: "entreprise", TeamSize: 8})
	require.NoError(t, err)

	firstParams, _ := h.provider.QuoteParams(first.ID)
	secondParams, _ := h.provider.QuoteParams(second.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, firstParams.CustomerID, secondParams.CustomerID)
	assert.Equal(t, 1, h.provider.CustomerCount())

	customer, _ := h.provider.Customer(secondParams.CustomerID)
	assert.Equal(t, "enterprise", customer.Metadata[identitydomain.MetadataPack])
	assert.Equal(t, "8", customer.Metadata[identitydomain.MetadataTeamSize])
}

func TestCreateQuoteAppliesPromotion(t *testing.T) {
	h := newHarness(t, testConfig(), memory.Options{})

	result, err := h.svc.Create(context.Background(), domain.CreateRequest{Email: "a@b.com", Pack: "pro", TeamSize: 2, PromoCode: "WELCOME"})
	require.NoError(t, err)

	params, _ := h.provider.QuoteParams(result.ID)
	assert.NotEmpty(t, params.PromotionCodeID)
	assert.Equal(t, "co_welcome", params.CouponID)
	assert.Equal(t, "WELCOME", params.Metadata["promo_code"])
}

type couponOnlyPromotion struct{}

func (couponOnlyPromotion) Resolve(ctx context.Context, code string) *promotiondomain.Discount {
	return &promotiondomain.Discount{Code: code, CouponRef: "co_partner"}
}

func (couponOnlyPromotion) Lookup(ctx context.Context, code string) (promotiondomain.LookupResult, error) {
	return promotiondomain.LookupResult{}, nil
}

func TestCreateQuoteFallsBackToCoupon(t *testing.T) {
	log := zaptest.NewLogger(t)
	cfg := testConfig()
	provider, err := memory.New(memory.Options{})
	require.NoError(t, err)

	svc := New(Params{
		Config:    cfg,
		Log:       log,
		Clock:     clock.NewFakeClock(testNow),
		Catalog:   catalogservice.New(catalogservice.Params{Log: log, Catalog: config.NewStaticCatalogHolder(config.DefaultCatalogConfig(cfg))}),
		Identity:  identityservice.New(identityservice.Params{Log: log, Customers: provider}),
		Promotion: couponOnlyPromotion{},
		Quotes:    provider,
		Notifier:  &recordingNotifier{},
	})

	result, err := svc.Create(context.Background(), domain.CreateRequest{Email: "a@b.com", Pack: "pro", TeamSize: 1, PromoCode: "PARTNER"})
	require.NoError(t, err)

	params, _ := provider.QuoteParams(result.ID)
	assert.Empty(t, params.PromotionCodeID)
	assert.Equal(t, "co_partner", params.CouponID)
}

func TestCreateQuoteUnknownPromotionStillSucceeds(t *testing.T) {
	h := newHarness(t, testConfig(), memory.Options{})
	h.provider.FailOn(memory.OpFindPromotion, &billingdomain.ProviderError{Op: memory.OpFindPromotion, Message: "down"})

	result, err := h.svc.Create(context.Background(), domain.CreateRequest{Email: "a@b.com", Pack: "pro", TeamSize: 2, PromoCode: "NOPE"})
	require.NoError(t, err)

	params, _ := h.provider.QuoteParams(result.ID)
	assert.Empty(t, params.PromotionCodeID)
	assert.Empty(t, params.CouponID)
}

func TestCreateQuoteValidationHappensBeforeProviderCalls(t *testing.T) {
	h := newHarness(t, testConfig(), memory.Options{})
	ctx := context.Background()

	_, err := h.svc.Create(ctx, domain.CreateRequest{Email: "not-an-email", Pack: "pro", TeamSize: 1})
	assert.ErrorIs(t, err, identitydomain.ErrInvalidEmail)

	_, err = h.svc.Create(ctx, domain.CreateRequest{Email: "a@b.com", Pack: "platinum", TeamSize: 1})
	assert.ErrorIs(t, err, catalogdomain.ErrInvalidPack)

	_, err = h.svc.Create(ctx, domain.CreateRequest{Email: "a@b.com", Pack: "", TeamSize: 1})
	assert.ErrorIs(t, err, catalogdomain.ErrInvalidPack)

	assert.Equal(t, 0, h.provider.Calls(memory.OpFindCustomer))
	assert.Equal(t, 0, h.provider.Calls(memory.OpUpdateCustomer))
	assert.Equal(t, 0, h.provider.CustomerCount())
}

func TestCreateQuoteMissingPriceIsConfigurationError(t *testing.T) {
	cfg := testConfig()
	cfg.Prices.PackEntreprise = ""
	h := newHarness(t, cfg, memory.Options{})

	_, err := h.svc.Create(context.Background(), domain.CreateRequest{Email: "a@b.com", Pack: "enterprise", TeamSize: 2})
	var cfgErr *config.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "PRICE_ID_PACK_ENTREPRISE", cfgErr.Key)
	assert.Equal(t, 0, h.provider.Calls(memory.OpFindCustomer))
}

func TestCreateQuoteResolvesURLWithSingleRetry(t *testing.T) {
	h := newHarness(t, testConfig(), memory.Options{HostedURLDelay: 1})

	result, err := h.svc.Create(context.Background(), domain.CreateRequest{Email: "a@b.com", Pack: "pro", TeamSize: 1})
	require.NoError(t, err)
	assert.NotEmpty(t, result.URL)
	assert.Equal(t, 1, h.provider.Calls(memory.OpGetQuote))
}

func TestCreateQuoteFailsWhenURLNeverResolves(t *testing.T) {
	h := newHarness(t, testConfig(), memory.Options{HostedURLDelay: 5})

	result, err := h.svc.Create(context.Background(), domain.CreateRequest{Email: "a@b.com", Pack: "pro", TeamSize: 1})
	assert.Nil(t, result)
	require.ErrorIs(t, err, domain.ErrHostedURLUnavailable)

	var incomplete *domain.IncompleteQuoteError
	require.True(t, errors.As(err, &incomplete))
	assert.NotEmpty(t, incomplete.QuoteID)
	assert.Equal(t, "https://dashboard.stripe.com/test/quotes/"+incomplete.QuoteID, incomplete.DashboardURL)
	assert.Equal(t, 1, h.provider.Calls(memory.OpGetQuote))
	assert.Empty(t, h.notifier.sent)
}

func TestCreateQuoteFinalizeFailureKeepsDraftID(t *testing.T) {
	h := newHarness(t, testConfig(), memory.Options{})
	h.provider.FailOn(memory.OpFinalizeQuote, &billingdomain.ProviderError{Op: memory.OpFinalizeQuote, StatusCode: 500, Message: "boom"})

	result, err := h.svc.Create(context.Background(), domain.CreateRequest{Email: "a@b.com", Pack: "pro", TeamSize: 1})
	assert.Nil(t, result)
	require.ErrorIs(t, err, domain.ErrQuoteNotFinalized)
	assert.ErrorIs(t, err, billingdomain.ErrProvider)
	assert.NotErrorIs(t, err, domain.ErrHostedURLUnavailable)

	var incomplete *domain.IncompleteQuoteError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, domain.StageDraft, incomplete.Stage)
	assert.NotEmpty(t, incomplete.QuoteID)
	assert.Equal(t, "https://dashboard.stripe.com/test/quotes/"+incomplete.QuoteID, incomplete.DashboardURL)

	_, created := h.provider.QuoteParams(incomplete.QuoteID)
	assert.True(t, created)
	assert.Equal(t, 1, h.provider.Calls(memory.OpCreateQuote))
	assert.Empty(t, h.notifier.sent)
}

func TestCreateQuoteRefetchFailureKeepsQuoteID(t *testing.T) {
	h := newHarness(t, testConfig(), memory.Options{HostedURLDelay: 5})
	h.provider.FailOn(memory.OpGetQuote, &billingdomain.ProviderError{Op: memory.OpGetQuote, Message: "timeout"})

	result, err := h.svc.Create(context.Background(), domain.CreateRequest{Email: "a@b.com", Pack: "pro", TeamSize: 1})
	assert.Nil(t, result)
	require.ErrorIs(t, err, domain.ErrHostedURLUnavailable)
	assert.ErrorIs(t, err, billingdomain.ErrProvider)

	var incomplete *domain.IncompleteQuoteError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, domain.StageFinalized, incomplete.Stage)
	assert.NotEmpty(t, incomplete.QuoteID)
	assert.Equal(t, 1, h.provider.Calls(memory.OpFinalizeQuote))
	assert.Equal(t, 1, h.provider.Calls(memory.OpGetQuote))
	assert.Empty(t, h.notifier.sent)
}

func TestCreateQuoteProviderErrorBeforeCreation(t *testing.T) {
	h := newHarness(t, testConfig(), memory.Options{})
	h.provider.FailOn(memory.OpCreateQuote, &billingdomain.ProviderError{Op: memory.OpCreateQuote, StatusCode: 400, Message: "No such price"})

	_, err := h.svc.Create(context.Background(), domain.CreateRequest{Email: "a@b.com", Pack: "pro", TeamSize: 1})
	assert.ErrorIs(t, err, billingdomain.ErrProvider)
	assert.NotErrorIs(t, err, domain.ErrHostedURLUnavailable)
	assert.Equal(t, 0, h.provider.Calls(memory.OpFinalizeQuote))
}

func TestCreateQuoteClampsTeamSize(t *testing.T) {
	h := newHarness(t, testConfig(), memory.Options{})

	result, err := h.svc.Create(context.Background(), domain.CreateRequest{Email: "a@b.com", Pack: "pro", TeamSize: 0})
	require.NoError(t, err)

	params, _ := h.provider.QuoteParams(result.ID)
	assert.Equal(t, int64(1), params.LineItems[0].Quantity)
}

func TestCreateQuoteWithoutExpiry(t *testing.T) {
	cfg := testConfig()
	cfg.QuoteExpiryDays = 0
	h := newHarness(t, cfg, memory.Options{})

	result, err := h.svc.Create(context.Background(), domain.CreateRequest{Email: "a@b.com", Pack: "pro", TeamSize: 1})
	require.NoError(t, err)

	params, _ := h.provider.QuoteParams(result.ID)
	assert.Nil(t, params.ExpiresAt)
}

func TestDashboardURL(t *testing.T) {
	assert.Equal(t, "https://dashboard.stripe.com/quotes/qt_1", domain.DashboardURL("https://dashboard.stripe.com/", true, "qt_1"))
	assert.Equal(t, "https://dashboard.stripe.com/test/quotes/qt_1", domain.DashboardURL("https://dashboard.stripe.com", false, "qt_1"))
}
