package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	billingdomain "github.com/smallbiznis/quotepilot/internal/billingprovider/domain"
	catalogdomain "github.com/smallbiznis/quotepilot/internal/catalog/domain"
	checkoutdomain "github.com/smallbiznis/quotepilot/internal/checkout/domain"
	"github.com/smallbiznis/quotepilot/internal/config"
	promotiondomain "github.com/smallbiznis/quotepilot/internal/promotion/domain"
	quotedomain "github.com/smallbiznis/quotepilot/internal/quote/domain"
	"github.com/smallbiznis/quotepilot/internal/ratelimit"
	subscriptiondomain "github.com/smallbiznis/quotepilot/internal/subscription/domain"
	webhookdomain "github.com/smallbiznis/quotepilot/internal/webhook/domain"
	"go.uber.org/zap"
)

type fakeQuoteService struct {
	last   quotedomain.CreateRequest
	result *quotedomain.Result
	err    error
}

func (f *fakeQuoteService) Create(ctx context.Context, req quotedomain.CreateRequest) (*quotedomain.Result, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeCheckoutService struct {
	calls int
	last  checkoutdomain.Request
	err   error
}

func (f *fakeCheckoutService) Build(ctx context.Context, req checkoutdomain.Request) (*checkoutdomain.Session, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &checkoutdomain.Session{ID: "cs_1", URL: "https://checkout.test/cs_1"}, nil
}

type fakePromotionService struct{}

func (fakePromotionService) Resolve(ctx context.Context, code string) *promotiondomain.Discount {
	return nil
}

func (fakePromotionService) Lookup(ctx context.Context, code string) (promotiondomain.LookupResult, error) {
	switch strings.TrimSpace(code) {
	case "":
		return promotiondomain.LookupResult{}, promotiondomain.ErrInvalidCode
	case "WELCOME":
		percent := 10.0
		return promotiondomain.LookupResult{Found: true, Coupon: &promotiondomain.Coupon{
			ID:         "co_1",
			PercentOff: &percent,
			Currency:   "eur",
			Duration:   "once",
		}}, nil
	default:
		return promotiondomain.LookupResult{}, nil
	}
}

type fakeSubscriptionService struct {
	last subscriptiondomain.CreateRequest
}

func (f *fakeSubscriptionService) Create(ctx context.Context, req subscriptiondomain.CreateRequest) (*subscriptiondomain.Result, error) {
	f.last = req
	if req.CustomerID == "" {
		return nil, subscriptiondomain.ErrInvalidCustomer
	}
	return &subscriptiondomain.Result{SubscriptionID: "sub_1", TrialEnd: 1773572400}, nil
}

type fakeWebhookService struct {
	payload []byte
	header  string
	outcome webhookdomain.Outcome
	err     error
}

func (f *fakeWebhookService) Ingest(ctx context.Context, payload []byte, signatureHeader string) (webhookdomain.Outcome, error) {
	f.payload = payload
	f.header = signatureHeader
	if f.err != nil {
		return "", f.err
	}
	return f.outcome, nil
}

type testServer struct {
	srv          *Server
	quotes       *fakeQuoteService
	checkout     *fakeCheckoutService
	subscription *fakeSubscriptionService
	webhooks     *fakeWebhookService
}

func newTestServer(t *testing.T, limiter *ratelimit.PublicLimiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(ErrorHandlingMiddleware())
	engine.NoMethod(func(c *gin.Context) { AbortWithError(c, ErrMethodNotAllowed) })

	ts := &testServer{
		quotes: &fakeQuoteService{result: &quotedomain.Result{
			URL:          "https://quote.test/qt_1",
			ID:           "qt_1",
			DashboardURL: "https://dashboard.stripe.com/test/quotes/qt_1",
		}},
		checkout:     &fakeCheckoutService{},
		subscription: &fakeSubscriptionService{},
		webhooks:     &fakeWebhookService{outcome: webhookdomain.OutcomeProcessed},
	}
	ts.srv = NewServer(ServerParams{
		Engine:        engine,
		Config:        config.Config{},
		Log:           zap.NewNop(),
		Quotes:        ts.quotes,
		Checkout:      ts.checkout,
		Promotions:    fakePromotionService{},
		Subscriptions: ts.subscription,
		Webhooks:      ts.webhooks,
		Limiter:       limiter,
	})
	ts.srv.RegisterAPIRoutes()
	ts.srv.RegisterWebhookRoutes()
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(resp, req)
	return resp
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, resp.Body.String())
	}
	return body.Error
}

func TestCreateQuoteReturnsLinks(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(jsonRequest(http.MethodPost, PathCreateQuote, `{"email":"a@example.com","team_size":"3","pack":"pro","promo_code":"WELCOME"}`))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["url"] != "https://quote.test/qt_1" || body["id"] != "qt_1" || body["dashboardUrl"] == "" {
		t.Fatalf("unexpected body %v", body)
	}
	if ts.quotes.last.TeamSize != 3 || ts.quotes.last.Pack != "pro" || ts.quotes.last.PromoCode != "WELCOME" {
		t.Fatalf("unexpected request %+v", ts.quotes.last)
	}
}

func TestCreateQuoteAcceptsNumericTeamSize(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(jsonRequest(http.MethodPost, PathCreateQuote, `{"email":"a@example.com","team_size":7,"pack":"pro"}`))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ts.quotes.last.TeamSize != 7 {
		t.Fatalf("expected team size 7, got %d", ts.quotes.last.TeamSize)
	}
}

func TestCreateQuoteErrorStatuses(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		errorType string
	}{
		{name: "invalid email", err: fmt.Errorf("resolve: %w", identityErrInvalidEmail()), status: http.StatusBadRequest, errorType: "validation_error"},
		{name: "invalid pack", err: catalogdomain.ErrInvalidPack, status: http.StatusBadRequest, errorType: "validation_error"},
		{name: "missing price", err: &config.ConfigurationError{Key: "PRICE_ID_PACK_PRO"}, status: http.StatusInternalServerError, errorType: "configuration_error"},
		{name: "provider", err: &billingdomain.ProviderError{Op: "quotes.create", StatusCode: 400, Message: "No such price"}, status: http.StatusInternalServerError, errorType: "provider_error"},
		{name: "incomplete", err: &quotedomain.IncompleteQuoteError{QuoteID: "qt_1", DashboardURL: "https://dashboard.stripe.com/test/quotes/qt_1"}, status: http.StatusBadGateway, errorType: "quote_incomplete"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.quotes.err = tt.err

			resp := ts.do(jsonRequest(http.MethodPost, PathCreateQuote, `{"email":"a@example.com","team_size":1,"pack":"pro"}`))
			if resp.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, resp.Code)
			}
			if got := decodeError(t, resp).Type; got != tt.errorType {
				t.Fatalf("expected type %q, got %q", tt.errorType, got)
			}
		})
	}
}

func TestCreateQuoteIncompleteCarriesQuoteID(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.quotes.err = &quotedomain.IncompleteQuoteError{QuoteID: "qt_9", DashboardURL: "https://dashboard.stripe.com/test/quotes/qt_9"}

	resp := ts.do(jsonRequest(http.MethodPost, PathCreateQuote, `{"email":"a@example.com","pack":"pro"}`))
	payload := decodeError(t, resp)
	if payload.QuoteID != "qt_9" || payload.DashboardURL != "https://dashboard.stripe.com/test/quotes/qt_9" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestCreateQuoteDraftLeftoverCarriesQuoteID(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.quotes.err = &quotedomain.IncompleteQuoteError{
		QuoteID:      "qt_draft",
		DashboardURL: "https://dashboard.stripe.com/test/quotes/qt_draft",
		Stage:        quotedomain.StageDraft,
		Cause:        &billingdomain.ProviderError{Op: "quotes.finalize", Message: "boom"},
	}

	resp := ts.do(jsonRequest(http.MethodPost, PathCreateQuote, `{"email":"a@example.com","pack":"pro"}`))
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
	payload := decodeError(t, resp)
	if payload.Type != "quote_incomplete" || payload.QuoteID != "qt_draft" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.Message != "quote created but could not be finalized" {
		t.Fatalf("unexpected message %q", payload.Message)
	}
}

func TestCreateQuoteRejectsMalformedJSON(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(jsonRequest(http.MethodPost, PathCreateQuote, `{"email":`))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestCreateCheckoutSessionJSON(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(jsonRequest(http.MethodPost, PathCreateCheckoutSession, `{"email":"a@example.com","team_size":"4","docs_per_month":250,"pack":"pro"}`))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if resp.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected CORS header")
	}

	var body map[string]string
	_ = json.Unmarshal(resp.Body.Bytes(), &body)
	if body["url"] != "https://checkout.test/cs_1" {
		t.Fatalf("unexpected body %v", body)
	}
	if ts.checkout.last.TeamSize != 4 || ts.checkout.last.DocsPerMonth != 250 {
		t.Fatalf("unexpected request %+v", ts.checkout.last)
	}
}

func TestCreateCheckoutSessionDefaults(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(jsonRequest(http.MethodPost, PathCreateCheckoutSession, `{"team_size":"lots"}`))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ts.checkout.last.TeamSize != 1 || ts.checkout.last.DocsPerMonth != 0 {
		t.Fatalf("unexpected defaults %+v", ts.checkout.last)
	}
}

func TestCreateCheckoutSessionToleratesUnreadableBody(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		body  string
		pack  string
		email string
	}{
		{name: "empty body", path: PathCreateCheckoutSession, body: ""},
		{name: "boolean team size", path: PathCreateCheckoutSession, body: `{"team_size":true,"pack":"pro"}`, pack: "pro"},
		{name: "numeric email", path: PathCreateCheckoutSession, body: `{"email":123,"pack":"pro"}`, pack: "pro"},
		{name: "object docs", path: PathCreateCheckoutSession, body: `{"docs_per_month":{"n":1},"email":"a@example.com"}`, email: "a@example.com"},
		{name: "truncated json", path: PathCreateCheckoutSession, body: `{"email":`},
		{name: "direct empty body", path: PathCreateCheckoutSessionDirect, body: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)

			resp := ts.do(jsonRequest(http.MethodPost, tt.path, tt.body))
			if resp.Code != http.StatusOK && resp.Code != http.StatusSeeOther {
				t.Fatalf("expected success, got %d: %s", resp.Code, resp.Body.String())
			}
			if ts.checkout.calls != 1 {
				t.Fatalf("expected one build call, got %d", ts.checkout.calls)
			}
			last := ts.checkout.last
			if last.TeamSize != 1 || last.DocsPerMonth != 0 {
				t.Fatalf("expected defaults, got %+v", last)
			}
			if last.Pack != tt.pack || last.Email != tt.email {
				t.Fatalf("unexpected request %+v", last)
			}
		})
	}
}

func TestCreateCheckoutSessionPreflight(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(httptest.NewRequest(http.MethodOptions, PathCreateCheckoutSession, nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if resp.Header().Get("Access-Control-Allow-Methods") != "POST, OPTIONS" {
		t.Fatalf("unexpected allow methods %q", resp.Header().Get("Access-Control-Allow-Methods"))
	}
	if ts.checkout.calls != 0 {
		t.Fatalf("preflight must not build a session")
	}
}

func TestCreateCheckoutSessionWrongVerb(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(httptest.NewRequest(http.MethodGet, PathCreateCheckoutSession, nil))
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
	if got := decodeError(t, resp).Type; got != "method_not_allowed" {
		t.Fatalf("unexpected type %q", got)
	}
}

func TestCreateCheckoutSessionProviderFailure(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.checkout.err = &billingdomain.ProviderError{Op: "checkout.sessions.create", Message: "Invalid price"}

	resp := ts.do(jsonRequest(http.MethodPost, PathCreateCheckoutSession, `{}`))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if got := decodeError(t, resp).Message; got != "Invalid price" {
		t.Fatalf("expected provider message, got %q", got)
	}
}

func TestCreateCheckoutSessionDirectRedirects(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(httptest.NewRequest(http.MethodGet, PathCreateCheckoutSessionDirect+"?team_size=2&docs_per_month=150&pack=pro&email=a%40example.com", nil))
	if resp.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.Code)
	}
	if resp.Header().Get("Location") != "https://checkout.test/cs_1" {
		t.Fatalf("unexpected location %q", resp.Header().Get("Location"))
	}
	if ts.checkout.last.TeamSize != 2 || ts.checkout.last.DocsPerMonth != 150 || ts.checkout.last.Email != "a@example.com" {
		t.Fatalf("unexpected request %+v", ts.checkout.last)
	}
}

func TestCreateCheckoutSessionDirectForm(t *testing.T) {
	ts := newTestServer(t, nil)

	form := url.Values{"team_size": {"5"}, "pack": {"entreprise"}}
	req := httptest.NewRequest(http.MethodPost, PathCreateCheckoutSessionDirect, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp := ts.do(req)
	if resp.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.Code)
	}
	if ts.checkout.last.TeamSize != 5 || ts.checkout.last.Pack != "entreprise" {
		t.Fatalf("unexpected request %+v", ts.checkout.last)
	}
}

func TestPromoLookup(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(httptest.NewRequest(http.MethodGet, PathPromoLookup+"?code=WELCOME", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var found struct {
		OK     bool `json:"ok"`
		Found  bool `json:"found"`
		Coupon *struct {
			ID         string   `json:"id"`
			PercentOff *float64 `json:"percent_off"`
			AmountOff  *int64   `json:"amount_off"`
		} `json:"coupon"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &found); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !found.OK || !found.Found || found.Coupon == nil || found.Coupon.ID != "co_1" {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
	if found.Coupon.PercentOff == nil || *found.Coupon.PercentOff != 10 || found.Coupon.AmountOff != nil {
		t.Fatalf("unexpected coupon amounts %s", resp.Body.String())
	}

	resp = ts.do(httptest.NewRequest(http.MethodGet, PathPromoLookup+"?code=NOPE", nil))
	if resp.Body.String() != `{"ok":true,"found":false}` {
		t.Fatalf("unexpected miss body %s", resp.Body.String())
	}

	resp = ts.do(httptest.NewRequest(http.MethodGet, PathPromoLookup, nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if field := decodeError(t, resp).Errors[0].Field; field != "code" {
		t.Fatalf("expected field code, got %q", field)
	}
}

func TestCreateSubscription(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(jsonRequest(http.MethodPost, PathCreateSubscription, `{"customerId":"cus_1","team_size":"3","docs_per_month":120,"trial_start_iso":"2026-03-01T09:00:00Z"}`))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp.Body.String() != `{"ok":true,"subscriptionId":"sub_1","trial_end":1773572400}` {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
	if ts.subscription.last.TeamSize != 3 || ts.subscription.last.DocsPerMonth != 120 {
		t.Fatalf("unexpected request %+v", ts.subscription.last)
	}

	resp = ts.do(jsonRequest(http.MethodPost, PathCreateSubscription, `{"trial_start_iso":"2026-03-01"}`))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if field := decodeError(t, resp).Errors[0].Field; field != "customer_id" {
		t.Fatalf("unexpected field %q", field)
	}
}

func TestStripeWebhookPassesRawBody(t *testing.T) {
	ts := newTestServer(t, nil)
	payload := `{"id":"evt_1", "type":"checkout.session.completed"}`

	req := httptest.NewRequest(http.MethodPost, PathStripeWebhook, strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	resp := ts.do(req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp.Body.String() != `{"received":true,"status":"processed"}` {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
	if string(ts.webhooks.payload) != payload || ts.webhooks.header != "t=1,v1=abc" {
		t.Fatalf("body or header altered: %q %q", ts.webhooks.payload, ts.webhooks.header)
	}
}

func TestStripeWebhookErrors(t *testing.T) {
	ts := newTestServer(t, nil)

	ts.webhooks.err = fmt.Errorf("%w: no signature", webhookdomain.ErrInvalidSignature)
	resp := ts.do(httptest.NewRequest(http.MethodPost, PathStripeWebhook, strings.NewReader(`{}`)))
	if resp.Code != http.StatusBadRequest || decodeError(t, resp).Type != "invalid_signature" {
		t.Fatalf("expected 400 invalid_signature, got %d %s", resp.Code, resp.Body.String())
	}

	ts.webhooks.err = &billingdomain.ProviderError{Op: "customers.update", StatusCode: 500, Message: "api down"}
	resp = ts.do(httptest.NewRequest(http.MethodPost, PathStripeWebhook, strings.NewReader(`{}`)))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
}

func TestStripeWebhookRejectsOversizedBody(t *testing.T) {
	ts := newTestServer(t, nil)

	body := bytes.Repeat([]byte("a"), maxWebhookBodyBytes+1)
	resp := ts.do(httptest.NewRequest(http.MethodPost, PathStripeWebhook, bytes.NewReader(body)))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if ts.webhooks.payload != nil {
		t.Fatalf("oversized body must not reach the dispatcher")
	}
}

func TestPublicRateLimitDeniesAfterBurst(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := ratelimit.NewPublicLimiter(ratelimit.Params{
		Config: config.Config{RateLimit: config.RateLimitConfig{Enabled: true, Rate: 0.001, Burst: 2}},
		Log:    zap.NewNop(),
		Client: client,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ts := newTestServer(t, limiter)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp := ts.do(jsonRequest(http.MethodPost, PathCreateQuote, `{"email":"a@example.com","pack":"pro"}`))
		codes = append(codes, resp.Code)
		if i == 2 && resp.Header().Get("Retry-After") == "" {
			t.Fatalf("expected Retry-After header")
		}
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}

	resp := ts.do(jsonRequest(http.MethodPost, PathCreateSubscription, `{"customerId":"cus_1","trial_start_iso":"2026-03-01"}`))
	if resp.Code != http.StatusOK {
		t.Fatalf("subscription endpoint is not rate limited, got %d", resp.Code)
	}
}
