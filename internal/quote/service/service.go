package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	billingdomain "github.com/smallbiznis/quotepilot/internal/billingprovider/domain"
	catalogdomain "github.com/smallbiznis/quotepilot/internal/catalog/domain"
	"github.com/smallbiznis/quotepilot/internal/clock"
	"github.com/smallbiznis/quotepilot/internal/config"
	identitydomain "github.com/smallbiznis/quotepilot/internal/identity/domain"
	notificationdomain "github.com/smallbiznis/quotepilot/internal/notification/domain"
	"github.com/smallbiznis/quotepilot/internal/observability/metrics"
	"github.com/smallbiznis/quotepilot/internal/observability/tracing"
	promotiondomain "github.com/smallbiznis/quotepilot/internal/promotion/domain"
	"github.com/smallbiznis/quotepilot/internal/quote/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config    config.Config
	Log       *zap.Logger
	Clock     clock.Clock
	Catalog   catalogdomain.Service
	Identity  identitydomain.Service
	Promotion promotiondomain.Service
	Quotes    billingdomain.QuoteAPI
	Notifier  notificationdomain.Service
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	clock     clock.Clock
	catalog   catalogdomain.Service
	identity  identitydomain.Service
	promotion promotiondomain.Service
	quotes    billingdomain.QuoteAPI
	notifier  notificationdomain.Service
	metrics   *metrics.Metrics
	tracer    trace.Tracer

	taxRateID     string
	expiry        time.Duration
	dashboardBase string
	live          bool
}

func New(p Params) domain.Service {
	return &Service{
		log:           p.Log.Named("quote.service"),
		clock:         p.Clock,
		catalog:       p.Catalog,
		identity:      p.Identity,
		promotion:     p.Promotion,
		quotes:        p.Quotes,
		notifier:      p.Notifier,
		metrics:       p.Metrics,
		tracer:        otel.Tracer("quotepilot/quote"),
		taxRateID:     p.Config.TaxRateID,
		expiry:        time.Duration(p.Config.QuoteExpiryDays) * 24 * time.Hour,
		dashboardBase: p.Config.Stripe.DashboardURL,
		live:          p.Config.LiveMode(),
	}
}

// Create runs the quote lifecycle. Validation and catalog errors return
// before any provider call is made.
func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Result, error) {
	ctx, span := s.tracer.Start(ctx, "quote.create")
	defer span.End()

	result, pack, err := s.create(ctx, span, req)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "quote creation failed")
		s.metrics.RecordQuote(ctx, pack, outcomeOf(err))
		return nil, err
	}

	s.metrics.RecordQuote(ctx, pack, "created")
	return result, nil
}

func (s *Service) create(ctx context.Context, span trace.Span, req domain.CreateRequest) (*domain.Result, string, error) {
	email, err := identitydomain.ValidateEmail(req.Email)
	if err != nil {
		return nil, "", err
	}
	pack, err := s.catalog.NormalizePack(req.Pack)
	if err != nil {
		return nil, "", err
	}
	span.SetAttributes(tracing.SafeAttributes(attribute.String("billing.pack", pack))...)

	team := req.TeamSize
	if team < 1 {
		team = 1
	}
	lineItems, err := s.catalog.LineItemsFor(pack, team)
	if err != nil {
		return nil, pack, err
	}

	identity, err := s.identity.Resolve(ctx, email)
	if err != nil {
		return nil, pack, err
	}

	teamSize := strconv.FormatInt(team, 10)
	promoCode := req.PromoCode
	if _, err := s.identity.Update(ctx, identity.ID, identitydomain.Selection{
		Pack:      pack,
		TeamSize:  teamSize,
		PromoCode: &promoCode,
	}); err != nil {
		return nil, pack, err
	}

	params := billingdomain.QuoteParams{
		CustomerID: identity.ID,
		LineItems:  lineItems,
		TaxRateID:  s.taxRateID,
		Metadata: map[string]string{
			identitydomain.MetadataPack:      pack,
			identitydomain.MetadataTeamSize:  teamSize,
			identitydomain.MetadataPromoCode: promoCode,
		},
	}
	if discount := s.promotion.Resolve(ctx, promoCode); discount != nil {
		params.PromotionCodeID = discount.PromotionCodeID
		params.CouponID = discount.CouponRef
	}
	if s.expiry > 0 {
		expiresAt := s.clock.Now().Add(s.expiry)
		params.ExpiresAt = &expiresAt
	}

	draft, err := s.quotes.CreateQuote(ctx, params)
	if err != nil {
		return nil, pack, fmt.Errorf("create quote: %w", err)
	}
	span.SetAttributes(tracing.SafeAttributes(attribute.String("quote.id", draft.ID))...)

	finalized, err := s.quotes.FinalizeQuote(ctx, draft.ID)
	if err != nil {
		s.log.Warn("quote left in draft", zap.String("quote_id", draft.ID), zap.Error(err))
		return nil, pack, &domain.IncompleteQuoteError{
			QuoteID:      draft.ID,
			DashboardURL: domain.DashboardURL(s.dashboardBase, s.live, draft.ID),
			Stage:        domain.StageDraft,
			Cause:        fmt.Errorf("finalize quote: %w", err),
		}
	}

	result := &domain.Result{
		ID:           finalized.ID,
		URL:          finalized.HostedURL,
		DashboardURL: domain.DashboardURL(s.dashboardBase, s.live, finalized.ID),
	}
	if result.URL == "" {
		url, err := s.resolveHostedURL(ctx, finalized.ID)
		if err != nil || url == "" {
			s.log.Warn("quote finalized without hosted url", zap.String("quote_id", finalized.ID), zap.Error(err))
			return nil, pack, &domain.IncompleteQuoteError{
				QuoteID:      finalized.ID,
				DashboardURL: result.DashboardURL,
				Stage:        domain.StageFinalized,
				Cause:        err,
			}
		}
		result.URL = url
	}

	s.notifier.Send(ctx, notificationdomain.TemplateQuoteCreated, []string{email}, map[string]string{
		notificationdomain.VarQuoteURL: result.URL,
		notificationdomain.VarQuoteID:  result.ID,
		notificationdomain.VarPack:     pack,
		notificationdomain.VarTeamSize: teamSize,
	})

	s.log.Info("quote created", zap.String("quote_id", result.ID), zap.String("pack", pack))
	return result, pack, nil
}

// resolveHostedURL re-reads the quote exactly once.
func (s *Service) resolveHostedURL(ctx context.Context, quoteID string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "quote.resolve_hosted_url")
	defer span.End()

	q, err := s.quotes.GetQuote(ctx, quoteID)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		return "", fmt.Errorf("retrieve quote: %w", err)
	}
	return q.HostedURL, nil
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrHostedURLUnavailable),
		errors.Is(err, domain.ErrQuoteNotFinalized):
		return "incomplete"
	case errors.Is(err, identitydomain.ErrInvalidEmail),
		errors.Is(err, catalogdomain.ErrInvalidPack),
		errors.Is(err, catalogdomain.ErrInvalidTeamSize):
		return "invalid"
	default:
		return "error"
	}
}
