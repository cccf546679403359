package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	billingdomain "github.com/smallbiznis/quotepilot/internal/billingprovider/domain"
	"github.com/smallbiznis/quotepilot/internal/config"
	identitydomain "github.com/smallbiznis/quotepilot/internal/identity/domain"
	"github.com/smallbiznis/quotepilot/internal/idempotency"
	notificationdomain "github.com/smallbiznis/quotepilot/internal/notification/domain"
	"github.com/smallbiznis/quotepilot/internal/observability/metrics"
	"github.com/smallbiznis/quotepilot/internal/observability/tracing"
	"github.com/smallbiznis/quotepilot/internal/webhook/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const notifyKeyPrefix = "webhook:notify:"

type Params struct {
	fx.In

	Config      config.Config
	Log         *zap.Logger
	Verifier    billingdomain.EventVerifier
	Identity    identitydomain.Service
	Idempotency idempotency.Store
	Notifier    notificationdomain.Service
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	log         *zap.Logger
	verifier    billingdomain.EventVerifier
	identity    identitydomain.Service
	idempotency idempotency.Store
	notifier    notificationdomain.Service
	metrics     *metrics.Metrics
	tracer      trace.Tracer

	notificationsEnabled bool
	hasSecret            bool
	live                 bool
}

func New(p Params) domain.Service {
	return &Service{
		log:                  p.Log.Named("webhook.service"),
		verifier:             p.Verifier,
		identity:             p.Identity,
		idempotency:          p.Idempotency,
		notifier:             p.Notifier,
		metrics:              p.Metrics,
		tracer:               otel.Tracer("quotepilot/webhook"),
		notificationsEnabled: p.Config.NotificationsEnabled(),
		hasSecret:            p.Config.Stripe.WebhookSecret != "",
		live:                 p.Config.LiveMode(),
	}
}

func (s *Service) Ingest(ctx context.Context, payload []byte, signatureHeader string) (domain.Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "webhook.ingest")
	defer span.End()

	s.log.Info("webhook delivery received",
		zap.Bool("has_signature_header", strings.TrimSpace(signatureHeader) != ""),
		zap.Bool("live_mode", s.live),
		zap.Bool("has_webhook_secret", s.hasSecret),
	)

	event, err := s.verifier.Verify(payload, signatureHeader)
	if err != nil {
		s.log.Warn("webhook rejected", zap.Error(err))
		span.SetStatus(codes.Error, "webhook rejected")
		s.metrics.RecordWebhookEvent(ctx, "unknown", "invalid")
		return "", err
	}
	span.SetAttributes(tracing.SafeAttributes(
		attribute.String("webhook.event_id", event.ID),
		attribute.String("webhook.event_type", event.Type),
	)...)

	outcome, err := s.dispatch(ctx, event)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "webhook handler failed")
		s.log.Error("webhook handler failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
			zap.Error(err),
		)
		s.metrics.RecordWebhookEvent(ctx, event.Type, "error")
		return "", err
	}

	s.metrics.RecordWebhookEvent(ctx, event.Type, string(outcome))
	return outcome, nil
}

func (s *Service) dispatch(ctx context.Context, event *billingdomain.Event) (domain.Outcome, error) {
	switch event.Type {
	case billingdomain.EventCheckoutSessionCompleted:
		if err := s.handleCheckoutCompleted(ctx, event); err != nil {
			return "", err
		}
		return domain.OutcomeProcessed, nil
	default:
		s.log.Info("ignoring webhook event",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
		)
		return domain.OutcomeIgnored, nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event *billingdomain.Event) error {
	var session domain.CheckoutSession
	if err := json.Unmarshal(event.Data, &session); err != nil {
		return fmt.Errorf("%w: decode checkout session: %v", domain.ErrInvalidPayload, err)
	}

	customerID := string(session.Customer)
	selection := identitydomain.Selection{
		Pack:     session.Metadata[identitydomain.MetadataPack],
		TeamSize: session.Metadata[identitydomain.MetadataTeamSize],
	}
	if customerID != "" {
		if _, err := s.identity.Update(ctx, customerID, selection); err != nil {
			return fmt.Errorf("record checkout selection: %w", err)
		}
	}

	if !s.notificationsEnabled {
		return nil
	}

	email := s.recipient(ctx, session)
	if email == "" {
		s.log.Info("no recipient for onboarding email", zap.String("session_id", session.ID))
		return nil
	}

	claimed, err := s.idempotency.Claim(ctx, notifyKeyPrefix+event.ID)
	switch {
	case err != nil:
		s.log.Warn("dedupe store unavailable, sending anyway", zap.String("event_id", event.ID), zap.Error(err))
	case !claimed:
		s.log.Info("duplicate delivery, onboarding email already sent", zap.String("event_id", event.ID))
		return nil
	}

	s.notifier.Send(ctx, notificationdomain.TemplateOnboarding, []string{email}, map[string]string{
		notificationdomain.VarPack:     selection.Pack,
		notificationdomain.VarTeamSize: selection.TeamSize,
	})
	return nil
}

// recipient prefers the address typed at checkout over the stored identity.
func (s *Service) recipient(ctx context.Context, session domain.CheckoutSession) string {
	if session.CustomerDetails != nil && strings.TrimSpace(session.CustomerDetails.Email) != "" {
		return strings.TrimSpace(session.CustomerDetails.Email)
	}
	if email := strings.TrimSpace(session.CustomerEmail); email != "" {
		return email
	}
	if session.Customer == "" {
		return ""
	}

	identity, err := s.identity.Get(ctx, string(session.Customer))
	if err != nil {
		s.log.Warn("fetch identity for onboarding email", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(identity.Email)
}
