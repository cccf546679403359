package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	billingdomain "github.com/smallbiznis/quotepilot/internal/billingprovider/domain"
	catalogdomain "github.com/smallbiznis/quotepilot/internal/catalog/domain"
	"github.com/smallbiznis/quotepilot/internal/checkout/domain"
	"github.com/smallbiznis/quotepilot/internal/config"
	identitydomain "github.com/smallbiznis/quotepilot/internal/identity/domain"
	"github.com/smallbiznis/quotepilot/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	successPath = "/merci"
	cancelPath  = "/annule"
)

type Params struct {
	fx.In

	Config   config.Config
	Log      *zap.Logger
	Catalog  catalogdomain.Service
	Sessions billingdomain.CheckoutAPI
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	catalog  catalogdomain.Service
	sessions billingdomain.CheckoutAPI
	metrics  *metrics.Metrics
	baseURL  string
}

func New(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("checkout.service"),
		catalog:  p.Catalog,
		sessions: p.Sessions,
		metrics:  p.Metrics,
		baseURL:  strings.TrimRight(p.Config.WebBaseURL, "/"),
	}
}

func (s *Service) Build(ctx context.Context, req domain.Request) (*domain.Session, error) {
	team := req.TeamSize
	if team < 1 {
		team = 1
	}
	docs := req.DocsPerMonth
	if docs < 0 {
		docs = 0
	}

	pack := ""
	if strings.TrimSpace(req.Pack) != "" {
		normalized, err := s.catalog.NormalizePack(req.Pack)
		switch {
		case err == nil:
			pack = normalized
		case errors.Is(err, catalogdomain.ErrInvalidPack):
			s.log.Debug("unknown pack ignored for checkout", zap.String("pack", req.Pack))
		default:
			return nil, err
		}
	}

	params := billingdomain.CheckoutSessionParams{
		Mode:               billingdomain.CheckoutModeSetup,
		CustomerCreation:   billingdomain.CustomerCreationAlways,
		PaymentMethodTypes: []string{billingdomain.PaymentMethodTypeCard},
		SuccessURL:         s.baseURL + successPath,
		CancelURL:          s.baseURL + cancelPath,
		Metadata: map[string]string{
			identitydomain.MetadataPack:         pack,
			identitydomain.MetadataTeamSize:     strconv.FormatInt(team, 10),
			identitydomain.MetadataDocsPerMonth: strconv.FormatInt(docs, 10),
			identitydomain.MetadataPromoCode:    strings.TrimSpace(req.PromoCode),
		},
	}
	if email, err := identitydomain.ValidateEmail(req.Email); err == nil {
		params.CustomerEmail = email
	}

	session, err := s.sessions.CreateCheckoutSession(ctx, params)
	if err != nil {
		s.metrics.RecordCheckoutSession(ctx, "error")
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	if session.URL == "" {
		s.metrics.RecordCheckoutSession(ctx, "error")
		return nil, &billingdomain.ProviderError{Op: "checkout.sessions.create", Message: "checkout session has no redirect url"}
	}

	s.metrics.RecordCheckoutSession(ctx, "created")
	s.log.Info("checkout session created", zap.String("session_id", session.ID), zap.String("pack", pack))
	return &domain.Session{ID: session.ID, URL: session.URL}, nil
}
