package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	billingdomain "github.com/smallbiznis/quotepilot/internal/billingprovider/domain"
	catalogdomain "github.com/smallbiznis/quotepilot/internal/catalog/domain"
	identitydomain "github.com/smallbiznis/quotepilot/internal/identity/domain"
	"github.com/smallbiznis/quotepilot/internal/observability/metrics"
	"github.com/smallbiznis/quotepilot/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const metadataTrialStart = "trial_start_iso"

var trialStartLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

type Params struct {
	fx.In

	Log           *zap.Logger
	Catalog       catalogdomain.Service
	Subscriptions billingdomain.SubscriptionAPI
	Metrics       *metrics.Metrics `optional:"true"`
}

type Service struct {
	log           *zap.Logger
	catalog       catalogdomain.Service
	subscriptions billingdomain.SubscriptionAPI
	metrics       *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:           p.Log.Named("subscription.service"),
		catalog:       p.Catalog,
		subscriptions: p.Subscriptions,
		metrics:       p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Result, error) {
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		return nil, domain.ErrInvalidCustomer
	}
	trialStart, err := parseTrialStart(req.TrialStartISO)
	if err != nil {
		return nil, err
	}

	team := req.TeamSize
	if team < 1 {
		team = 1
	}
	docs := req.DocsPerMonth
	if docs < 0 {
		docs = 0
	}

	items, err := s.catalog.SubscriptionItems(team, docs)
	if err != nil {
		return nil, err
	}

	methods, err := s.subscriptions.ListPaymentMethods(ctx, customerID, billingdomain.PaymentMethodTypeCard)
	if err != nil {
		s.metrics.RecordSubscription(ctx, "error")
		return nil, fmt.Errorf("list payment methods: %w", err)
	}

	trialEnd := trialStart.Add(domain.TrialPeriod)
	params := billingdomain.SubscriptionParams{
		CustomerID:        customerID,
		Items:             items,
		TrialEnd:          trialEnd,
		ProrationBehavior: billingdomain.ProrationCreateProrations,
		Metadata: map[string]string{
			identitydomain.MetadataTeamSize:     strconv.FormatInt(team, 10),
			identitydomain.MetadataDocsPerMonth: strconv.FormatInt(docs, 10),
			metadataTrialStart:                  strings.TrimSpace(req.TrialStartISO),
		},
	}
	if len(methods) > 0 {
		params.DefaultPaymentMethod = methods[0].ID
	}

	sub, err := s.subscriptions.CreateSubscription(ctx, params)
	if err != nil {
		s.metrics.RecordSubscription(ctx, "error")
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	s.metrics.RecordSubscription(ctx, "created")
	s.log.Info("trial subscription created",
		zap.String("subscription_id", sub.ID),
		zap.Time("trial_end", trialEnd),
	)
	return &domain.Result{SubscriptionID: sub.ID, TrialEnd: trialEnd.Unix()}, nil
}

func parseTrialStart(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, domain.ErrInvalidTrialStart
	}
	for _, layout := range trialStartLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, domain.ErrInvalidTrialStart
}
