package service

import (
	"context"
	"fmt"
	"strings"

	billingdomain "github.com/smallbiznis/quotepilot/internal/billingprovider/domain"
	"github.com/smallbiznis/quotepilot/internal/promotion/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Promotions billingdomain.PromotionAPI
}

type Service struct {
	log        *zap.Logger
	promotions billingdomain.PromotionAPI
}

func New(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("promotion.service"),
		promotions: p.Promotions,
	}
}

func (s *Service) Resolve(ctx context.Context, code string) *domain.Discount {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}

	promo, err := s.promotions.FindActivePromotionCode(ctx, code)
	if err != nil {
		s.log.Warn("promotion lookup failed, continuing without discount", zap.Error(err))
		return nil
	}
	if promo == nil || !promo.Active {
		s.log.Debug("promotion code not found", zap.String("code", code))
		return nil
	}

	return &domain.Discount{
		PromotionCodeID: promo.ID,
		CouponRef:       promo.Coupon.ID,
		Code:            promo.Code,
	}
}

func (s *Service) Lookup(ctx context.Context, code string) (domain.LookupResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.LookupResult{}, domain.ErrInvalidCode
	}

	promo, err := s.promotions.FindActivePromotionCode(ctx, code)
	if err != nil {
		return domain.LookupResult{}, fmt.Errorf("lookup promotion: %w", err)
	}
	if promo == nil || !promo.Active {
		return domain.LookupResult{Found: false}, nil
	}

	currency := promo.Coupon.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	return domain.LookupResult{
		Found: true,
		Coupon: &domain.Coupon{
			ID:         promo.Coupon.ID,
			PercentOff: promo.Coupon.PercentOff,
			AmountOff:  promo.Coupon.AmountOff,
			Currency:   currency,
			Duration:   promo.Coupon.Duration,
		},
	}, nil
}
