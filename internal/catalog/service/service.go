package service

import (
	"strings"

	billingdomain "github.com/smallbiznis/quotepilot/internal/billingprovider/domain"
	"github.com/smallbiznis/quotepilot/internal/catalog/domain"
	"github.com/smallbiznis/quotepilot/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Catalog *config.CatalogHolder
}

type Service struct {
	log     *zap.Logger
	catalog *config.CatalogHolder
}

func New(p Params) domain.Service {
	return &Service{
		log:     p.Log.Named("catalog.service"),
		catalog: p.Catalog,
	}
}

func (s *Service) NormalizePack(raw string) (string, error) {
	pack, err := s.lookupPack(s.catalog.Get(), raw)
	if err != nil {
		return "", err
	}
	return pack.Key, nil
}

func (s *Service) LineItemsFor(pack string, teamSize int64) ([]billingdomain.LineItem, error) {
	if teamSize < 1 {
		return nil, domain.ErrInvalidTeamSize
	}

	cfg := s.catalog.Get()
	selected, err := s.lookupPack(cfg, pack)
	if err != nil {
		return nil, err
	}

	items := []billingdomain.LineItem{{PriceRef: cfg.SeatPrice, Quantity: teamSize}}
	price := strings.TrimSpace(selected.Price)
	switch {
	case price != "":
		items = append(items, billingdomain.LineItem{PriceRef: price, Quantity: teamSize})
	case !selected.Optional:
		return nil, &config.ConfigurationError{Key: selected.PriceKey}
	}
	return items, nil
}

func (s *Service) UsageLineItem(docsPerMonth int64) (*billingdomain.LineItem, error) {
	cfg := s.catalog.Get()
	quantity := usageQuantity(docsPerMonth, cfg.UsageBatchSize)
	if quantity == 0 {
		return nil, nil
	}
	if strings.TrimSpace(cfg.UsagePrice) == "" {
		return nil, &config.ConfigurationError{Key: "PRICE_ID_DOCS"}
	}
	return &billingdomain.LineItem{PriceRef: cfg.UsagePrice, Quantity: quantity}, nil
}

func (s *Service) SubscriptionItems(teamSize, docsPerMonth int64) ([]billingdomain.LineItem, error) {
	if teamSize < 1 {
		return nil, domain.ErrInvalidTeamSize
	}

	cfg := s.catalog.Get()
	items := []billingdomain.LineItem{{PriceRef: cfg.SeatPrice, Quantity: teamSize}}

	usage, err := s.UsageLineItem(docsPerMonth)
	if err != nil {
		return nil, err
	}
	if usage != nil {
		items = append(items, *usage)
	}
	return items, nil
}

func (s *Service) lookupPack(cfg config.CatalogConfig, raw string) (config.PackConfig, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		return config.PackConfig{}, domain.ErrInvalidPack
	}
	for _, pack := range cfg.Packs {
		if strings.EqualFold(pack.Key, name) {
			return pack, nil
		}
		for _, alias := range pack.Aliases {
			if strings.EqualFold(alias, name) {
				return pack, nil
			}
		}
	}
	return config.PackConfig{}, domain.ErrInvalidPack
}

// usageQuantity rounds the monthly volume up to whole batches.
func usageQuantity(docsPerMonth, batchSize int64) int64 {
	if docsPerMonth <= 0 || batchSize <= 0 {
		return 0
	}
	return (docsPerMonth + batchSize - 1) / batchSize
}
