package service

import (
	"context"
	"fmt"
	"strings"

	billingdomain "github.com/smallbiznis/quotepilot/internal/billingprovider/domain"
	"github.com/smallbiznis/quotepilot/internal/identity/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Customers billingdomain.CustomerAPI
}

type Service struct {
	log       *zap.Logger
	customers billingdomain.CustomerAPI
}

func New(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("identity.service"),
		customers: p.Customers,
	}
}

func (s *Service) Resolve(ctx context.Context, email string) (domain.Identity, error) {
	email, err := domain.ValidateEmail(email)
	if err != nil {
		return domain.Identity{}, err
	}

	existing, err := s.customers.FindCustomerByEmail(ctx, email)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("find identity: %w", err)
	}
	if existing != nil {
		return toIdentity(existing), nil
	}

	created, err := s.customers.CreateCustomer(ctx, billingdomain.CustomerParams{Email: email})
	if err != nil {
		return domain.Identity{}, fmt.Errorf("create identity: %w", err)
	}
	s.log.Info("identity created", zap.String("identity_id", created.ID))
	return toIdentity(created), nil
}

func (s *Service) Update(ctx context.Context, id string, sel domain.Selection) (domain.Identity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Identity{}, domain.ErrInvalidIdentity
	}

	description := sel.Description()
	updated, err := s.customers.UpdateCustomer(ctx, id, billingdomain.CustomerParams{
		Description: &description,
		Metadata:    sel.Metadata(),
	})
	if err != nil {
		return domain.Identity{}, fmt.Errorf("update identity: %w", err)
	}
	return toIdentity(updated), nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Identity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Identity{}, domain.ErrInvalidIdentity
	}

	customer, err := s.customers.GetCustomer(ctx, id)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("get identity: %w", err)
	}
	return toIdentity(customer), nil
}

func toIdentity(c *billingdomain.Customer) domain.Identity {
	return domain.Identity{
		ID:          c.ID,
		Email:       c.Email,
		Description: c.Description,
		Metadata:    c.Metadata,
	}
}
