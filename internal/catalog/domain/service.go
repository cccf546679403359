package domain

import (
	"errors"

	billingdomain "github.com/smallbiznis/quotepilot/internal/billingprovider/domain"
)

// Service maps a requested configuration to priced line items.
type Service interface {
	// NormalizePack resolves a pack key or alias to its canonical key.
	NormalizePack(raw string) (string, error)
	LineItemsFor(pack string, teamSize int64) ([]billingdomain.LineItem, error)
	// UsageLineItem returns nil when the rounded quantity is zero.
	UsageLineItem(docsPerMonth int64) (*billingdomain.LineItem, error)
	SubscriptionItems(teamSize, docsPerMonth int64) ([]billingdomain.LineItem, error)
}

var (
	ErrInvalidPack     = errors.New("invalid_pack")
	ErrInvalidTeamSize = errors.New("invalid_team_size")
)
