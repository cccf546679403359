package billingprovider

import (
	"fmt"

	"github.com/smallbiznis/quotepilot/internal/billingprovider/domain"
	"github.com/smallbiznis/quotepilot/internal/billingprovider/memory"
	"github.com/smallbiznis/quotepilot/internal/billingprovider/stripeprovider"
	"github.com/smallbiznis/quotepilot/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("billingprovider",
	fx.Provide(NewFromConfig),
	fx.Provide(
		func(p domain.Provider) domain.CustomerAPI { return p },
		func(p domain.Provider) domain.PromotionAPI { return p },
		func(p domain.Provider) domain.QuoteAPI { return p },
		func(p domain.Provider) domain.CheckoutAPI { return p },
		func(p domain.Provider) domain.SubscriptionAPI { return p },
	),
	fx.Provide(NewVerifier),
)

// NewFromConfig selects the billing backend named by BILLING_PROVIDER.
func NewFromConfig(cfg config.Config, log *zap.Logger) (domain.Provider, error) {
	switch cfg.BillingProvider {
	case config.ProviderStripe:
		return stripeprovider.New(stripeprovider.Config{SecretKey: cfg.Stripe.SecretKey}, log), nil
	case config.ProviderMemory:
		log.Warn("using in-memory billing provider; nothing is sent to the payment provider")
		provider, err := memory.New(memory.Options{})
		if err != nil {
			return nil, err
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unknown billing provider %q", cfg.BillingProvider)
	}
}

func NewVerifier(cfg config.Config) domain.EventVerifier {
	return stripeprovider.NewVerifier(cfg.Stripe.WebhookSecret, cfg.Stripe.WebhookTolerance)
}
