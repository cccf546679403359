package email

import (
	"github.com/smallbiznis/quotepilot/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

// NewFromConfig falls back to the no-op provider when the selected
// transport has no credential.
func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	log = log.Named("providers.email")

	switch cfg.Email.Provider {
	case config.EmailProviderSMTP:
		if cfg.Email.SMTPHost != "" {
			return NewSMTP(SMTPConfig{
				Host:     cfg.Email.SMTPHost,
				Port:     cfg.Email.SMTPPort,
				Username: cfg.Email.SMTPUsername,
				Password: cfg.Email.SMTPPassword,
			})
		}
	case config.EmailProviderResend:
		if cfg.Email.ResendAPIKey != "" {
			return NewResend(cfg.Email.ResendAPIKey, nil)
		}
	}

	log.Info("email delivery disabled", zap.String("provider", cfg.Email.Provider))
	return &NoOpProvider{}
}
