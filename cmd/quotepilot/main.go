package main

import (
	"github.com/smallbiznis/quotepilot/internal/cache"
	"github.com/smallbiznis/quotepilot/internal/catalog"
	"github.com/smallbiznis/quotepilot/internal/checkout"
	"github.com/smallbiznis/quotepilot/internal/clock"
	"github.com/smallbiznis/quotepilot/internal/config"
	"github.com/smallbiznis/quotepilot/internal/identity"
	"github.com/smallbiznis/quotepilot/internal/idempotency"
	"github.com/smallbiznis/quotepilot/internal/notification"
	"github.com/smallbiznis/quotepilot/internal/observability"
	"github.com/smallbiznis/quotepilot/internal/promotion"
	"github.com/smallbiznis/quotepilot/internal/providers"
	"github.com/smallbiznis/quotepilot/internal/quote"
	"github.com/smallbiznis/quotepilot/internal/ratelimit"
	"github.com/smallbiznis/quotepilot/internal/server"
	"github.com/smallbiznis/quotepilot/internal/subscription"
	"github.com/smallbiznis/quotepilot/internal/webhook"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		config.ValidateAPI,
		config.ValidateWebhook,
		observability.Module,
		clock.Module,
		cache.Module,
		providers.Module,
		idempotency.Module,
		ratelimit.Module,

		// Functional Domains
		catalog.Module,
		identity.Module,
		promotion.Module,
		notification.Module,
		quote.Module,
		checkout.Module,
		subscription.Module,
		webhook.Module,

		server.Module,
		server.APIRoutes,
		server.WebhookRoutes,
	)
	app.Run()
}
