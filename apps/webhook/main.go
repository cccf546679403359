package main

import (
	"github.com/smallbiznis/quotepilot/internal/cache"
	"github.com/smallbiznis/quotepilot/internal/config"
	"github.com/smallbiznis/quotepilot/internal/identity"
	"github.com/smallbiznis/quotepilot/internal/idempotency"
	"github.com/smallbiznis/quotepilot/internal/notification"
	"github.com/smallbiznis/quotepilot/internal/observability"
	"github.com/smallbiznis/quotepilot/internal/providers"
	"github.com/smallbiznis/quotepilot/internal/server"
	"github.com/smallbiznis/quotepilot/internal/webhook"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		config.ValidateWebhook,
		observability.Module,
		cache.Module,
		providers.Module,
		idempotency.Module,

		identity.Module,
		notification.Module,
		webhook.Module,

		server.Module,
		server.WebhookRoutes,
	)
	app.Run()
}
