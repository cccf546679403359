package config

import "go.uber.org/fx"

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewCatalogHolder),
)

// Validation options, one per route set. Each binary installs the ones
// matching the routes it mounts.
var (
	ValidateAPI     = fx.Invoke(func(cfg Config) error { return cfg.ValidateFor(ScopeAPI) })
	ValidateWebhook = fx.Invoke(func(cfg Config) error { return cfg.ValidateFor(ScopeWebhook) })
)
