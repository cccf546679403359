package observability

import (
	"github.com/smallbiznis/quotepilot/internal/observability/logger"
	"github.com/smallbiznis/quotepilot/internal/observability/metrics"
	"github.com/smallbiznis/quotepilot/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		NewConfig,
		splitConfig,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	// The tracer provider installs the global propagator, so build it even
	// when nothing asks for it directly.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)

type telemetryConfigs struct {
	fx.Out

	Logger  logger.Config
	Tracing tracing.Config
	Metrics metrics.Config
}

// splitConfig hands each telemetry backend its own slice of Config.
func splitConfig(cfg Config) telemetryConfigs {
	return telemetryConfigs{
		Logger: logger.Config{
			ServiceName:         cfg.ServiceName,
			Environment:         cfg.Environment,
			Version:             cfg.Version,
			Level:               cfg.LogLevel,
			Format:              cfg.LogFormat,
			Debug:               cfg.Debug(),
			IncludeCaller:       true,
			IncludeStackOnError: cfg.Debug(),
		},
		Tracing: tracing.Config{
			Enabled:          cfg.ExportEnabled,
			ServiceName:      cfg.ServiceName,
			ServiceVersion:   cfg.Version,
			Environment:      cfg.Environment,
			ExporterEndpoint: cfg.ExportEndpoint,
			ExporterProtocol: cfg.ExportProtocol,
			SamplingRatio:    cfg.SamplingRatio,
		},
		Metrics: metrics.Config{
			Enabled:          cfg.ExportEnabled,
			ExporterEndpoint: cfg.ExportEndpoint,
			ExporterProtocol: cfg.ExportProtocol,
			ServiceName:      cfg.ServiceName,
			Environment:      cfg.Environment,
		},
	}
}
