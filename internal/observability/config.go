package observability

import (
	"strings"

	"github.com/smallbiznis/quotepilot/internal/config"
)

const defaultServiceName = "quotepilot"

// Config is the telemetry view of the application config. Every value comes
// from config.Config so the service reads its environment in one place.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	ExportEnabled  bool
	ExportEndpoint string
	ExportProtocol string
	SamplingRatio  float64
}

var debugEnvironments = map[string]struct{}{
	"dev":         {},
	"development": {},
	"local":       {},
	"test":        {},
}

func NewConfig(cfg config.Config) Config {
	name := strings.TrimSpace(cfg.AppName)
	if name == "" {
		name = defaultServiceName
	}
	protocol := cfg.Telemetry.OTLPProtocol
	if protocol == "" {
		protocol = config.OTLPProtocolGRPC
	}
	ratio := cfg.Telemetry.SamplingRatio
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	return Config{
		ServiceName:    name,
		Environment:    strings.ToLower(strings.TrimSpace(cfg.Environment)),
		Version:        strings.TrimSpace(cfg.AppVersion),
		LogLevel:       cfg.Telemetry.LogLevel,
		LogFormat:      cfg.Telemetry.LogFormat,
		ExportEnabled:  cfg.Telemetry.Enabled,
		ExportEndpoint: cfg.Telemetry.OTLPEndpoint,
		ExportProtocol: protocol,
		SamplingRatio:  ratio,
	}
}

// Debug turns on verbose logs and stack traces. It also keeps gin in debug mode.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	_, ok := debugEnvironments[c.Environment]
	return ok
}
