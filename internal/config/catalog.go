package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PackEntry      = "entry"
	PackPro        = "pro"
	PackEnterprise = "enterprise"

	defaultUsageBatchSize = 100
)

// CatalogConfig describes the priced items a selection can map to.
type CatalogConfig struct {
	SeatPrice      string       `mapstructure:"seatPrice"`
	UsagePrice     string       `mapstructure:"usagePrice"`
	UsageBatchSize int64        `mapstructure:"usageBatchSize"`
	Packs          []PackConfig `mapstructure:"packs"`
}

// PackConfig maps one pack tier to its price reference.
type PackConfig struct {
	Key     string   `mapstructure:"key"`
	Aliases []string `mapstructure:"aliases"`
	Price   string   `mapstructure:"price"`
	// PriceKey is the configuration key reported when Price is missing.
	PriceKey string `mapstructure:"priceKey"`
	Optional bool   `mapstructure:"optional"`
}

func DefaultCatalogConfig(cfg Config) CatalogConfig {
	return CatalogConfig{
		SeatPrice:      cfg.Prices.Users,
		UsagePrice:     cfg.Prices.Docs,
		UsageBatchSize: defaultUsageBatchSize,
		Packs: []PackConfig{
			{
				Key:      PackEntry,
				Aliases:  []string{"essentiel", "essential"},
				Price:    cfg.Prices.PackEssentiel,
				PriceKey: "PRICE_ID_PACK_ESSENTIEL",
				Optional: true,
			},
			{
				Key:      PackPro,
				Price:    cfg.Prices.PackPro,
				PriceKey: "PRICE_ID_PACK_PRO",
			},
			{
				Key:      PackEnterprise,
				Aliases:  []string{"entreprise"},
				Price:    cfg.Prices.PackEntreprise,
				PriceKey: "PRICE_ID_PACK_ENTREPRISE",
			},
		},
	}
}

type CatalogHolder struct {
	current atomic.Value // holds CatalogConfig
}

// NewCatalogHolder starts from the environment prices and applies catalog.yml
// when one is found. The file is watched and valid edits replace the current catalog.
func NewCatalogHolder(cfg Config, log *zap.Logger) (*CatalogHolder, error) {
	log = log.Named("config.catalog")
	defaults := DefaultCatalogConfig(cfg)

	v := viper.New()
	v.SetConfigName("catalog")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/quotepilot")
	v.AddConfigPath(".")

	v.SetEnvPrefix("QUOTEPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	current := defaults.clone()
	if fileFound {
		if err := v.UnmarshalKey("catalog", &current); err != nil {
			return nil, err
		}
	}
	if err := validateCatalogConfig(current); err != nil {
		return nil, err
	}

	holder := NewStaticCatalogHolder(current)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated := defaults.clone()
		if err := v.UnmarshalKey("catalog", &updated); err != nil {
			log.Warn("catalog reload failed", zap.Error(err))
			return
		}
		if err := validateCatalogConfig(updated); err != nil {
			log.Warn("invalid catalog ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("catalog reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// NewStaticCatalogHolder wraps a fixed catalog.
func NewStaticCatalogHolder(c CatalogConfig) *CatalogHolder {
	holder := &CatalogHolder{}
	holder.current.Store(c)
	return holder
}

func (h *CatalogHolder) Get() CatalogConfig {
	return h.current.Load().(CatalogConfig)
}

func (c CatalogConfig) clone() CatalogConfig {
	out := c
	out.Packs = make([]PackConfig, len(c.Packs))
	for i, pack := range c.Packs {
		pack.Aliases = append([]string(nil), pack.Aliases...)
		out.Packs[i] = pack
	}
	return out
}

func validateCatalogConfig(cfg CatalogConfig) error {
	if strings.TrimSpace(cfg.SeatPrice) == "" {
		return &ConfigurationError{Key: "PRICE_ID_USERS"}
	}
	if len(cfg.Packs) == 0 {
		return errors.New("catalog.packs cannot be empty")
	}
	if cfg.UsageBatchSize <= 0 {
		return errors.New("catalog.usageBatchSize must be positive")
	}

	seen := map[string]struct{}{}
	for _, pack := range cfg.Packs {
		names := append([]string{pack.Key}, pack.Aliases...)
		for _, name := range names {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				return errors.New("catalog pack key cannot be empty")
			}
			if _, ok := seen[name]; ok {
				return fmt.Errorf("catalog pack %q declared twice", name)
			}
			seen[name] = struct{}{}
		}
		if !pack.Optional && strings.TrimSpace(pack.Price) == "" {
			return &ConfigurationError{Key: pack.PriceKey}
		}
	}
	return nil
}
