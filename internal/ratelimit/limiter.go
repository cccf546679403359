package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/quotepilot/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyPublicEndpoint = "quotepilot:ratelimit:%s:%s"

// PublicLimiter throttles unauthenticated endpoints per client address.
type PublicLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Client *redis.Client `optional:"true"`
}

// NewPublicLimiter returns nil when rate limiting is disabled.
func NewPublicLimiter(p Params) (*PublicLimiter, error) {
	limitCfg := p.Config.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if p.Client == nil {
		return nil, &config.ConfigurationError{Key: "REDIS_ADDR", Reason: "required when RATE_LIMIT_ENABLED is set"}
	}

	p.Log.Named("ratelimit").Info("public endpoint rate limit enabled",
		zap.Float64("rate", limitCfg.Rate),
		zap.Int("burst", limitCfg.Burst),
	)
	return newPublicLimiter(p.Client, limitCfg.Rate, limitCfg.Burst), nil
}

func newPublicLimiter(client *redis.Client, rate float64, burst int) *PublicLimiter {
	return &PublicLimiter{
		bucket: NewTokenBucket(client),
		rate:   rate,
		burst:  burst,
	}
}

func (l *PublicLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow draws one token for clientKey on endpoint. A disabled limiter always allows.
func (l *PublicLimiter) Allow(ctx context.Context, endpoint, clientKey string) (*Decision, error) {
	if !l.Enabled() {
		return &Decision{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyPublicEndpoint, strings.TrimSpace(endpoint), strings.TrimSpace(clientKey))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
