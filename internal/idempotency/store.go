package idempotency

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/quotepilot/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultTTL = 72 * time.Hour
	keyPrefix  = "quotepilot:idempotency:"
)

var ErrEmptyKey = errors.New("idempotency key is empty")

// Store records side effects that must run at most once per key.
type Store interface {
	// Claim returns true for the first caller of key within the retention
	// window and false for every later one.
	Claim(ctx context.Context, key string) (bool, error)
}

var Module = fx.Module("idempotency",
	fx.Provide(NewFromConfig),
)

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Client *redis.Client `optional:"true"`
}

func NewFromConfig(p Params) Store {
	if p.Client == nil {
		p.Log.Named("idempotency").Warn("no redis configured, duplicate webhook deliveries are not detected")
		return NoopStore{}
	}
	return NewRedisStore(p.Client, p.Config.WebhookDedupeTTL)
}

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Claim(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	return s.client.SetNX(ctx, keyPrefix+key, time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
}

// NoopStore claims every key.
type NoopStore struct{}

func (NoopStore) Claim(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	return true, nil
}
