// Package fx supplies the source→target currency conversion rate. Rate
// acquisition itself lives outside this service; consumers only depend on
// RateProvider.
package fx

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"catalog_sync/internal/domain"
	"catalog_sync/pkg/errcodes"
)

// RateProvider returns a positive conversion rate or fails.
type RateProvider interface {
	Rate(ctx context.Context) (float64, error)
}

// StaticProvider always returns a fixed rate. Used when the deployment pins
// the rate through configuration.
type StaticProvider struct {
	rate float64
}

func NewStaticProvider(rate float64) StaticProvider {
	return StaticProvider{rate: rate}
}

func (p StaticProvider) Rate(context.Context) (float64, error) {
	if p.rate <= 0 {
		return 0, domain.NewError(errcodes.RateUnavailable, "fx rate not configured")
	}

	return p.rate, nil
}

const (
	rateCacheKey = "rate"
	rateCacheTTL = time.Minute
)

// RedisProvider reads the rate published to a redis key by the external
// rate-acquisition job, caching it briefly in process. It falls back to the
// configured static rate when the key is absent.
type RedisProvider struct {
	client   *redis.Client
	key      string
	fallback StaticProvider
	cache    *cache.Cache
}

func NewRedisProvider(client *redis.Client, key string, fallback StaticProvider) *RedisProvider {
	return &RedisProvider{
		client:   client,
		key:      key,
		fallback: fallback,
		cache:    cache.New(rateCacheTTL, 5*time.Minute),
	}
}

func (p *RedisProvider) Rate(ctx context.Context) (float64, error) {
	if cached, ok := p.cache.Get(rateCacheKey); ok {
		return cached.(float64), nil
	}

	raw, err := p.client.Get(ctx, p.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return p.fallback.Rate(ctx)
		}

		return 0, domain.WrapError(err, errcodes.RateUnavailable, "fx rate lookup failed")
	}

	rate, err := strconv.ParseFloat(raw, 64)
	if err != nil || rate <= 0 {
		return 0, domain.NewError(errcodes.RateUnavailable, "published fx rate is malformed")
	}

	p.cache.Set(rateCacheKey, rate, cache.DefaultExpiration)

	return rate, nil
}
