package config

import (
	"context"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"

	"catalog_sync/pkg/contextx"
	"catalog_sync/pkg/logx"
)

var (
	logger = contextx.LoggerFromContextOrDefault          //nolint:gochecknoglobals
	json   = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip
)

// Pipeline holds the environment defaults of the reconciliation pipeline.
// The runtime knobs (Settings) can be overridden at any moment via redis;
// everything else is fixed per process.
type Pipeline struct {
	Concurrency      int           `env:"PIPELINE_CONCURRENCY" envDefault:"5"`
	BatchIntervalMs  int           `env:"PIPELINE_BATCH_INTERVAL_MS" envDefault:"200"`
	MaxRetries       int           `env:"PIPELINE_MAX_RETRIES" envDefault:"3"`
	BaseDelayMs      int           `env:"PIPELINE_BASE_DELAY_MS" envDefault:"500"`
	RequestTimeoutMs int           `env:"PIPELINE_REQUEST_TIMEOUT_MS" envDefault:"30000"`
	ChunkSize        int           `env:"PIPELINE_CHUNK_SIZE" envDefault:"25"`
	UnitTimeout      time.Duration `env:"PIPELINE_UNIT_TIMEOUT" envDefault:"60s"`
	ChunkTimeout     time.Duration `env:"PIPELINE_CHUNK_TIMEOUT" envDefault:"5m"`
	GuardWindow      time.Duration `env:"PIPELINE_GUARD_WINDOW" envDefault:"10m"`

	// FX fallback rate, used when no rate is published to redis.
	FXRate    float64 `env:"PIPELINE_FX_RATE"`
	FXRateKey string  `env:"PIPELINE_FX_RATE_KEY" envDefault:"fx:rate"`

	// Expected-price outlier band; both zero disables the check.
	PriceOutlierMin float64 `env:"PIPELINE_PRICE_OUTLIER_MIN"`
	PriceOutlierMax float64 `env:"PIPELINE_PRICE_OUTLIER_MAX"`

	// Case-insensitive substrings of acceptable region limits.
	RegionAllowlist []string `env:"PIPELINE_REGION_ALLOWLIST" envSeparator:"," envDefault:"free,global,worldwide,row"`

	SettingsKey string `env:"PIPELINE_SETTINGS_KEY" envDefault:"pipeline:settings"`
}

// Settings are the hot-reloadable runtime knobs.
type Settings struct {
	Concurrency      int `json:"concurrency"`
	BatchIntervalMs  int `json:"batch_interval_ms"`
	MaxRetries       int `json:"max_retries"`
	BaseDelayMs      int `json:"base_delay_ms"`
	RequestTimeoutMs int `json:"request_timeout_ms"`
}

func (p Pipeline) DefaultSettings() Settings {
	return Settings{
		Concurrency:      p.Concurrency,
		BatchIntervalMs:  p.BatchIntervalMs,
		MaxRetries:       p.MaxRetries,
		BaseDelayMs:      p.BaseDelayMs,
		RequestTimeoutMs: p.RequestTimeoutMs,
	}
}

const settingsCacheTTL = 5 * time.Second

// SettingsProvider serves the current runtime settings. Overrides are read
// from a redis JSON key through a short-lived in-process cache, so edits take
// effect between chunks without a restart.
type SettingsProvider struct {
	client   *redis.Client
	key      string
	defaults Settings
	cache    *cache.Cache
}

func NewSettingsProvider(client *redis.Client, pipeline Pipeline) *SettingsProvider {
	return &SettingsProvider{
		client:   client,
		key:      pipeline.SettingsKey,
		defaults: pipeline.DefaultSettings(),
		cache:    cache.New(settingsCacheTTL, time.Minute),
	}
}

func (p *SettingsProvider) Current(ctx context.Context) Settings {
	if cached, ok := p.cache.Get(p.key); ok {
		return cached.(Settings)
	}

	settings := p.defaults

	raw, err := p.client.Get(ctx, p.key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		logger(ctx).Warn("pipeline settings lookup failed, using defaults", logx.Error(err))
	default:
		var override Settings
		if err := json.Unmarshal(raw, &override); err != nil {
			logger(ctx).Warn("pipeline settings are malformed, using defaults", logx.Error(err))
		} else {
			settings = mergeSettings(p.defaults, override)
		}
	}

	p.cache.Set(p.key, settings, cache.DefaultExpiration)

	return settings
}

// mergeSettings overlays non-zero override fields onto the defaults.
func mergeSettings(defaults, override Settings) Settings {
	return Settings{
		Concurrency:      lo.CoalesceOrEmpty(override.Concurrency, defaults.Concurrency),
		BatchIntervalMs:  lo.CoalesceOrEmpty(override.BatchIntervalMs, defaults.BatchIntervalMs),
		MaxRetries:       lo.CoalesceOrEmpty(override.MaxRetries, defaults.MaxRetries),
		BaseDelayMs:      lo.CoalesceOrEmpty(override.BaseDelayMs, defaults.BaseDelayMs),
		RequestTimeoutMs: lo.CoalesceOrEmpty(override.RequestTimeoutMs, defaults.RequestTimeoutMs),
	}
}
