// Package pricing derives a marketplace listing price from a supplier price.
// The derivation is a pure function of its inputs: no I/O, no clock, no
// randomness.
package pricing

import "math"

// FeeTier maps a source-price ceiling to the supplier fee charged below it.
// Tiers are evaluated in order; the first tier whose MaxPrice covers the
// source price wins.
type FeeTier struct {
	MaxPrice float64
	Fee      float64
}

// MarginTier maps a computed-cost ceiling (in target currency) to the margin
// applied below it.
type MarginTier struct {
	MaxCost float64
	Margin  float64
}

// Config is the full derivation policy. All thresholds are configuration,
// not code.
type Config struct {
	FeeTiers    []FeeTier
	FallbackFee float64

	MarginTiers    []MarginTier
	FallbackMargin float64

	// LowPriceBoost is added when the margined price is still below
	// LowPriceThreshold.
	LowPriceThreshold float64
	LowPriceBoost     float64

	// Compensation covers the marketplace's own fee.
	Compensation float64
}

// DefaultConfig returns the production derivation policy.
func DefaultConfig() Config {
	return Config{
		FeeTiers: []FeeTier{
			{MaxPrice: 3, Fee: 0.80},
			{MaxPrice: 10, Fee: 1.80},
			{MaxPrice: 50, Fee: 3.50},
			{MaxPrice: 100, Fee: 6.00},
		},
		FallbackFee: 10.00,

		MarginTiers: []MarginTier{
			{MaxCost: 3500, Margin: 0.75},
		},
		FallbackMargin: 0.30,

		LowPriceThreshold: 9990,
		LowPriceBoost:     700,

		Compensation: 1.19,
	}
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Derive converts a positive source price into a target-currency listing
// price using the given FX rate. It reports ok=false instead of failing when
// the inputs are unusable.
func (e *Engine) Derive(price, rate float64) (int64, bool) {
	if price <= 0 || rate <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, false
	}

	cost := (price + e.fee(price)) * rate

	final := cost * (1 + e.margin(cost))

	if final < e.cfg.LowPriceThreshold {
		final += e.cfg.LowPriceBoost
	}

	final *= e.cfg.Compensation

	return roundPsychological(final), true
}

func (e *Engine) fee(price float64) float64 {
	for _, tier := range e.cfg.FeeTiers {
		if tier.MaxPrice >= price {
			return tier.Fee
		}
	}

	return e.cfg.FallbackFee
}

func (e *Engine) margin(cost float64) float64 {
	for _, tier := range e.cfg.MarginTiers {
		if cost < tier.MaxCost {
			return tier.Margin
		}
	}

	return e.cfg.FallbackMargin
}

// roundPsychological rounds up to the next thousand and steps back to the
// conventional "...990" ending.
func roundPsychological(v float64) int64 {
	return int64(math.Ceil(v/1000))*1000 - 10
}
