package config

import "time"

type Marketplace struct {
	BaseURL        string        `env:"MARKETPLACE_BASE_URL,notEmpty"`
	UserID         string        `env:"MARKETPLACE_USER_ID,notEmpty"`
	TokenKey       string        `env:"MARKETPLACE_TOKEN_KEY" envDefault:"marketplace:token"`
	RequestTimeout time.Duration `env:"MARKETPLACE_REQUEST_TIMEOUT" envDefault:"30s"`

	// Absolute listing price bounds in target currency.
	MinPrice int64 `env:"MARKETPLACE_MIN_PRICE" envDefault:"990"`
	MaxPrice int64 `env:"MARKETPLACE_MAX_PRICE" envDefault:"10000000"`
}
