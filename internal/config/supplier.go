package config

import "time"

type Supplier struct {
	BaseURL        string        `env:"SUPPLIER_BASE_URL,notEmpty"`
	APIKey         string        `env:"SUPPLIER_API_KEY" json:"-"`
	RequestTimeout time.Duration `env:"SUPPLIER_REQUEST_TIMEOUT" envDefault:"30s"`
}
