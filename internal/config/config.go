package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App         App
	HTTP        HTTP
	Postgres    Postgres
	Redis       Redis
	Supplier    Supplier
	Marketplace Marketplace
	Pipeline    Pipeline
}

type App struct {
	Name          string `env:"APP_NAME" envDefault:"catalog-sync"`
	Version       string `env:"APP_VERSION" envDefault:"dev"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	ProbeAddress  string `env:"PROBE_LISTEN_ADDRESS" envDefault:":8081"`
	MetricAddress string `env:"METRIC_LISTEN_ADDRESS" envDefault:":9090"`
}

type HTTP struct {
	ListenAddress   string `env:"HTTP_LISTEN_ADDRESS" envDefault:":8080"`
	ShutdownTimeout int    `env:"HTTP_SHUTDOWN_TIMEOUT_SEC" envDefault:"10"`
	LogFieldMaxLen  int    `env:"HTTP_LOG_FIELD_MAX_LEN" envDefault:"2048"`
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var config Config

	if err := env.Parse(&config); err != nil {
		return Config{}, fmt.Errorf("env.Parse: %w", err)
	}

	return config, nil
}
