package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config — конфигурация сервиса из переменных окружения.
type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	NATSURL         string `env:"NATS_URL" envDefault:"nats://localhost:4223"`
	StanClusterID   string `env:"STAN_CLUSTER_ID" envDefault:"commerce-cluster"`
	StanClientID    string `env:"STAN_CLIENT_ID"`
	CartSubject     string `env:"CART_SUBJECT" envDefault:"commerce.cart.updated"`
	CurrencySubject string `env:"CURRENCY_SUBJECT" envDefault:"commerce.currency.changed"`

	IPDataAPIKey  string `env:"IPDATA_API_KEY"`
	IPDataURL     string `env:"IPDATA_URL"`
	FXRatesAPIKey string `env:"FXRATES_API_KEY"`
	FXRatesURL    string `env:"FXRATES_URL"`
}

// Load — разбор окружения в Config.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}
