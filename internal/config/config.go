// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds everything the service reads from the environment.
type Config struct {
	Port         string
	DatabaseURL  string
	RedisAddr    string
	RedisPass    string
	AppURL       string
	DashboardURL string

	ShopifyAPIKey     string
	ShopifyAPISecret  string
	ShopifyScopes     string
	ShopifyAPIVersion string
	BillingTestMode   bool

	StatusCheckInterval time.Duration
}

// Load reads the environment into a Config, applying defaults for optional
// values and failing fast on missing secrets.
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getenv("PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisAddr:         getenv("REDIS_ADDR", "localhost:6379"),
		RedisPass:         os.Getenv("REDIS_PASSWORD"),
		AppURL:            getenv("APP_URL", "http://localhost:8080"),
		DashboardURL:      getenv("DASHBOARD_URL", "http://localhost:3000/dashboard"),
		ShopifyAPIKey:     os.Getenv("SHOPIFY_API_KEY"),
		ShopifyAPISecret:  os.Getenv("SHOPIFY_API_SECRET"),
		ShopifyScopes:     getenv("SHOPIFY_SCOPES", "read_products,read_orders"),
		ShopifyAPIVersion: getenv("SHOPIFY_API_VERSION", "2024-01"),
		BillingTestMode:   os.Getenv("SHOPIFY_BILLING_TEST") == "true",
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.ShopifyAPIKey == "" || cfg.ShopifyAPISecret == "" {
		return nil, fmt.Errorf("SHOPIFY_API_KEY and SHOPIFY_API_SECRET are required")
	}

	interval := getenv("STATUS_CHECK_INTERVAL", "1h")
	d, err := time.ParseDuration(interval)
	if err != nil {
		return nil, fmt.Errorf("invalid STATUS_CHECK_INTERVAL %q: %w", interval, err)
	}
	cfg.StatusCheckInterval = d

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
