// Package config loads runtime settings from the environment. An .env file,
// when present, is loaded by the caller before New runs.
package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Port     string
	MongoURI string
	MongoDB  string

	RedisAddr     string
	RedisPassword string

	GatewayBaseURL       string
	GatewayKeyID         string
	GatewayKeySecret     string
	GatewayWebhookSecret string

	// AcceptAuthorized materializes donations on authorized payments as
	// well as captured ones.
	AcceptAuthorized bool

	// MongoTransactions enables session transactions; needs a replica set.
	MongoTransactions bool

	// RateLimitPerMinute caps webhook and verify calls per client IP.
	// Zero disables the limiter.
	RateLimitPerMinute int
}

func New() (*Config, error) {
	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		MongoURI:             os.Getenv("MONGODB_URI"),
		MongoDB:              getEnv("MONGODB_DATABASE", "sevasetu"),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		GatewayBaseURL:       getEnv("GATEWAY_BASE_URL", "https://api.razorpay.com"),
		GatewayKeyID:         os.Getenv("GATEWAY_KEY_ID"),
		GatewayKeySecret:     os.Getenv("GATEWAY_KEY_SECRET"),
		GatewayWebhookSecret: os.Getenv("GATEWAY_WEBHOOK_SECRET"),
		AcceptAuthorized:     getEnvBool("ACCEPT_AUTHORIZED", false),
		MongoTransactions:    getEnvBool("MONGO_TRANSACTIONS", false),
		RateLimitPerMinute:   getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
	}

	for name, v := range map[string]string{
		"MONGODB_URI":            cfg.MongoURI,
		"GATEWAY_KEY_ID":         cfg.GatewayKeyID,
		"GATEWAY_KEY_SECRET":     cfg.GatewayKeySecret,
		"GATEWAY_WEBHOOK_SECRET": cfg.GatewayWebhookSecret,
	} {
		if v == "" {
			return nil, fmt.Errorf("missing required environment variable %s", name)
		}
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
