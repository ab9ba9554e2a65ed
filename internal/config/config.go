package config

import (
	"time"

	pkgconfig "github.com/BoranPatron/tradeboard/pkg/config"
)

// Config holds all configuration for the application.
type Config struct {
	ServerPort int
	Env        string
	LogLevel   string

	// Marketplace API
	MarketplaceBaseURL string
	MarketplaceToken   string
	ActorID            int64

	// Refresh cadence and rate limiting
	RefreshInterval   time.Duration
	RequestsPerSecond float64
	RequestBurst      int

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NATSUrl       string
	DatabaseURL   string

	// Secrets
	AWSRegion  string
	UseAWSAuth bool
}

// Load creates a Config from environment variables with defaults.
func Load() *Config {
	return &Config{
		ServerPort: pkgconfig.GetEnvInt("SERVER_PORT", 8085),
		Env:        pkgconfig.GetEnv("APP_ENV", "dev"),
		LogLevel:   pkgconfig.GetEnv("LOG_LEVEL", "info"),

		MarketplaceBaseURL: pkgconfig.GetEnv("MARKETPLACE_BASE_URL", "http://localhost:8000/api/v1"),
		MarketplaceToken:   pkgconfig.GetEnv("MARKETPLACE_API_TOKEN", ""),
		ActorID:            int64(pkgconfig.GetEnvInt("ACTOR_ID", 0)),

		RefreshInterval:   pkgconfig.GetEnvDuration("REFRESH_INTERVAL", 15*time.Second),
		RequestsPerSecond: pkgconfig.GetEnvFloat("MARKETPLACE_RPS", 10),
		RequestBurst:      pkgconfig.GetEnvInt("MARKETPLACE_BURST", 20),

		RedisAddr:     pkgconfig.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: pkgconfig.GetEnv("REDIS_PASSWORD", ""),
		RedisDB:       pkgconfig.GetEnvInt("REDIS_DB", 0),
		NATSUrl:       pkgconfig.GetEnv("NATS_URL", ""),
		DatabaseURL:   pkgconfig.GetEnv("DATABASE_URL", ""),

		AWSRegion:  pkgconfig.GetEnv("AWS_REGION", "us-east-2"),
		UseAWSAuth: pkgconfig.GetEnvBool("USE_AWS_SECRETS", false),
	}
}
