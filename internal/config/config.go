package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the service.
type Config struct {
	Port        string
	Env         string
	ServiceName string

	// Document store
	StoreBackend      string // memory, postgres or dynamodb
	DatabaseURL       string
	DynamoRegion      string
	DynamoTablePrefix string
	RedisURL          string // change feed across instances; in-process when empty

	// Identity tokens
	AuthSecret   string
	AuthIssuer   string
	AuthAudience string

	// Events
	AMQPURL      string
	AMQPExchange string

	OTLPEndpoint   string
	AllowedOrigins []string
	DebugRoutes    bool
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8083"),
		Env:               getEnv("ENV", "development"),
		ServiceName:       getEnv("SERVICE_NAME", "dm-service"),
		StoreBackend:      strings.ToLower(getEnv("STORE_BACKEND", "memory")),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		DynamoRegion:      getEnv("DYNAMO_REGION", "us-east-1"),
		DynamoTablePrefix: os.Getenv("DYNAMO_TABLE_PREFIX"),
		RedisURL:          os.Getenv("REDIS_URL"),
		AuthSecret:        os.Getenv("AUTH_SECRET"),
		AuthIssuer:        os.Getenv("AUTH_ISSUER"),
		AuthAudience:      os.Getenv("AUTH_AUDIENCE"),
		AMQPURL:           os.Getenv("AMQP_URL"),
		AMQPExchange:      getEnv("AMQP_EXCHANGE", "dm.events"),
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		DebugRoutes:       getEnv("DEBUG_ROUTES", "false") == "true",
	}

	origins := getEnv("ALLOWED_ORIGINS", "*")
	for _, origin := range strings.Split(origins, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	if cfg.Env == "production" {
		if cfg.AuthSecret == "" {
			panic("AUTH_SECRET is required in production")
		}
		if cfg.StoreBackend == "postgres" && cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required for the postgres store")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}
