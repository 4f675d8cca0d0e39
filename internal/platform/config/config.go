package config

import (
	"os"
	"strings"
	"time"
)

// Config captures process-level configuration so main stays lean.
type Config struct {
	// OpsAddr serves /healthz, /metrics and the read-only dashboard routes.
	OpsAddr string

	// JWTSigningKey protects the dashboard routes when set. Empty leaves
	// them open (development).
	JWTSigningKey string

	// DatabaseURL is the Postgres connection string. Empty means run on the
	// in-memory stores (development/tests).
	DatabaseURL string

	// RedisURL enables the dashboard count cache when set.
	RedisURL string

	// KafkaBrokers enables audit fan-out to Kafka when non-empty.
	KafkaBrokers []string
	KafkaTopic   string

	// DashboardCacheTTL bounds staleness of cached status counts.
	DashboardCacheTTL time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		OpsAddr:           envOr("VERIDATA_OPS_ADDR", ":9090"),
		JWTSigningKey:     os.Getenv("VERIDATA_JWT_SIGNING_KEY"),
		DatabaseURL:       os.Getenv("VERIDATA_DATABASE_URL"),
		RedisURL:          os.Getenv("VERIDATA_REDIS_URL"),
		KafkaTopic:        os.Getenv("VERIDATA_KAFKA_AUDIT_TOPIC"),
		DashboardCacheTTL: 30 * time.Second,
	}
	if brokers := os.Getenv("VERIDATA_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	if ttl := os.Getenv("VERIDATA_DASHBOARD_CACHE_TTL"); ttl != "" {
		if parsed, err := time.ParseDuration(ttl); err == nil {
			cfg.DashboardCacheTTL = parsed
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
