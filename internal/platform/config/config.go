package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration for the onboarding engine.
type Server struct {
	Addr string

	// PostgresDSN enables the durable party/response store and the audit
	// outbox when set. Empty means memory stores (development mode).
	PostgresDSN string

	// RedisURL enables session snapshot persistence across reloads.
	RedisURL string

	// KafkaBrokers and KafkaTopic configure the flow event sink. Empty
	// brokers disable the outbox relay.
	KafkaBrokers []string
	KafkaTopic   string

	// Upstream base URLs. Defaults point at the local mock services under
	// mocks/, so a bare `go run ./cmd/server` works in development.
	PartyStoreURL  string
	CatalogURL     string
	DocumentAPIURL string

	// SessionTTL bounds how long an abandoned session snapshot survives.
	SessionTTL time.Duration
}

// DefaultSessionTTL keeps abandoned sessions resumable for a month, matching
// the retention of the upstream document requests.
const DefaultSessionTTL = 30 * 24 * time.Hour

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("ONBOARD_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	topic := os.Getenv("ONBOARD_KAFKA_TOPIC")
	if topic == "" {
		topic = "onboarding.flow-events"
	}

	var brokers []string
	if raw := os.Getenv("ONBOARD_KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	ttl := DefaultSessionTTL
	if raw := os.Getenv("ONBOARD_SESSION_TTL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			ttl = parsed
		}
	}

	return Server{
		Addr:           addr,
		PostgresDSN:    os.Getenv("ONBOARD_POSTGRES_DSN"),
		RedisURL:       os.Getenv("ONBOARD_REDIS_URL"),
		KafkaBrokers:   brokers,
		KafkaTopic:     topic,
		SessionTTL:     ttl,
		PartyStoreURL:  envOr("ONBOARD_PARTY_STORE_URL", "http://localhost:9090"),
		CatalogURL:     envOr("ONBOARD_CATALOG_URL", "http://localhost:9090"),
		DocumentAPIURL: envOr("ONBOARD_DOCUMENT_API_URL", "http://localhost:9091"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
