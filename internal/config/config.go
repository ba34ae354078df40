package config

import (
	"os"
	"strings"
)

type AppConfig struct {
	HTTPAddr  string
	JWTSecret string

	RedisAddr string
	RedisPass string

	// StoreBackend selects the ledger store: postgres, mongo or memory.
	StoreBackend string
	MongoURI     string
	MongoDB      string

	// KafkaBrokers enables the transaction event publisher when non-empty.
	KafkaBrokers []string
}

func Load() AppConfig {
	return AppConfig{
		HTTPAddr:     getEnv("HTTP_ADDR", ":8030"),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		RedisAddr:    getEnv("REDIS_ADDR", "redis:6379"),
		RedisPass:    getEnv("REDIS_PASS", ""),
		StoreBackend: getEnv("LEDGER_STORE", "postgres"),
		MongoURI:     getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDB:      getEnv("MONGODB_DB", "ledger"),
		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
