package checkout

import (
	"os"
	"strings"
	"time"
)

// Config is a configuration for the checkout application.
type Config struct {
	HTTPAddr string
	// BackendBaseURL is the reservation backend consumed by the core flow.
	BackendBaseURL string
	// BackendToken is the session token of the logged-in identity, taken as
	// a given fact.
	BackendToken string
	// SuccessURL and FailureURL are the pages the callback redirects to.
	// The failure redirect carries code and message query parameters.
	SuccessURL string
	FailureURL string
	// PaymentMethod and Currency registered with the backend before the
	// gateway redirect.
	PaymentMethod string
	Currency      string
	// IntentTTL bounds how long a commitment may wait for the gateway
	// callback (redis backend only).
	IntentTTL time.Duration
	// KafkaBrokers enables settlement event publishing when non-empty.
	KafkaBrokers []string
	KafkaTopic   string
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:       "localhost:8080",
		BackendBaseURL: "http://localhost:9090",
		SuccessURL:     "/checkout/success",
		FailureURL:     "/checkout/fail",
		PaymentMethod:  "CARD",
		Currency:       "KRW",
		IntentTTL:      30 * time.Minute,
		KafkaTopic:     "checkout.settlements",
	}
}

// ConfigFromEnv builds a Config from environment variables, falling back to
// defaults.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.HTTPAddr = getenv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.BackendBaseURL = getenv("BACKEND_BASE_URL", cfg.BackendBaseURL)
	cfg.BackendToken = getenv("BACKEND_TOKEN", cfg.BackendToken)
	cfg.SuccessURL = getenv("SUCCESS_URL", cfg.SuccessURL)
	cfg.FailureURL = getenv("FAILURE_URL", cfg.FailureURL)
	cfg.PaymentMethod = getenv("PAYMENT_METHOD", cfg.PaymentMethod)
	cfg.Currency = getenv("CURRENCY", cfg.Currency)
	if ttl := getenv("INTENT_TTL", ""); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil && d > 0 {
			cfg.IntentTTL = d
		}
	}
	if brokers := getenv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	cfg.KafkaTopic = getenv("KAFKA_TOPIC", cfg.KafkaTopic)
	return cfg
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
