package config

import (
	"fmt"
	"os"
	"strings"
)

// Config holds everything the server needs to talk to its collaborators.
// All values come from the environment; there are no process-global clients.
type Config struct {
	// Port is the HTTP listen port.
	Port string

	// DatabasePath is the SQLite database file.
	DatabasePath string

	// Plaid API credentials and link defaults.
	PlaidClientID     string
	PlaidSecret       string
	PlaidEnvironment  string // "sandbox" or "production"
	PlaidProducts     []string
	PlaidCountryCodes []string
	PlaidClientName   string

	// Firebase identity verification.
	FirebaseProjectID       string
	FirebaseCredentialsFile string

	// Advice (LLM) endpoint.
	AdviceBaseURL string
	AdviceBackend string // "http" (default) or "gemini"
	GeminiModel   string
}

// Load reads configuration from the environment, applying defaults that match
// local development.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                    envOr("PORT", "8080"),
		DatabasePath:            envOr("DATABASE_PATH", "bankingInformation.db"),
		PlaidClientID:           os.Getenv("PLAID_CLIENT_ID"),
		PlaidSecret:             os.Getenv("PLAID_SECRET"),
		PlaidEnvironment:        envOr("PLAID_ENV", "sandbox"),
		PlaidProducts:           splitList(envOr("PLAID_PRODUCTS", "transactions")),
		PlaidCountryCodes:       splitList(envOr("PLAID_COUNTRY_CODES", "US")),
		PlaidClientName:         envOr("PLAID_CLIENT_NAME", "SSS Backend"),
		FirebaseProjectID:       envOr("FIREBASE_PROJECT_ID", "soft-serve-software"),
		FirebaseCredentialsFile: os.Getenv("FIREBASE_CREDENTIALS_FILE"),
		AdviceBaseURL:           envOr("ADVICE_BASE_URL", "http://127.0.0.1:8000"),
		AdviceBackend:           envOr("ADVICE_BACKEND", "http"),
		GeminiModel:             envOr("GEMINI_MODEL", "gemini-2.0-flash"),
	}

	switch cfg.AdviceBackend {
	case "http", "gemini":
	default:
		return nil, fmt.Errorf("config: unknown ADVICE_BACKEND %q", cfg.AdviceBackend)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
