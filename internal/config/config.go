package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"paypiece/internal/onlinepay"
	"paypiece/internal/plugin"
)

type Config struct {
	Env       string
	HTTPAddr  string
	PublicURL string // base URL shown in webhook instructions
	FlowsDir  string

	HTTPTimeout time.Duration

	LogLevel string
	LogFile  string

	// Connections keyed by piece name.
	Connections map[string]plugin.Connection
}

// Load reads .env files (missing ones are ignored) and then the process
// environment. Variables already set in the environment win over files.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	cfg := Config{
		Env:         env("PAYPIECE_ENV", "dev"),
		HTTPAddr:    env("PAYPIECE_HTTP_ADDR", ":8080"),
		PublicURL:   env("PAYPIECE_PUBLIC_URL", "http://localhost:8080"),
		FlowsDir:    env("PAYPIECE_FLOWS_DIR", "./flows"),
		HTTPTimeout: envDur("PAYPIECE_HTTP_TIMEOUT_SEC", 30) * time.Second,
		LogLevel:    env("LOG_LEVEL", "info"),
		LogFile:     env("LOG_FILE", ""),
		Connections: map[string]plugin.Connection{
			"onlinepay": onlinePayConnection(),
		},
	}
	return cfg, nil
}

func onlinePayConnection() plugin.Connection {
	return plugin.Connection{
		onlinepay.FieldUserID:          env("ONLINEPAY_USER_ID", ""),
		onlinepay.FieldAPIKey:          env("ONLINEPAY_API_KEY", ""),
		onlinepay.FieldOrgID:           env("ONLINEPAY_ORG_ID", ""),
		onlinepay.FieldPaymentContract: env("ONLINEPAY_PAYMENT_CONTRACT_ID", ""),
		onlinepay.FieldThreeDSecure:    env("ONLINEPAY_3DS_CONTRACT_ID", ""),
		onlinepay.FieldCurrencyCode:    env("ONLINEPAY_CURRENCY_CODE", onlinepay.DefaultCurrency),
		onlinepay.FieldEnvironment:     onlinepay.ResolveEnvironment(env("ONLINEPAY_ENVIRONMENT", "production")),
	}
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i)
		}
	}
	return time.Duration(def)
}
