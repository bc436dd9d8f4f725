package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	ListenAddr string

	StoreBackend string
	RedisURL     string
	DatabaseURL  string

	IdentityMode    string
	JWTSecret       string
	IdentityURL     string
	IdentityTimeout time.Duration

	RelayRatePerSec float64
	RelayRateBurst  int
	SendQueueSize   int

	MessagesFile   string
	AllowedOrigins []string
	MetricsEnabled bool
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:      ":8080",
		StoreBackend:    "redis",
		IdentityMode:    "jwt",
		IdentityTimeout: 3 * time.Second,
		RelayRateBurst:  10,
		SendQueueSize:   32,
		MetricsEnabled:  true,
	}

	if v := env("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := env("STORE_BACKEND"); v != "" {
		cfg.StoreBackend = strings.ToLower(v)
	}
	cfg.RedisURL = env("REDIS_URL")
	cfg.DatabaseURL = env("DATABASE_URL")

	if v := env("IDENTITY_MODE"); v != "" {
		cfg.IdentityMode = strings.ToLower(v)
	}
	cfg.JWTSecret = env("JWT_SECRET")
	cfg.IdentityURL = env("IDENTITY_URL")
	if v := env("IDENTITY_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.IdentityTimeout = time.Duration(n) * time.Millisecond
		}
	}

	if v := env("RELAY_RATE_PER_SEC"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.RelayRatePerSec = f
		}
	}
	if v := env("RELAY_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RelayRateBurst = n
		}
	}
	if v := env("SEND_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SendQueueSize = n
		}
	}

	cfg.MessagesFile = env("MESSAGES_FILE")
	cfg.AllowedOrigins = splitList(env("ALLOWED_ORIGINS"))
	if v := env("METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MetricsEnabled = b
		}
	}

	switch cfg.StoreBackend {
	case "redis":
		if cfg.RedisURL == "" {
			return nil, errors.New("REDIS_URL is required")
		}
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required")
		}
	case "memory":
	default:
		return nil, fmt.Errorf("STORE_BACKEND must be redis, postgres or memory (got %q)", cfg.StoreBackend)
	}

	switch cfg.IdentityMode {
	case "jwt":
		if cfg.JWTSecret == "" {
			return nil, errors.New("JWT_SECRET is required")
		}
	case "remote":
		if cfg.IdentityURL == "" {
			return nil, errors.New("IDENTITY_URL is required")
		}
	default:
		return nil, fmt.Errorf("IDENTITY_MODE must be jwt or remote (got %q)", cfg.IdentityMode)
	}

	return cfg, nil
}

func env(k string) string { return strings.TrimSpace(os.Getenv(k)) }

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
