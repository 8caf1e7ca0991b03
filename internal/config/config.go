package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultDSN         = "host=localhost user=postgres password=postgres dbname=pos port=5432 sslmode=disable"
	defaultCORSOrigins = "http://localhost:5173"
)

type Config struct {
	HTTPPort    string
	DBDriver    string // postgres | sqlite
	DatabaseDSN string
	DBDebug     bool
	Migrations  bool // run embedded SQL migrations instead of AutoMigrate
	CORSOrigins string
	LogLevel    string

	ProductImagePath string // downloaded product images, served under /uploads

	EnrichmentURL      string // empty disables the external lookup
	EnrichmentTimeout  time.Duration
	RedisAddr          string // empty disables the lookup cache
	EnrichmentCacheTTL time.Duration
}

// Load reads the configuration from the environment. Call godotenv.Load first
// if a .env file should be honoured.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		DBDriver:         strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DatabaseDSN:      getEnv("DATABASE_DSN", defaultDSN),
		DBDebug:          ParseBool("DB_DEBUG", false),
		Migrations:       ParseBool("MIGRATIONS", false),
		CORSOrigins:      getEnv("CORS_ALLOWED_ORIGINS", defaultCORSOrigins),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		ProductImagePath: getEnv("PRODUCT_IMAGE_PATH", "./uploads"),
		EnrichmentURL:    strings.TrimRight(getEnv("ENRICHMENT_URL", ""), "/"),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
	}

	var err error
	if cfg.EnrichmentTimeout, err = parseDuration("ENRICHMENT_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.EnrichmentCacheTTL, err = parseDuration("ENRICHMENT_CACHE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	switch cfg.DBDriver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", cfg.DBDriver)
	}
	if cfg.Migrations && cfg.DBDriver != "postgres" {
		return nil, fmt.Errorf("MIGRATIONS is only supported with the postgres driver")
	}

	if cfg.DBDriver == "postgres" && cfg.DatabaseDSN == defaultDSN {
		slog.Warn("DATABASE_DSN not set, using the local development default")
	}
	if cfg.CORSOrigins == defaultCORSOrigins {
		slog.Warn("CORS_ALLOWED_ORIGINS not set, allowing the local frontend only", "origin", defaultCORSOrigins)
	}

	return cfg, nil
}

// Origins splits the comma separated CORS origin list.
func (c *Config) Origins() []string {
	parts := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ParseBool reads an env var as bool with default.
func ParseBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("invalid boolean in environment", "key", key, "value", v)
			return def
		}
		return b
	}
	return def
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
