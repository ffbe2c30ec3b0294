package server

import (
	"os"
	"time"
)

// Config holds daemon configuration.
type Config struct {
	HTTPAddr     string
	MetricsAddr  string
	AdminToken   string
	DatabaseURL  string
	PollInterval time.Duration
	FetchTimeout time.Duration
}

// LoadConfig reads environment variables and returns a Config
func LoadConfig() *Config {
	return &Config{
		HTTPAddr:     getEnv("FG_HTTP_ADDR", ":8080"),
		MetricsAddr:  getEnv("FG_METRICS_ADDR", ":9090"),
		AdminToken:   getEnv("FG_ADMIN_TOKEN", ""),
		DatabaseURL:  getEnv("FG_DATABASE_URL", ""),
		PollInterval: getDuration("FG_POLL_INTERVAL", time.Minute),
		FetchTimeout: getDuration("FG_FETCH_TIMEOUT", 30*time.Second),
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
