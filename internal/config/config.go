package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"dbmlviewer/internal/layout"
)

type Config struct {
	Port string

	DBHost          string
	DBPort          string
	DBUser          string
	DBPassword      string
	DBName          string
	DBAdminUser     string
	DBAdminPassword string

	AccessTokenSecret  string
	RefreshTokenSecret string

	RedisAddr     string
	CORSOrigins   []string
	SecureCookies bool

	LayoutDirection layout.Direction
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Could not read .env: %v", err)
	}

	cfg := &Config{
		Port:               getenv("PORT", "8080"),
		DBHost:             os.Getenv("DB_HOST"),
		DBPort:             getenv("DB_PORT", "5432"),
		DBUser:             os.Getenv("DB_USERNAME"),
		DBPassword:         os.Getenv("DB_PASSWORD"),
		DBName:             os.Getenv("DB_DATABASE"),
		DBAdminUser:        os.Getenv("DB_ADMIN_USER"),
		DBAdminPassword:    os.Getenv("DB_ADMIN_PASSWORD"),
		AccessTokenSecret:  os.Getenv("ACCESS_TOKEN_SECRET"),
		RefreshTokenSecret: os.Getenv("REFRESH_TOKEN_SECRET"),
		RedisAddr:          getenv("REDIS_ADDR", "localhost:6379"),
		CORSOrigins:        splitList(getenv("CORS_ORIGINS", "http://localhost:5173")),
		SecureCookies:      !strings.EqualFold(os.Getenv("COOKIE_SECURE"), "false"),
	}

	dir, err := layout.ParseDirection(getenv("LAYOUT_DIRECTION", string(layout.LeftRight)))
	if err != nil {
		return nil, fmt.Errorf("LAYOUT_DIRECTION: %w", err)
	}
	cfg.LayoutDirection = dir
	return cfg, nil
}

// Validate checks the settings the API server cannot start without.
func (c *Config) Validate() error {
	required := []struct{ name, value string }{
		{"DB_HOST", c.DBHost},
		{"DB_USERNAME", c.DBUser},
		{"DB_PASSWORD", c.DBPassword},
		{"DB_DATABASE", c.DBName},
		{"ACCESS_TOKEN_SECRET", c.AccessTokenSecret},
		{"REFRESH_TOKEN_SECRET", c.RefreshTokenSecret},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s environment variable is required", r.name)
		}
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
