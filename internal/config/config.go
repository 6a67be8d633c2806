// Package config loads settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"point-matcher/internal/calculator"
	"point-matcher/internal/source"
)

type Config struct {
	Port           string
	LogLevel       string
	LogFormat      string
	HasHeader      bool
	Delimiter      string
	LatColumn      int
	LonColumn      int
	DistanceMethod string
	Workers        int
	UploadDir      string
	OutputDir      string
	LoginUser      string
	LoginPass      string
	SessionSecret  string
}

// Load reads .env (if any) and then the process environment.
func Load(envFiles ...string) (*Config, error) {
	// a missing .env is normal outside local runs
	_ = godotenv.Load(envFiles...)

	cfg := &Config{
		Port:           getEnv("PORT", "9595"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		Delimiter:      getEnv("DELIMITER", ","),
		DistanceMethod: getEnv("DISTANCE_METHOD", "haversine"),
		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		OutputDir:      getEnv("OUTPUT_DIR", "output"),
		LoginUser:      getEnv("LOGIN_USER", "user"),
		LoginPass:      os.Getenv("LOGIN_PASS"),
		SessionSecret:  getEnv("SESSION_SECRET", "point-matcher-session-secret"),
	}

	var err error
	if cfg.HasHeader, err = getBool("HAS_HEADER", true); err != nil {
		return nil, err
	}
	if cfg.LatColumn, err = getInt("LAT_COLUMN", 0); err != nil {
		return nil, err
	}
	if cfg.LonColumn, err = getInt("LON_COLUMN", 1); err != nil {
		return nil, err
	}
	if cfg.Workers, err = getInt("WORKERS", runtime.NumCPU()); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that can also be set from flags.
func (c *Config) Validate() error {
	if _, ok := calculator.DistanceByName(c.DistanceMethod); !ok {
		return fmt.Errorf("config: unknown DISTANCE_METHOD %q", c.DistanceMethod)
	}
	if _, err := source.ParseDelimiter(c.Delimiter); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.LatColumn < 0 || c.LonColumn < 0 || c.LatColumn == c.LonColumn {
		return fmt.Errorf("config: invalid columns lat=%d lon=%d", c.LatColumn, c.LonColumn)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Layout returns the row layout for coordinate sources.
func (c *Config) Layout() source.Layout {
	return source.Layout{HasHeader: c.HasHeader, LatColumn: c.LatColumn, LonColumn: c.LonColumn}
}

// Distance returns the configured DistanceFunc. Validate guarantees it exists.
func (c *Config) Distance() calculator.DistanceFunc {
	f, _ := calculator.DistanceByName(c.DistanceMethod)
	return f
}

// AuthEnabled reports whether the HTTP server requires a login.
func (c *Config) AuthEnabled() bool {
	return c.LoginPass != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}
