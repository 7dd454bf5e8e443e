package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string `env:"BUSROLL_HTTP_ADDR" envDefault:":8080"`
	GRPCAddr string `env:"BUSROLL_GRPC_ADDR" envDefault:":9090"`

	// Storage
	Env          string        `env:"BUSROLL_ENV" envDefault:"dev"`                  // "dev" | "prod"
	Store        string        `env:"BUSROLL_STORE" envDefault:"sqlite"`             // "sqlite" | "memory"
	DBPath       string        `env:"BUSROLL_DB_PATH" envDefault:"./data/busroll.db"`
	StoreTimeout time.Duration `env:"BUSROLL_STORE_TIMEOUT" envDefault:"5s"`

	// Calendar days for attendance and summaries
	Timezone string `env:"BUSROLL_TIMEZONE" envDefault:"UTC"`

	// Identity
	MatchThreshold        float64       `env:"BUSROLL_MATCH_THRESHOLD" envDefault:"0.55"`
	IndexMinEntries       int           `env:"BUSROLL_INDEX_MIN_ENTRIES" envDefault:"2000"` // <0 disables the ANN index
	GalleryDir            string        `env:"BUSROLL_GALLERY_DIR" envDefault:"./data/gallery"`
	GalleryCache          string        `env:"BUSROLL_GALLERY_CACHE" envDefault:"./data/gallery.gob"`
	GalleryRefreshMinutes int           `env:"BUSROLL_GALLERY_REFRESH_MINUTES" envDefault:"60"` // 0 = only on registry changes
	EncoderURL            string        `env:"BUSROLL_ENCODER_URL" envDefault:"http://localhost:8000"`
	EncoderTimeout        time.Duration `env:"BUSROLL_ENCODER_TIMEOUT" envDefault:"30s"`
	ImageMaxSize          int           `env:"BUSROLL_IMAGE_MAX_SIZE" envDefault:"800"`
}

func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	if cfg.Env != "dev" && cfg.Env != "prod" {
		// fail-soft: treat unknown as dev
		cfg.Env = "dev"
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Store != "sqlite" && c.Store != "memory" {
		return fmt.Errorf("BUSROLL_STORE must be sqlite or memory, got %q", c.Store)
	}
	if c.Store == "sqlite" && strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("BUSROLL_DB_PATH is required for the sqlite store")
	}
	if c.MatchThreshold <= 0 {
		return fmt.Errorf("BUSROLL_MATCH_THRESHOLD must be positive, got %v", c.MatchThreshold)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("BUSROLL_STORE_TIMEOUT must be positive, got %s", c.StoreTimeout)
	}
	if c.GalleryRefreshMinutes < 0 {
		return fmt.Errorf("BUSROLL_GALLERY_REFRESH_MINUTES must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("BUSROLL_TIMEZONE: %w", err)
	}
	return loc, nil
}
