package config

import (
	"errors"
	"strings"

	"github.com/caarlos0/env/v11"
)

const (
	StoreBackendMemory   = "memory"
	StoreBackendPostgres = "postgres"
)

var (
	ErrUnknownStoreBackend = errors.New("unknown_store_backend")
	ErrMissingPostgresDSN  = errors.New("postgres_dsn_required")
)

type ServerConfig struct {
	HTTPAddr     string `env:"HTTP_ADDR" envDefault:":8080"`
	StoreBackend string `env:"STORE_BACKEND" envDefault:"memory"`
	PostgresDSN  string `env:"POSTGRES_DSN"`

	AdminAPIKey     string `env:"ADMIN_API_KEY"`
	MaxCaptureBytes int    `env:"MAX_CAPTURE_BYTES" envDefault:"4096"`

	MatchScanLimit  int `env:"MATCH_SCAN_LIMIT" envDefault:"50"`
	MaxParticipants int `env:"MAX_PARTICIPANTS" envDefault:"4"`
	KeyRetries      int `env:"KEY_RETRIES" envDefault:"6"`

	NotifyEnabled     bool   `env:"NOTIFY_ENABLED" envDefault:"false"`
	NotifyTargetsJSON string `env:"NOTIFY_TARGETS_JSON"`
	NotifyTargetsPath string `env:"NOTIFY_TARGETS_PATH"`
	NotifyWorkers     int    `env:"NOTIFY_WORKERS" envDefault:"2"`
	NotifyRetryMax    int    `env:"NOTIFY_RETRY_MAX" envDefault:"3"`
	NotifyRetryBaseMS int    `env:"NOTIFY_RETRY_BASE_MS" envDefault:"500"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	switch cfg.StoreBackend {
	case StoreBackendMemory:
	case StoreBackendPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return cfg, ErrMissingPostgresDSN
		}
	default:
		return cfg, ErrUnknownStoreBackend
	}
	return cfg, nil
}
