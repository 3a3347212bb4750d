package config

import (
	"strings"

	"github.com/caarlos0/env/v11"
)

type LogConfig struct {
	Level       string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty      bool   `env:"LOG_PRETTY" envDefault:"false"`
	SampleEvery int    `env:"LOG_SAMPLE_EVERY" envDefault:"0"`
	File        string `env:"LOG_FILE"`
	MaxMB       int    `env:"LOG_MAX_MB" envDefault:"10"`
	Service     string `env:"LOG_SERVICE" envDefault:"lobbysync"`
}

// LoadLog reads the logging environment. The level is lowercased so
// LOG_LEVEL=DEBUG works.
func LoadLog() (LogConfig, error) {
	var cfg LogConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	cfg.Level = strings.ToLower(strings.TrimSpace(cfg.Level))
	if cfg.MaxMB < 0 {
		cfg.MaxMB = 0
	}
	return cfg, nil
}
