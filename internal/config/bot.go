package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type BotConfig struct {
	ServerURL       string        `env:"SERVER_URL" envDefault:"http://localhost:8080"`
	Session         string        `env:"SESSION"`
	GameType        string        `env:"GAME_TYPE" envDefault:"shutthebox"`
	Name            string        `env:"BOT_NAME" envDefault:"DumbBot"`
	ParticipantID   string        `env:"PARTICIPANT_ID"`
	IdentityTimeout time.Duration `env:"IDENTITY_TIMEOUT" envDefault:"10s"`
	Seed            int64         `env:"SEED" envDefault:"0"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
