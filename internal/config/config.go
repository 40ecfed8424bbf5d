package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Core
	BotToken string `env:"BOT_TOKEN,required"`

	// Verification gateway (SubGram-compatible API)
	GatewayURL string `env:"GATEWAY_API_URL,required"`
	GatewayKey string `env:"GATEWAY_API_KEY,required"`

	// Ledger snapshot
	SnapshotPath string `env:"SNAPSHOT_PATH" envDefault:"users_data.json"`

	// Admin
	AdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`

	// Support contact shown in the bot
	SupportHandle string `env:"SUPPORT_HANDLE" envDefault:"support"`
}

func Load() (*Config, error) {
	// Optional .env for local runs; real deployments set the environment.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}
