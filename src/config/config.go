package config

import (
	"fmt"
	"os"

	"github.com/camppoll/camppoll/src/data"
	"gorm.io/gorm"
)

// Config holds process-level configuration. Values come from the settings
// table when present, with environment variables as fallback.
type Config struct {
	Token    string
	MySQLDSN string
	RedisURL string
}

// Load reads settings from the database and resolves the runtime config.
func Load(db *gorm.DB) (*Config, error) {
	if err := data.LoadSettings(db); err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	cfg := &Config{}

	cfg.Token = data.GetSetting("discord_token")
	if cfg.Token == "" {
		cfg.Token = os.Getenv("DISCORD_TOKEN")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord token not configured (settings.discord_token or DISCORD_TOKEN)")
	}

	cfg.RedisURL = data.GetSetting("redis_url")
	if cfg.RedisURL == "" {
		cfg.RedisURL = os.Getenv("REDIS_URL")
	}

	return cfg, nil
}
