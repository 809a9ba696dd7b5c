// Copyright 2024-2026 Aiku AI

package bridge

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/aiku/pipebridge/pkg/bridge/ident"
)

// Config holds the bridge configuration. Values come from the YAML config
// file, with environment variables (PIPEBRIDGE_*) taking precedence so
// container deployments can inject secrets without touching the file.
type Config struct {
	Database DatabaseConfig `yaml:"database" envPrefix:"PIPEBRIDGE_DB_"`
	Logging  LoggingConfig  `yaml:"logging" envPrefix:"PIPEBRIDGE_LOG_"`

	OneBot     OneBotConfig     `yaml:"onebot" envPrefix:"PIPEBRIDGE_ONEBOT_"`
	Telegram   TelegramConfig   `yaml:"telegram" envPrefix:"PIPEBRIDGE_TELEGRAM_"`
	Discord    DiscordConfig    `yaml:"discord" envPrefix:"PIPEBRIDGE_DISCORD_"`
	Mattermost MattermostConfig `yaml:"mattermost" envPrefix:"PIPEBRIDGE_MATTERMOST_"`
	Matrix     MatrixConfig     `yaml:"matrix" envPrefix:"PIPEBRIDGE_MATRIX_"`

	// Pipes seeds the routing table at startup; pipes created at runtime
	// live only in the database.
	Pipes []PipeConfig `yaml:"pipes"`
}

// DatabaseConfig selects the shared persistent store backing the
// correlation, cache and pipe tables.
type DatabaseConfig struct {
	// Type is the dbutil dialect: "sqlite3" or "postgres".
	Type string `yaml:"type" env:"TYPE"`
	URI  string `yaml:"uri" env:"URI"`
}

type LoggingConfig struct {
	// Level is a zerolog level name: trace, debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
}

type OneBotConfig struct {
	// URL is the forward WebSocket endpoint of the OneBot implementation.
	URL         string `yaml:"url" env:"URL"`
	AccessToken string `yaml:"access_token" env:"ACCESS_TOKEN"`
}

type TelegramConfig struct {
	Token string `yaml:"token" env:"TOKEN"`
}

type DiscordConfig struct {
	Token string `yaml:"token" env:"TOKEN"`
}

type MattermostConfig struct {
	ServerURL string `yaml:"server_url" env:"SERVER_URL"`
	Token     string `yaml:"token" env:"TOKEN"`
}

type MatrixConfig struct {
	HomeserverURL string `yaml:"homeserver_url" env:"HOMESERVER_URL"`
	UserID        string `yaml:"user_id" env:"USER_ID"`
	AccessToken   string `yaml:"access_token" env:"ACCESS_TOKEN"`
}

// PipeConfig declares one routing edge in the config file.
type PipeConfig struct {
	Listen ident.Target `yaml:"listen"`
	Target ident.Target `yaml:"target"`
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	return node.Decode((*rawConfig)(c))
}

// PostProcess validates the configuration and fills defaults.
func (c *Config) PostProcess() error {
	if c.Database.Type == "" {
		c.Database.Type = "sqlite3"
	}
	switch c.Database.Type {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}
	if c.Database.URI == "" {
		c.Database.URI = "pipebridge.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	for i, pipe := range c.Pipes {
		if pipe.Listen.Adapter == "" || pipe.Listen.ID == "" ||
			pipe.Target.Adapter == "" || pipe.Target.ID == "" {
			return fmt.Errorf("pipe %d: listen and target need adapter and id", i)
		}
	}
	return nil
}

// LoadConfig reads the YAML file at path (skipped if empty or missing),
// applies environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}
	if err := cfg.PostProcess(); err != nil {
		return nil, fmt.Errorf("failed to post-process config: %w", err)
	}
	return &cfg, nil
}
