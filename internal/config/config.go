// Package config provides YAML-based configuration loading for Bedel.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Bedel configuration, loaded from bedel.yaml.
type Config struct {
	Platform string        `yaml:"platform"` // "discord" or "slack"
	Discord  DiscordConfig `yaml:"discord"`
	Slack    SlackConfig   `yaml:"slack"`
	Backend  BackendConfig `yaml:"backend"`
	Gemini   GeminiConfig  `yaml:"gemini"`
	Flow     FlowConfig    `yaml:"flow"`
	Digest   DigestConfig  `yaml:"digest"`
	DB       DBConfig      `yaml:"db"`
	API      APIConfig     `yaml:"api"`
}

// DiscordConfig holds Discord bot credentials.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// SlackConfig holds Slack Socket Mode credentials.
type SlackConfig struct {
	AppToken  string `yaml:"app_token"`
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// BackendConfig holds connection settings for the ticket/FAQ backend API.
type BackendConfig struct {
	BaseURL    string `yaml:"base_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// GeminiConfig holds LLM provider settings. The API key is read from the
// environment variable named by APIKeyEnv, never from the config file.
type GeminiConfig struct {
	Model      string `yaml:"model"`
	APIKeyEnv  string `yaml:"api_key_env"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// FlowConfig tunes the guided ticket flow.
type FlowConfig struct {
	MinDescriptionLen int `yaml:"min_description_len"`
}

// DigestConfig controls the daily open-ticket digest.
type DigestConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Cron      string `yaml:"cron"` // 5-field cron expression
	ChannelID string `yaml:"channel_id"`
}

// DBConfig holds database settings for the backend API server.
// Driver "sqlite" uses Path; driver "mysql" uses Host/Port/User/Database.
type DBConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Database string `yaml:"database"`
}

// APIConfig holds the backend API server settings.
type APIConfig struct {
	Port int `yaml:"port"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GeminiAPIKey resolves the Gemini API key from the configured environment
// variable. Returns empty string if unset.
func (c *Config) GeminiAPIKey() string {
	return os.Getenv(c.Gemini.APIKeyEnv)
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = "http://127.0.0.1:8080"
	}
	if c.Backend.TimeoutSec <= 0 {
		c.Backend.TimeoutSec = 15
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.0-flash"
	}
	if c.Gemini.APIKeyEnv == "" {
		c.Gemini.APIKeyEnv = "GEMINI_API_KEY"
	}
	if c.Gemini.TimeoutSec <= 0 {
		c.Gemini.TimeoutSec = 30
	}
	if c.Flow.MinDescriptionLen <= 0 {
		c.Flow.MinDescriptionLen = 10
	}
	if c.Digest.Cron == "" {
		c.Digest.Cron = "0 8 * * *"
	}
	if c.DB.Driver == "" {
		c.DB.Driver = "sqlite"
	}
	if c.DB.Driver == "sqlite" && c.DB.Path == "" {
		c.DB.Path = "bedel.db"
	}
	if c.DB.Driver == "mysql" {
		if c.DB.Host == "" {
			c.DB.Host = "127.0.0.1"
		}
		if c.DB.Port == 0 {
			c.DB.Port = 3306
		}
		if c.DB.User == "" {
			c.DB.User = "root"
		}
		if c.DB.Database == "" {
			c.DB.Database = "bedel"
		}
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Platform {
	case "", "discord", "slack":
	default:
		errs = append(errs, fmt.Sprintf("platform %q must be \"discord\" or \"slack\"", c.Platform))
	}
	if c.Platform == "discord" && c.Discord.BotToken == "" {
		errs = append(errs, "discord.bot_token is required when platform is discord")
	}
	if c.Platform == "slack" {
		if c.Slack.BotToken == "" {
			errs = append(errs, "slack.bot_token is required when platform is slack")
		}
		if c.Slack.AppToken == "" {
			errs = append(errs, "slack.app_token is required when platform is slack")
		}
	}
	if c.DB.Driver != "sqlite" && c.DB.Driver != "mysql" {
		errs = append(errs, fmt.Sprintf("db.driver %q must be \"sqlite\" or \"mysql\"", c.DB.Driver))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
