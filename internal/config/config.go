package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "5m"
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds daemon settings. Values come from an optional YAML
// file, with environment variables taking precedence.
type Config struct {
	HTTPAddr  string `yaml:"http_addr"`
	StatePath string `yaml:"state_path"`

	// How often the deadline scanner runs
	TickInterval Duration `yaml:"tick_interval"`
	// How often overrun focus sessions are swept
	SweepInterval Duration `yaml:"sweep_interval"`

	Discord DiscordConfig `yaml:"discord"`

	// Browser origins allowed to call the API; empty means any
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DiscordConfig enables notification delivery to a Discord channel
// when both fields are set
type DiscordConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
}

// Load reads the config file at path (missing file is fine), applies
// environment overrides, then defaults
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GRAVITYD_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("STATE_PATH"); v != "" {
		cfg.StatePath = v
	}
	if v := os.Getenv("GRAVITYD_TICK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.TickInterval = Duration(d)
		}
	}
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		cfg.Discord.Token = v
	}
	if v := os.Getenv("DISCORD_CHANNEL_ID"); v != "" {
		cfg.Discord.ChannelID = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.StatePath == "" {
		cfg.StatePath = "state"
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = Duration(time.Minute)
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = Duration(time.Minute)
	}
}

// DiscordEnabled reports whether Discord delivery is configured
func (c *Config) DiscordEnabled() bool {
	return c.Discord.Token != "" && c.Discord.ChannelID != ""
}
