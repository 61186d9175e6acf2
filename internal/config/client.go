package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// AgentConfig configures the house-agent daemon. Values load from an
// optional YAML file first, then environment variables override.
type AgentConfig struct {
	ServerURL string `env:"SERVER_URL" yaml:"server_url"`
	AccessKey string `env:"ACCESS_KEY" yaml:"access_key"`
	HouseID   string `env:"HOUSE_ID" yaml:"house_id"`
	StatePath string `env:"STATE_PATH" yaml:"state_path"`

	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" yaml:"heartbeat_interval"`
	PollInterval      time.Duration `env:"POLL_INTERVAL" yaml:"poll_interval"`

	// LiveWS pushes frames/audio over the websocket ingest channel when
	// true; otherwise the agent falls back to plain POSTs.
	LiveWS bool `env:"LIVE_WS" yaml:"live_ws"`
}

// ConsoleConfig configures the owner-console daemon.
type ConsoleConfig struct {
	ServerURL   string `env:"SERVER_URL" yaml:"server_url"`
	AccessKey   string `env:"ACCESS_KEY" yaml:"access_key"`
	AdminAPIKey string `env:"ADMIN_API_KEY" yaml:"admin_api_key"`
	StatePath   string `env:"STATE_PATH" yaml:"state_path"`

	PollInterval time.Duration `env:"POLL_INTERVAL" yaml:"poll_interval"`
}

// LoadAgent reads the YAML file at path (when non-empty), applies code
// defaults for anything still unset, then lets the environment win.
// Defaults live in code rather than envDefault tags so a YAML value is
// not clobbered by a default when the env var is absent.
func LoadAgent(path string) (AgentConfig, error) {
	var cfg AgentConfig
	if err := loadYAML(path, &cfg); err != nil {
		return cfg, err
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = "http://localhost:8080"
	}
	if cfg.HouseID == "" {
		cfg.HouseID = "house1"
	}
	if cfg.StatePath == "" {
		cfg.StatePath = "house-agent-state.json"
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 5 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	err := env.Parse(&cfg)
	return cfg, err
}

// LoadConsole mirrors LoadAgent for the owner console.
func LoadConsole(path string) (ConsoleConfig, error) {
	var cfg ConsoleConfig
	if err := loadYAML(path, &cfg); err != nil {
		return cfg, err
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = "http://localhost:8080"
	}
	if cfg.StatePath == "" {
		cfg.StatePath = "owner-console-state.json"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	err := env.Parse(&cfg)
	return cfg, err
}

func loadYAML(path string, out any) error {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, out)
}
