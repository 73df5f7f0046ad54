package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig                 `yaml:"app"`
	Robot      RobotConfig               `yaml:"robot"`
	Providers  map[string]ProviderConfig `yaml:"providers"`
	Gateways   map[string]GatewayConfig  `yaml:"gateways"`
	Memory     MemoryConfig              `yaml:"memory"`
	StrictMode bool                      `yaml:"strict_mode"`
}

type AppConfig struct {
	Name       string `yaml:"name"`
	PromptsDir string `yaml:"prompts_dir"`
}

// RobotConfig points at the actuator bridge and tunes dispatch behaviour.
// Simulation mode skips the TCP connection entirely.
type RobotConfig struct {
	Addr             string `yaml:"addr"`
	ActionsToExecute int    `yaml:"actions_to_execute"`
	UseAngleStop     bool   `yaml:"use_angle_stop"`
	Simulation       bool   `yaml:"simulation"`
	MaxRetries       int    `yaml:"max_retries"`
}

type ProviderConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url,omitempty"`
	Streaming bool   `yaml:"streaming"`
	Enabled   bool   `yaml:"enabled"`
}

type GatewayConfig struct {
	Token   string `yaml:"token"`
	Enabled bool   `yaml:"enabled"`
}

type MemoryConfig struct {
	Path string `yaml:"path"`
}

// Load reads a YAML config file and fills in defaults for anything the file
// leaves out.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Default returns a config suitable for running against a local actuator
// bridge in simulation mode.
func Default() *Config {
	return &Config{
		App: AppConfig{Name: "souschef"},
		Robot: RobotConfig{
			Addr:             "127.0.0.1:5000",
			ActionsToExecute: 150,
			UseAngleStop:     true,
			Simulation:       true,
			MaxRetries:       2,
		},
		Memory: MemoryConfig{Path: "souschef.db"},
	}
}

func (c *Config) applyDefaults() {
	if c.Robot.Addr == "" {
		c.Robot.Addr = "127.0.0.1:5000"
	}
	if c.Robot.ActionsToExecute <= 0 {
		c.Robot.ActionsToExecute = 150
	}
	if c.Robot.MaxRetries < 0 {
		c.Robot.MaxRetries = 0
	}
	if c.Memory.Path == "" {
		c.Memory.Path = "souschef.db"
	}
}

// GetDefaultProvider returns the first enabled provider
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	for name, p := range c.Providers {
		if p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// GetTelegramConfig returns telegram config if enabled
func (c *Config) GetTelegramConfig() (GatewayConfig, bool) {
	tg, ok := c.Gateways["telegram"]
	if ok && tg.Enabled {
		return tg, true
	}
	return GatewayConfig{}, false
}
