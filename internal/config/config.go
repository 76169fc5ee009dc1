// Package config loads the server configuration from YAML. Zero values fall
// back to production defaults, so an empty file (or no file) yields a
// runnable configuration with the mock AI client and no Redis persistence
// guarantees beyond fail-open behavior.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	RedisAddr  string `yaml:"redis_addr"`
	RulesPath  string `yaml:"rules_path"`

	AI      AIConfig      `yaml:"ai"`
	Fatigue FatigueConfig `yaml:"fatigue"`
	DND     DNDConfig     `yaml:"dnd"`
}

// AIConfig configures the enrichment client. An empty endpoint selects the
// deterministic mock.
type AIConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// FatigueConfig overrides the sliding-window caps.
type FatigueConfig struct {
	TotalPerHour      int `yaml:"total_per_hour"`
	PerSourcePerHour  int `yaml:"per_source_per_hour"`
	PromoPerFourHours int `yaml:"promo_per_four_hours"`
}

// DNDConfig overrides the quiet-hours window.
type DNDConfig struct {
	StartHour int `yaml:"start_hour"`
	EndHour   int `yaml:"end_hour"`
}

// Default returns the production defaults.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		RedisAddr:  "localhost:6379",
		RulesPath:  "rules.yaml",
		Fatigue: FatigueConfig{
			TotalPerHour:      5,
			PerSourcePerHour:  2,
			PromoPerFourHours: 1,
		},
		DND: DNDConfig{StartHour: 23, EndHour: 8},
	}
}

// Load reads and parses path, applying defaults to unset fields. A missing
// file returns pure defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.RedisAddr == "" {
		c.RedisAddr = def.RedisAddr
	}
	if c.RulesPath == "" {
		c.RulesPath = def.RulesPath
	}
	if c.Fatigue.TotalPerHour <= 0 {
		c.Fatigue.TotalPerHour = def.Fatigue.TotalPerHour
	}
	if c.Fatigue.PerSourcePerHour <= 0 {
		c.Fatigue.PerSourcePerHour = def.Fatigue.PerSourcePerHour
	}
	if c.Fatigue.PromoPerFourHours <= 0 {
		c.Fatigue.PromoPerFourHours = def.Fatigue.PromoPerFourHours
	}
	if c.DND.StartHour == 0 && c.DND.EndHour == 0 {
		c.DND = def.DND
	}
}

// ShutdownGrace is how long in-flight evaluations get on SIGTERM.
const ShutdownGrace = 10 * time.Second
