// Package config loads the engine's runtime configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/openboard/engine/internal/domain"
)

// Config holds the engine's runtime configuration.
type Config struct {
	DBPath                 string `json:"db_path"`
	ListenAddr             string `json:"listen_addr"`
	Workflow               string `json:"workflow"`
	SyncRateLimitPerMinute int    `json:"sync_rate_limit_per_minute"`
}

// Load reads a JSON config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":9400"
	}
	if c.Workflow == "" {
		c.Workflow = "phase-batching"
	}
	if c.SyncRateLimitPerMinute == 0 {
		c.SyncRateLimitPerMinute = 30
	}
}

func (c *Config) validate() error {
	var problems []string

	if c.DBPath == "" {
		problems = append(problems, "db_path is required")
	}
	switch c.Workflow {
	case "phase-batching", "strict-interleave":
	default:
		problems = append(problems, fmt.Sprintf("unknown workflow %q", c.Workflow))
	}

	if len(problems) > 0 {
		return &domain.EngineError{
			Code:    domain.ErrConfigInvalid.Code,
			Message: fmt.Sprintf("%s: %v", domain.ErrConfigInvalid.Message, problems),
		}
	}
	return nil
}
