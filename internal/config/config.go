package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/cartridge/multipolicy/internal/module"
)

// Config holds all multipolicy configuration
type Config struct {
	// Shared encoder
	ObsDim     int `mapstructure:"obs_dim"`
	FeatureDim int `mapstructure:"feature_dim"`

	// Policy heads
	HiddenDim int            `mapstructure:"hidden_dim"`
	Policies  []PolicyConfig `mapstructure:"policies"`

	// Weight initialisation
	Seed int64 `mapstructure:"seed"`

	// Dispatch
	Parallelism int `mapstructure:"parallelism"`

	// Serving
	Addr string `mapstructure:"addr"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// PolicyConfig describes one policy head.
type PolicyConfig struct {
	ID       string `mapstructure:"id"`
	NActions int    `mapstructure:"n_actions"`
	// HiddenDim overrides Config.HiddenDim when positive.
	HiddenDim int `mapstructure:"hidden_dim"`
}

// Default returns a config with sensible defaults
func Default() *Config {
	return &Config{
		ObsDim:     4,
		FeatureDim: 64,
		HiddenDim:  64,
		Policies: []PolicyConfig{
			{ID: "p0", NActions: 2},
			{ID: "p1", NActions: 2},
		},
		Seed:        42,
		Parallelism: 1,
		Addr:        ":8080",
		LogLevel:    "info",
		LogFormat:   "json",
	}
}

// Load overlays values from v (file, env, bound flags) onto the defaults.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if v.IsSet("policies") {
		// A configured list replaces the defaults instead of merging into them.
		cfg.Policies = nil
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HiddenDimFor returns the hidden width for p.
func (c *Config) HiddenDimFor(p PolicyConfig) int {
	if p.HiddenDim > 0 {
		return p.HiddenDim
	}
	return c.HiddenDim
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ObsDim <= 0 {
		return fmt.Errorf("obs_dim must be positive")
	}
	if c.FeatureDim <= 0 {
		return fmt.Errorf("feature_dim must be positive")
	}
	if c.HiddenDim <= 0 {
		return fmt.Errorf("hidden_dim must be positive")
	}
	if len(c.Policies) == 0 {
		return fmt.Errorf("at least one policy is required")
	}
	seen := make(map[string]struct{}, len(c.Policies))
	for i, p := range c.Policies {
		switch {
		case p.ID == "":
			return fmt.Errorf("policies[%d]: id is required", i)
		case p.ID == module.SharedEncoderID:
			return fmt.Errorf("policies[%d]: id %q is reserved for the shared encoder", i, p.ID)
		case p.NActions <= 0:
			return fmt.Errorf("policy %s: n_actions must be positive", p.ID)
		case p.HiddenDim < 0:
			return fmt.Errorf("policy %s: hidden_dim must not be negative", p.ID)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("policy %s: duplicate id", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	return nil
}
