// Package config loads and validates the easel.yml engine configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EngineConfig represents the top-level easel.yml configuration.
type EngineConfig struct {
	Version string `yaml:"version"`

	Session  SessionConfig  `yaml:"session,omitempty"`
	Paint    PaintConfig    `yaml:"paint,omitempty"`
	Ledger   LedgerConfig   `yaml:"ledger,omitempty"`
	Prompt   PromptConfig   `yaml:"prompt,omitempty"`
	Captcha  CaptchaConfig  `yaml:"captcha,omitempty"`
}

// SessionConfig controls session lifecycle and consensus.
type SessionConfig struct {
	IterationLength     *int `yaml:"iteration_length,omitempty"`     // Seconds per painting iteration (default 900)
	IterationCount      *int `yaml:"iteration_count,omitempty"`      // Iterations until finalization (default 5)
	ConsensusMultiplier *int `yaml:"consensus_multiplier,omitempty"` // Scales the consensus threshold (default 1)
	ConsensusMinimum    *int `yaml:"consensus_minimum,omitempty"`    // Lower bound on the threshold (default 2)
	PaletteSize         *int `yaml:"palette_size,omitempty"`         // Colors per generated palette (default 12)
	InitialSizeClass    *int `yaml:"initial_size_class,omitempty"`   // Size class of the first seeded session (default 0)
}

// PaintConfig controls the paint economy.
type PaintConfig struct {
	Default         *int   `yaml:"default,omitempty"`          // Starting paint, unverified (default 200)
	Verified        *int   `yaml:"verified,omitempty"`         // Starting paint, verified (default 2000)
	VIP             *int   `yaml:"vip,omitempty"`              // Starting paint, VIP (default 3000)
	InvitationBonus *int   `yaml:"invitation_bonus,omitempty"` // Per-invitation starting bonus (default 100)
	IterationPaint  *int   `yaml:"iteration_paint,omitempty"`  // Replenishment at iteration boundaries (default 125)
	ReplenishPolicy string `yaml:"replenish_policy,omitempty"` // "topup" or "reset" (default "topup")
}

// LedgerConfig controls optimistic-concurrency acceptance.
type LedgerConfig struct {
	Capacity       *int     `yaml:"capacity,omitempty"`        // Retained revisions per session (default 5)
	ConflictRadius *float64 `yaml:"conflict_radius,omitempty"` // Minimum distance between racing edits (default 3)
}

// PromptConfig controls prompt submission.
type PromptConfig struct {
	MaxWords *int `yaml:"max_words,omitempty"` // Word budget per prompt (default 5)
}

// CaptchaConfig controls the challenge gate.
type CaptchaConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
}

func defaultInt(p **int, v int) {
	if *p == nil {
		*p = &v
	}
}

// Validate performs strict validation on the configuration and applies
// defaults for omitted fields.
func (c *EngineConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	defaultInt(&c.Session.IterationLength, 900)
	defaultInt(&c.Session.IterationCount, 5)
	defaultInt(&c.Session.ConsensusMultiplier, 1)
	defaultInt(&c.Session.ConsensusMinimum, 2)
	defaultInt(&c.Session.PaletteSize, 12)
	defaultInt(&c.Session.InitialSizeClass, 0)

	if *c.Session.IterationLength < 1 {
		return fmt.Errorf("session.iteration_length must be >= 1, got %d", *c.Session.IterationLength)
	}
	if *c.Session.IterationCount < 2 {
		return fmt.Errorf("session.iteration_count must be >= 2, got %d", *c.Session.IterationCount)
	}
	if *c.Session.ConsensusMultiplier < 1 {
		return fmt.Errorf("session.consensus_multiplier must be >= 1, got %d", *c.Session.ConsensusMultiplier)
	}
	if *c.Session.ConsensusMinimum < 1 {
		return fmt.Errorf("session.consensus_minimum must be >= 1, got %d", *c.Session.ConsensusMinimum)
	}
	if *c.Session.PaletteSize < 2 || *c.Session.PaletteSize > 255 {
		return fmt.Errorf("session.palette_size must be in [2,255], got %d", *c.Session.PaletteSize)
	}
	if *c.Session.InitialSizeClass < 0 {
		return fmt.Errorf("session.initial_size_class must be >= 0, got %d", *c.Session.InitialSizeClass)
	}

	defaultInt(&c.Paint.Default, 200)
	defaultInt(&c.Paint.Verified, 2000)
	defaultInt(&c.Paint.VIP, 3000)
	defaultInt(&c.Paint.InvitationBonus, 100)
	defaultInt(&c.Paint.IterationPaint, 125)
	if c.Paint.ReplenishPolicy == "" {
		c.Paint.ReplenishPolicy = "topup"
	}

	for name, v := range map[string]int{
		"paint.default":          *c.Paint.Default,
		"paint.verified":         *c.Paint.Verified,
		"paint.vip":              *c.Paint.VIP,
		"paint.invitation_bonus": *c.Paint.InvitationBonus,
		"paint.iteration_paint":  *c.Paint.IterationPaint,
	} {
		if v < 0 {
			return fmt.Errorf("%s must be >= 0, got %d", name, v)
		}
	}
	if c.Paint.ReplenishPolicy != "topup" && c.Paint.ReplenishPolicy != "reset" {
		return fmt.Errorf("invalid paint.replenish_policy: %s (must be 'topup' or 'reset')", c.Paint.ReplenishPolicy)
	}

	defaultInt(&c.Ledger.Capacity, 5)
	if c.Ledger.ConflictRadius == nil {
		radius := 3.0
		c.Ledger.ConflictRadius = &radius
	}
	if *c.Ledger.Capacity < 1 {
		return fmt.Errorf("ledger.capacity must be >= 1, got %d", *c.Ledger.Capacity)
	}
	if *c.Ledger.ConflictRadius <= 0 {
		return fmt.Errorf("ledger.conflict_radius must be > 0, got %v", *c.Ledger.ConflictRadius)
	}

	defaultInt(&c.Prompt.MaxWords, 5)
	if *c.Prompt.MaxWords < 1 {
		return fmt.Errorf("prompt.max_words must be >= 1, got %d", *c.Prompt.MaxWords)
	}

	return nil
}

// Default returns a validated configuration with every field at its
// default value.
func Default() *EngineConfig {
	c := &EngineConfig{Version: "1.0"}
	if err := c.Validate(); err != nil {
		panic(err) // defaults are statically valid
	}
	return c
}

// Load reads and validates easel.yml from the specified path.
func Load(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config EngineConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
