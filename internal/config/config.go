// Package config loads settings from the environment with CLI flag
// overrides layered on top.
package config

import (
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "CLAUDEVOICE"

// Config holds all settings. Environment variables use the CLAUDEVOICE_
// prefix, e.g. CLAUDEVOICE_CLAUDE_MODEL.
type Config struct {
	// Claude CLI settings
	ClaudeModel string `envconfig:"CLAUDE_MODEL" default:""`
	ClaudePath  string `envconfig:"CLAUDE_PATH" default:"claude"`

	// Speech synthesis settings
	PiperPath  string `envconfig:"PIPER_PATH" default:"piper"`
	PiperModel string `envconfig:"PIPER_MODEL" default:""` // path to a .onnx file
	PiperVoice string `envconfig:"PIPER_VOICE" default:"en_US-lessac-medium"`

	// Speech behavior
	SpeakTools bool `envconfig:"SPEAK_TOOLS" default:"true"`
	SpeakCost  bool `envconfig:"SPEAK_COST" default:"true"`
}

// Load reads configuration from the environment, with a .env file as a
// fallback when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Overlay copies the non-empty fields of overrides onto the config, so CLI
// flags win over environment values without erasing them.
func (c *Config) Overlay(overrides Config) error {
	if err := copier.CopyWithOption(c, &overrides, copier.Option{IgnoreEmpty: true}); err != nil {
		return fmt.Errorf("failed to apply overrides: %w", err)
	}
	return nil
}
