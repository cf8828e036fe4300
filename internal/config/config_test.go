package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.ClaudePath != "claude" {
		t.Fatalf("expected default claude path %q, got %q", "claude", cfg.ClaudePath)
	}
	if cfg.PiperVoice != "en_US-lessac-medium" {
		t.Fatalf("expected default voice, got %q", cfg.PiperVoice)
	}
	if !cfg.SpeakTools || !cfg.SpeakCost {
		t.Fatalf("expected speech announcements on by default")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CLAUDEVOICE_CLAUDE_MODEL", "opus")
	t.Setenv("CLAUDEVOICE_PIPER_VOICE", "en_GB-alba-medium")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.ClaudeModel != "opus" {
		t.Fatalf("expected model from environment, got %q", cfg.ClaudeModel)
	}
	if cfg.PiperVoice != "en_GB-alba-medium" {
		t.Fatalf("expected voice from environment, got %q", cfg.PiperVoice)
	}
}

func TestOverlayPrefersNonEmptyOverrides(t *testing.T) {
	cfg := Config{ClaudeModel: "sonnet", ClaudePath: "claude", PiperVoice: "en_US-lessac-medium"}

	if err := cfg.Overlay(Config{ClaudeModel: "opus"}); err != nil {
		t.Fatalf("overlay failed: %v", err)
	}

	if cfg.ClaudeModel != "opus" {
		t.Fatalf("expected override to win, got %q", cfg.ClaudeModel)
	}
	if cfg.ClaudePath != "claude" || cfg.PiperVoice != "en_US-lessac-medium" {
		t.Fatalf("expected empty overrides to leave values intact")
	}
}
