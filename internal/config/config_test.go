package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.SillyTavernURL != "http://localhost:8000" {
		t.Errorf("expected default URL http://localhost:8000, got %s", cfg.SillyTavernURL)
	}
	if cfg.SeleniumDriver != DriverChrome {
		t.Errorf("expected default driver chrome, got %s", cfg.SeleniumDriver)
	}
	if cfg.ResponseTimeout != 60 {
		t.Errorf("expected default timeout 60, got %d", cfg.ResponseTimeout)
	}
	if cfg.CommandPrefix != "!" {
		t.Errorf("expected default prefix !, got %s", cfg.CommandPrefix)
	}
	if cfg.PersonaMapping == nil {
		t.Error("expected PersonaMapping to be non-nil")
	}

	// Defaults alone must not validate: the channel is a required choice.
	if err := cfg.Validate(); err == nil {
		t.Error("expected default config to fail validation without a channel ID")
	}
}

func TestLoadMissingFileCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error when config file is missing")
	}

	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatalf("expected default config file to be created: %v", statErr)
	}

	// The created file should parse cleanly once a channel is filled in.
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		t.Fatalf("failed to read created config: %v", readErr)
	}
	if len(data) == 0 {
		t.Fatal("created config file is empty")
	}
}

func TestLoadValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"SILLYTAVERN_URL": "http://localhost:8000",
		"CHARACTER_NAME": "Seraphina",
		"DISCORD_CHANNEL_ID": "123456789012345678",
		"SELENIUM_DRIVER": "firefox",
		"RESPONSE_TIMEOUT": 30,
		"USE_PERSONAS": true,
		"PERSONA_MAPPING": {"42": "Alice"}
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.CharacterName != "Seraphina" {
		t.Errorf("expected character Seraphina, got %s", cfg.CharacterName)
	}
	if cfg.SeleniumDriver != DriverFirefox {
		t.Errorf("expected driver firefox, got %s", cfg.SeleniumDriver)
	}
	if !cfg.UsePersonas {
		t.Error("expected persona mode enabled")
	}
	if cfg.PersonaMapping["42"] != "Alice" {
		t.Errorf("expected persona mapping 42->Alice, got %v", cfg.PersonaMapping)
	}
	if cfg.CommandPrefix != "!" {
		t.Errorf("expected prefix to default to !, got %s", cfg.CommandPrefix)
	}
}

func TestValidateRejectsBadDriver(t *testing.T) {
	cfg := Default()
	cfg.DiscordChannelID = "1"
	cfg.SeleniumDriver = "safari"

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unsupported driver")
	}
}

func TestValidateRejectsBlankCharacter(t *testing.T) {
	cfg := Default()
	cfg.DiscordChannelID = "1"
	cfg.CharacterName = ""

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for blank character name")
	}
}

func TestValidateRejectsZeroTimeout(t *testing.T) {
	cfg := Default()
	cfg.DiscordChannelID = "1"
	cfg.ResponseTimeout = 0

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero timeout")
	}
}

func TestTokenFromEnv(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "secret-token")
	if Token() != "secret-token" {
		t.Error("expected token from environment")
	}
}
