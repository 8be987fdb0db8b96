package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// DefaultPath is where the bridge looks for its configuration.
const DefaultPath = "config.json"

// Driver selects the browser engine used to drive SillyTavern.
type Driver string

const (
	DriverChrome  Driver = "chrome"
	DriverEdge    Driver = "edge"
	DriverFirefox Driver = "firefox"
)

// Config holds all process-wide settings. It is loaded once at startup
// and never mutated afterwards. Field names in the JSON file match the
// original config.json contract.
type Config struct {
	SillyTavernURL   string            `json:"SILLYTAVERN_URL"`
	CharacterName    string            `json:"CHARACTER_NAME"`
	DiscordChannelID string            `json:"DISCORD_CHANNEL_ID"`
	SeleniumDriver   Driver            `json:"SELENIUM_DRIVER"`
	DriverPath       string            `json:"DRIVER_PATH,omitempty"`
	ResponseTimeout  int               `json:"RESPONSE_TIMEOUT"`
	UsePersonas      bool              `json:"USE_PERSONAS"`
	PersonaMapping   map[string]string `json:"PERSONA_MAPPING"`
	HeadlessBrowser  bool              `json:"HEADLESS_BROWSER"`
	CommandPrefix    string            `json:"COMMAND_PREFIX"`
	SelectorsFile    string            `json:"SELECTORS_FILE,omitempty"`
}

// Default returns a config with sensible defaults. The channel ID is
// deliberately empty: the bridge refuses to start without one.
func Default() *Config {
	return &Config{
		SillyTavernURL:  "http://localhost:8000",
		CharacterName:   "Assistant",
		SeleniumDriver:  DriverChrome,
		ResponseTimeout: 60,
		PersonaMapping:  map[string]string{},
		CommandPrefix:   "!",
	}
}

// Load reads the config file at path. If the file does not exist a
// default one is written and an error is returned telling the user to
// edit it, so the process never starts with a placeholder channel.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if werr := writeDefault(path); werr != nil {
				return nil, fmt.Errorf("failed to create default config: %w", werr)
			}
			return nil, fmt.Errorf("created %s with defaults; edit it and restart", path)
		}
		return nil, err
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.PersonaMapping == nil {
		cfg.PersonaMapping = map[string]string{}
	}
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = "!"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first fatal configuration problem, if any.
func (c *Config) Validate() error {
	if c.SillyTavernURL == "" {
		return fmt.Errorf("SILLYTAVERN_URL is required")
	}
	if c.CharacterName == "" {
		return fmt.Errorf("CHARACTER_NAME is required")
	}
	if c.DiscordChannelID == "" {
		return fmt.Errorf("DISCORD_CHANNEL_ID is required")
	}
	switch c.SeleniumDriver {
	case DriverChrome, DriverEdge, DriverFirefox:
	default:
		return fmt.Errorf("SELENIUM_DRIVER must be one of chrome, edge, firefox (got %q)", c.SeleniumDriver)
	}
	if c.ResponseTimeout <= 0 {
		return fmt.Errorf("RESPONSE_TIMEOUT must be a positive number of seconds")
	}
	return nil
}

// ResponseTimeoutDuration returns the await-response bound as a duration.
func (c *Config) ResponseTimeoutDuration() time.Duration {
	return time.Duration(c.ResponseTimeout) * time.Second
}

// Token returns the Discord bot token from the environment. It is the
// only secret the bridge uses and must never be logged.
func Token() string {
	return os.Getenv("DISCORD_TOKEN")
}

func writeDefault(path string) error {
	data, err := json.MarshalIndent(Default(), "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
