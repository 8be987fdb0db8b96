package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tavernbridge/tavernbridge/internal/config"
	"github.com/tavernbridge/tavernbridge/internal/webui"
)

// doctorCmd checks the local setup without opening any connections.
func doctorCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and environment without connecting",
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := false

			cfg, err := config.Load(*configPath)
			if err != nil {
				fmt.Printf("✗ config: %v\n", err)
				return fmt.Errorf("configuration is not usable")
			}
			fmt.Printf("✓ config: %s\n", *configPath)
			fmt.Printf("  url=%s character=%q channel=%s driver=%s\n",
				cfg.SillyTavernURL, cfg.CharacterName, cfg.DiscordChannelID, cfg.SeleniumDriver)

			if config.Token() == "" {
				fmt.Println("✗ DISCORD_TOKEN is not set")
				failed = true
			} else {
				fmt.Println("✓ DISCORD_TOKEN is set")
			}

			if _, err := webui.LoadSelectors(cfg.SelectorsFile); err != nil {
				fmt.Printf("✗ selectors: %v\n", err)
				failed = true
			} else if cfg.SelectorsFile != "" {
				fmt.Printf("✓ selectors: %s\n", cfg.SelectorsFile)
			} else {
				fmt.Println("✓ selectors: defaults")
			}

			if cfg.DriverPath != "" {
				if _, err := os.Stat(cfg.DriverPath); err != nil {
					fmt.Printf("✗ DRIVER_PATH: %v\n", err)
					failed = true
				} else {
					fmt.Printf("✓ DRIVER_PATH: %s\n", cfg.DriverPath)
				}
			}

			if dir, err := browsersDir(); err != nil {
				fmt.Printf("✗ playwright browsers: %v\n", err)
				failed = true
			} else if _, err := os.Stat(dir); err != nil {
				fmt.Printf("✗ playwright browsers: nothing at %s (they are downloaded on first run)\n", dir)
				failed = true
			} else {
				fmt.Printf("✓ playwright browsers: %s\n", dir)
			}

			if failed {
				return fmt.Errorf("one or more checks failed")
			}
			fmt.Println("All checks passed.")
			return nil
		},
	}
}

// browsersDir returns playwright's browser registry location:
// PLAYWRIGHT_BROWSERS_PATH when set, otherwise the per-user cache the
// driver downloads into.
func browsersDir() (string, error) {
	if env := os.Getenv("PLAYWRIGHT_BROWSERS_PATH"); env != "" {
		return env, nil
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cache, "ms-playwright"), nil
}
