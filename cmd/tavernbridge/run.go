package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tavernbridge/tavernbridge/internal/bridge"
	"github.com/tavernbridge/tavernbridge/internal/channels"
	"github.com/tavernbridge/tavernbridge/internal/channels/discord"
	"github.com/tavernbridge/tavernbridge/internal/config"
	"github.com/tavernbridge/tavernbridge/internal/logging"
	"github.com/tavernbridge/tavernbridge/internal/webui"
)

// runBridge starts the bridge and blocks until SIGINT/SIGTERM. Startup
// failures (bad config, no token, browser launch) abort with a
// diagnostic before any Discord connection is made.
func runBridge(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	token := config.Token()
	if token == "" {
		return fmt.Errorf("no Discord token found; set DISCORD_TOKEN in the environment or a .env file")
	}

	selectors, err := webui.LoadSelectors(cfg.SelectorsFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connector := func(ctx context.Context, character string) (bridge.Tavern, error) {
		return webui.Connect(ctx, webui.Config{
			URL:            cfg.SillyTavernURL,
			Character:      character,
			Engine:         webui.Engine(cfg.SeleniumDriver),
			ExecutablePath: cfg.DriverPath,
			Headless:       cfg.HeadlessBrowser,
			Selectors:      selectors,
		})
	}

	adapter := discord.New()
	b := bridge.New(ctx, bridge.Options{
		ChannelID:       cfg.DiscordChannelID,
		Prefix:          cfg.CommandPrefix,
		Character:       cfg.CharacterName,
		ResponseTimeout: cfg.ResponseTimeoutDuration(),
		UsePersonas:     cfg.UsePersonas,
		Personas:        cfg.PersonaMapping,
	}, adapter, connector)

	if err := b.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to SillyTavern: %w", err)
	}
	defer b.Close()

	adapter.SetHandler(b.HandleMessage)
	if err := adapter.Connect(ctx, channels.ChannelConfig{Token: token}); err != nil {
		return err
	}
	defer adapter.Disconnect()

	if err := adapter.SetPresence("with " + b.Character()); err != nil {
		logging.Warnf("failed to set presence: %v", err)
	}

	logging.Infof("bridge running on channel %s; press Ctrl+C to exit", cfg.DiscordChannelID)
	<-ctx.Done()
	logging.Info("shutting down")
	return nil
}
