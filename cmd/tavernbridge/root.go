// Package cli implements the tavernbridge command line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/tavernbridge/tavernbridge/internal/config"
)

// SetupRootCmd builds the root command. Running the binary with no
// subcommand starts the bridge.
func SetupRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "tavernbridge",
		Short: "Bridge a Discord channel to a SillyTavern character",
		Long: `tavernbridge forwards messages from one Discord channel into a
SillyTavern web UI driven by a real browser, and relays the character's
reply back to the channel.

The Discord bot token is read from the DISCORD_TOKEN environment
variable (a .env file next to the binary is honored). Everything else
lives in config.json.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBridge(configPath)
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to the configuration file")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Start the bridge (same as running with no subcommand)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBridge(configPath)
		},
	})
	root.AddCommand(doctorCmd(&configPath))

	return root
}
