package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/LulfLoot/ThunderDockerman/internal/config"
)

var (
	configFile string
	dbPath     string
	modsDir    string

	// RootCmd is the root command for thunderdockerman
	RootCmd = &cobra.Command{
		Use:   "thunderdockerman",
		Short: "Thunderstore mod manager for Dockerized game servers",
		Long: `thunderdockerman installs Thunderstore mods into a game server's plugin
directory, resolving dependencies, and manages the server's Docker container:
start, stop, restart, logs, idle auto-stop and world data backups.

Quick Start:
  1. thunderdockerman search valheim jotunn
  2. thunderdockerman install valheim ValheimModding-Jotunn --deps
  3. thunderdockerman serve        # web UI and HTTP API on :9876

Configuration is read from $XDG_CONFIG_HOME/thunderdockerman/config.yaml,
THUNDERDOCKERMAN_* environment variables and flags. The container to manage
is set with container.name (or RESTART_CONTAINER).

Examples:
  # Show the dependency plan without installing
  thunderdockerman resolve valheim ValheimModding-Jotunn

  # List installed mods
  thunderdockerman installed

  # Restart the game server container
  thunderdockerman server restart

  # Back up world data
  thunderdockerman backup create`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "thunderdockerman: Thunderstore mods and Docker lifecycle for game servers")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Run 'thunderdockerman serve' to start the web UI.")
			fmt.Fprintln(out, "Run 'thunderdockerman --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: $XDG_CONFIG_HOME/thunderdockerman/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: ~/.thunderdockerman/thunderdockerman.db)")
	RootCmd.PersistentFlags().StringVar(&modsDir, "mods-dir", "", "mod install directory (default: ./BepInEx/plugins)")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2

	// Register subcommands
	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(communitiesCmd)
	RootCmd.AddCommand(searchCmd)
	RootCmd.AddCommand(resolveCmd)
	RootCmd.AddCommand(installCmd)
	RootCmd.AddCommand(uninstallCmd)
	RootCmd.AddCommand(installedCmd)
	RootCmd.AddCommand(historyCmd)
	RootCmd.AddCommand(serverCmd)
	RootCmd.AddCommand(backupCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// loadConfig resolves configuration for cmd. Flags the user set on the
// command line override every other layer.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := map[string]*pflag.Flag{
		"db_path":  cmd.Flags().Lookup("db"),
		"mods_dir": cmd.Flags().Lookup("mods-dir"),
	}
	if f := cmd.Flags().Lookup("listen"); f != nil {
		flags["listen"] = f
	}

	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: configFile,
		Flags:      flags,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
