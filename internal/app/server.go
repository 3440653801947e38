package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LulfLoot/ThunderDockerman/internal/autostop"
	"github.com/LulfLoot/ThunderDockerman/internal/container"
	"github.com/LulfLoot/ThunderDockerman/internal/output"
	"github.com/LulfLoot/ThunderDockerman/internal/server"
)

var (
	logsTail int

	serverCmd = &cobra.Command{
		Use:   "server",
		Short: "Control the game server container",
		Long: `Start, stop, restart and inspect the container named by container.name
(or the RESTART_CONTAINER environment variable).`,
	}

	serverStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the game server container",
		Args:  cobra.NoArgs,
		RunE:  lifecycleRunner("Starting", "Started", (*server.Manager).Start),
	}

	serverStopCmd = &cobra.Command{
		Use:   "stop",
		Short: "Stop the game server container",
		Args:  cobra.NoArgs,
		RunE:  lifecycleRunner("Stopping", "Stopped", (*server.Manager).Stop),
	}

	serverRestartCmd = &cobra.Command{
		Use:   "restart",
		Short: "Restart the game server container",
		Args:  cobra.NoArgs,
		RunE:  lifecycleRunner("Restarting", "Restarted", (*server.Manager).Restart),
	}

	serverStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the container state and auto-stop settings",
		Args:  cobra.NoArgs,
		RunE:  runServerStatus,
	}

	serverLogsCmd = &cobra.Command{
		Use:   "logs",
		Short: "Print recent container logs",
		Args:  cobra.NoArgs,
		RunE:  runServerLogs,
	}
)

func init() {
	serverLogsCmd.Flags().IntVar(&logsTail, "tail", container.DefaultLogTail, "number of lines to show")

	serverCmd.AddCommand(serverStartCmd)
	serverCmd.AddCommand(serverStopCmd)
	serverCmd.AddCommand(serverRestartCmd)
	serverCmd.AddCommand(serverStatusCmd)
	serverCmd.AddCommand(serverLogsCmd)
}

// withServer loads config and builds a server manager for the duration of fn.
func withServer(cmd *cobra.Command, fn func(m *server.Manager, auto *autostop.Status) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	m, closeFn, err := newServerManager(cfg, nil)
	if err != nil {
		return err
	}
	defer closeFn()

	if !m.Configured() {
		return container.ErrNotConfigured
	}
	auto := &autostop.Status{Enabled: cfg.AutoStop.Enabled, TimeoutMinutes: cfg.AutoStop.TimeoutMinutes}
	return fn(m, auto)
}

func lifecycleRunner(progress, done string, action func(*server.Manager, context.Context) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withServer(cmd, func(m *server.Manager, _ *autostop.Status) error {
			spinner := output.NewSpinner(fmt.Sprintf("%s %s", progress, m.Name()))
			spinner.SetWriter(cmd.OutOrStdout())
			spinner.Start()
			if err := action(m, cmd.Context()); err != nil {
				spinner.Stop()
				return err
			}
			spinner.StopWithMessage(fmt.Sprintf("✓ %s %s", done, m.Name()))
			return nil
		})
	}
}

func runServerStatus(cmd *cobra.Command, args []string) error {
	return withServer(cmd, func(m *server.Manager, auto *autostop.Status) error {
		state, err := m.Status(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), output.RenderServerStatus(state, auto))
		return nil
	})
}

func runServerLogs(cmd *cobra.Command, args []string) error {
	return withServer(cmd, func(m *server.Manager, _ *autostop.Status) error {
		logs, err := m.Logs(cmd.Context(), logsTail)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), logs)
		return nil
	})
}
