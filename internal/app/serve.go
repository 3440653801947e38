package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/LulfLoot/ThunderDockerman/internal/api"
	"github.com/LulfLoot/ThunderDockerman/internal/autostop"
	"github.com/LulfLoot/ThunderDockerman/internal/container"
	"github.com/LulfLoot/ThunderDockerman/internal/daemon"
	"github.com/LulfLoot/ThunderDockerman/internal/mods"
	"github.com/LulfLoot/ThunderDockerman/internal/output"
	"github.com/LulfLoot/ThunderDockerman/internal/server"
)

const shutdownTimeout = 10 * time.Second

var (
	serveListen      string
	serveDaemon      bool
	serveDaemonChild bool
	servePIDFile     string
	serveLogFile     string
	serveStop        bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the web UI and HTTP API",
		Long: `Serve the web UI and the HTTP API for browsing, installing and removing
mods, controlling the game server container, changing auto-stop settings and
managing world backups.

While serving, the idle auto-stop controller samples the container's network
traffic every minute and stops the server once it has been idle for the
configured number of minutes. Changes to the mod directory made outside
thunderdockerman are picked up automatically.

Serve modes:
  • Foreground (default): Run in current terminal with Ctrl+C to stop
  • Daemon: Run as background process, logging to a file
  • Stop: Stop a running daemon`,
		Example: `  # Run in foreground (Ctrl+C to stop)
  thunderdockerman serve

  # Listen on another address
  thunderdockerman serve --listen 127.0.0.1:8080

  # Run as background daemon
  thunderdockerman serve --daemon

  # Stop running daemon
  thunderdockerman serve --stop`,
		RunE: runServe,
	}
)

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (default: 0.0.0.0:9876)")
	serveCmd.Flags().BoolVar(&serveDaemon, "daemon", false, "run as background daemon")
	serveCmd.Flags().BoolVar(&serveDaemonChild, "daemon-child", false, "internal flag for daemon child process")
	serveCmd.Flags().StringVar(&servePIDFile, "pid-file", "", "PID file path (default: ~/.thunderdockerman/serve.pid)")
	serveCmd.Flags().StringVar(&serveLogFile, "log-file", "", "log file path (default: ~/.thunderdockerman/serve.log)")
	serveCmd.Flags().BoolVar(&serveStop, "stop", false, "stop running daemon")

	// Hide the internal daemon-child flag from help
	serveCmd.Flags().MarkHidden("daemon-child")
}

func runServe(cmd *cobra.Command, args []string) error {
	if servePIDFile == "" {
		defaultPID, err := getDefaultPIDFile()
		if err != nil {
			return fmt.Errorf("failed to get default PID file path: %w", err)
		}
		servePIDFile = defaultPID
	}

	if serveLogFile == "" {
		defaultLog, err := getDefaultLogFile()
		if err != nil {
			return fmt.Errorf("failed to get default log file path: %w", err)
		}
		serveLogFile = defaultLog
	}

	if serveStop {
		return stopServeDaemon(cmd)
	}

	// Load config before forking so a bad config fails in the foreground
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if serveDaemon {
		return startServeDaemon(cmd, cfg.Listen)
	}

	svc, err := openServices(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if serveDaemonChild {
		defer daemon.RemovePID(servePIDFile, os.Getpid())
	}
	return serve(ctx, svc)
}

func serve(ctx context.Context, svc *services) error {
	cfg := svc.cfg
	logger := svc.logger

	watcher, err := mods.NewWatcher(svc.mods)
	if err != nil {
		logger.Warn("mod directory watcher disabled", "err", err)
	} else {
		watcher.Start()
		defer watcher.Stop()
	}

	opts := api.Options{
		Index:     svc.index,
		Resolver:  svc.resolver,
		Installer: svc.installer,
		Backups:   svc.backups,
		History:   svc.db,
		PublicDir: cfg.PublicDir,
		Logger:    logger,
	}

	docker, err := container.NewDocker(cfg.Container.StopTimeout)
	if err != nil {
		logger.Warn("docker unavailable, server control disabled", "err", err)
	} else {
		defer docker.Close()

		if cfg.Container.Name != "" {
			opts.Server = server.NewManager(docker, cfg.Container.Name, cfg.Container.RequestTimeout, logger)
		} else {
			logger.Warn("no container configured, server control disabled")
		}

		controller, err := autostop.New(autostop.Options{
			Runtime:        docker,
			ContainerName:  cfg.Container.Name,
			Config:         autostop.Config{Enabled: cfg.AutoStop.Enabled, TimeoutMinutes: cfg.AutoStop.TimeoutMinutes},
			Logger:         logger,
			RequestTimeout: cfg.Container.RequestTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to create auto-stop controller: %w", err)
		}
		opts.AutoStop = controller
		go controller.Run(ctx)
	}

	app := api.New(opts)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.Listen)
	}()
	logger.Info("listening", "addr", cfg.Listen, "mods_dir", svc.mods.Dir(), "container", cfg.Container.Name)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve on %s: %w", cfg.Listen, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

func stopServeDaemon(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	running, err := daemon.IsRunning(servePIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}
	if !running {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}

	spinner := output.NewSpinner("Stopping daemon")
	spinner.SetWriter(out)
	spinner.Start()
	if err := daemon.Stop(servePIDFile, shutdownTimeout+5*time.Second); err != nil {
		spinner.Stop()
		if errors.Is(err, daemon.ErrNotRunning) {
			fmt.Fprintln(out, "Daemon is not running")
			return nil
		}
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon stopped")
	return nil
}

func startServeDaemon(cmd *cobra.Command, listen string) error {
	out := cmd.OutOrStdout()

	spinner := output.NewSpinner("Starting daemon")
	spinner.SetWriter(out)
	spinner.Start()
	pid, err := daemon.Start(servePIDFile, serveLogFile, daemonChildArgs(os.Args[1:], servePIDFile)...)
	if err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon started")

	fmt.Fprintf(out, "\nthunderdockerman serving on %s (PID %d)\n", listen, pid)
	fmt.Fprintf(out, "  PID file: %s\n", servePIDFile)
	fmt.Fprintf(out, "  Log file: %s\n", serveLogFile)
	fmt.Fprintf(out, "\nTo stop: thunderdockerman serve --stop\n")
	return nil
}

// daemonChildArgs rewrites the parent's arguments for the background
// child: --daemon becomes --daemon-child and the PID file is made explicit.
func daemonChildArgs(args []string, pidFile string) []string {
	out := make([]string, 0, len(args)+3)
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--daemon" || strings.HasPrefix(a, "--daemon="):
			continue
		case a == "--pid-file":
			i++
			continue
		case strings.HasPrefix(a, "--pid-file="):
			continue
		}
		out = append(out, a)
	}
	return append(out, "--daemon-child", "--pid-file", pidFile)
}
