package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/LulfLoot/ThunderDockerman/internal/backup"
	"github.com/LulfLoot/ThunderDockerman/internal/config"
	"github.com/LulfLoot/ThunderDockerman/internal/container"
	"github.com/LulfLoot/ThunderDockerman/internal/installer"
	"github.com/LulfLoot/ThunderDockerman/internal/logging"
	"github.com/LulfLoot/ThunderDockerman/internal/mods"
	"github.com/LulfLoot/ThunderDockerman/internal/resolver"
	"github.com/LulfLoot/ThunderDockerman/internal/server"
	"github.com/LulfLoot/ThunderDockerman/internal/store"
	"github.com/LulfLoot/ThunderDockerman/internal/thunderstore"
)

// services holds everything a command may need, built from one config.
type services struct {
	cfg       *config.Config
	logger    *log.Logger
	db        *store.Store
	index     *thunderstore.Client
	resolver  *resolver.Resolver
	mods      *mods.Store
	installer *installer.Orchestrator
	backups   *backup.Manager
}

func openServices(cfg *config.Config) (*services, error) {
	logger, err := logging.New(os.Stderr, cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.CreateSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create database schema: %w", err)
	}

	index := thunderstore.NewClient(thunderstore.Options{
		BaseURL:            cfg.Thunderstore.BaseURL,
		Communities:        cfg.Thunderstore.Communities,
		CacheTTL:           cfg.Thunderstore.CacheTTL,
		Timeout:            cfg.Thunderstore.Timeout,
		LatestDependencies: cfg.Resolver.LatestDependencies,
		Cache:              db,
		Logger:             logger.WithPrefix("thunderstore"),
	})

	var opts []resolver.Option
	if cfg.Resolver.StrictVersions {
		opts = append(opts, resolver.WithStrictVersions())
	}

	modStore, err := mods.NewStore(mods.Options{
		Dir:     cfg.ModsDir,
		History: db,
		Logger:  logger.WithPrefix("mods"),
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &services{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		index:     index,
		resolver:  resolver.New(index, opts...),
		mods:      modStore,
		installer: installer.New(modStore, index, logger.WithPrefix("installer")),
		backups:   backup.New(db, cfg.DataDir, cfg.BackupDir, logger),
	}, nil
}

func (s *services) Close() error {
	return s.db.Close()
}

// newServerManager returns a manager for the configured container. Without
// container.name every operation fails with container.ErrNotConfigured.
func newServerManager(cfg *config.Config, logger *log.Logger) (*server.Manager, func(), error) {
	if cfg.Container.Name == "" {
		return server.NewManager(nil, "", cfg.Container.RequestTimeout, logger), func() {}, nil
	}

	docker, err := container.NewDocker(cfg.Container.StopTimeout)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { docker.Close() }
	return server.NewManager(docker, cfg.Container.Name, cfg.Container.RequestTimeout, logger), closeFn, nil
}

// stateDir returns ~/.thunderdockerman, creating it if needed.
func stateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	dir := filepath.Join(home, ".thunderdockerman")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create thunderdockerman directory: %w", err)
	}
	return dir, nil
}

// getDefaultPIDFile returns the default PID file path
func getDefaultPIDFile() (string, error) {
	dir, err := stateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "serve.pid"), nil
}

// getDefaultLogFile returns the default log file path
func getDefaultLogFile() (string, error) {
	dir, err := stateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "serve.log"), nil
}
