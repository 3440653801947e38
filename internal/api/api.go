// Package api exposes the mod manager, server lifecycle, auto-stop and
// backup operations over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"os"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/LulfLoot/ThunderDockerman/internal/autostop"
	"github.com/LulfLoot/ThunderDockerman/internal/backup"
	"github.com/LulfLoot/ThunderDockerman/internal/container"
	"github.com/LulfLoot/ThunderDockerman/internal/installer"
	"github.com/LulfLoot/ThunderDockerman/internal/logging"
	"github.com/LulfLoot/ThunderDockerman/internal/mods"
	"github.com/LulfLoot/ThunderDockerman/internal/resolver"
	"github.com/LulfLoot/ThunderDockerman/internal/store"
	"github.com/LulfLoot/ThunderDockerman/internal/thunderstore"
)

// Refresher is implemented by indexes that can drop a cached listing.
type Refresher interface {
	Refresh(community string) error
}

// Resolver turns a package into an install plan.
type Resolver interface {
	Resolve(ctx context.Context, community, fullName string) (resolver.Plan, error)
}

// Installer applies plans and single installs to the mod store.
type Installer interface {
	ApplyPlan(ctx context.Context, plan resolver.Plan) []installer.Result
	InstallSingle(ctx context.Context, community, fullName string) ([]installer.Result, error)
	Uninstall(ctx context.Context, fullName string) installer.Result
	ListInstalled() ([]*mods.Record, error)
}

// Lifecycle controls the game server container.
type Lifecycle interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	Status(ctx context.Context) (container.State, error)
	Logs(ctx context.Context, tail int) (string, error)
}

// AutoStop reads and changes the idle auto-stop settings.
type AutoStop interface {
	Status() autostop.Status
	SetConfig(u autostop.Update) (autostop.Config, error)
}

// Backups manages world data archives.
type Backups interface {
	Create() (*backup.Backup, error)
	List() ([]*backup.Backup, error)
	Restore(filename string) error
	Delete(filename string) error
}

// History lists past installs and uninstalls.
type History interface {
	ListInstallEvents(fullName string, limit int) ([]*store.InstallEvent, error)
}

// Options wires the HTTP layer to its services. Nil services answer with
// 400 not_configured.
type Options struct {
	Index     thunderstore.Index
	Resolver  Resolver
	Installer Installer
	Server    Lifecycle
	AutoStop  AutoStop
	Backups   Backups
	History   History

	// PublicDir holds the static web UI. Ignored when it does not exist.
	PublicDir string

	Logger *log.Logger
}

// Handler serves the HTTP API.
type Handler struct {
	opts   Options
	logger *log.Logger
}

// New builds the fiber app with every route registered.
func New(opts Options) *fiber.App {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	h := &Handler{opts: opts, logger: logger.WithPrefix("http")}

	app := fiber.New(fiber.Config{
		AppName:               "thunderdockerman",
		DisableStartupMessage: true,
		ErrorHandler:          h.errorHandler,
		JSONEncoder:           marshalJSON,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${status} ${method} ${path} ${latency}\n",
		Output: h.logger.StandardLog(log.StandardLogOptions{ForceLevel: log.DebugLevel}).Writer(),
	}))

	h.Register(app)

	if opts.PublicDir != "" {
		if info, err := os.Stat(opts.PublicDir); err == nil && info.IsDir() {
			app.Static("/", opts.PublicDir)
		}
	}
	return app
}

// marshalJSON encodes without HTML escaping so version constraints such as
// ">=1.2.3" stay readable.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Register adds the API routes to app.
func (h *Handler) Register(app *fiber.App) {
	api := app.Group("/api")

	api.Get("/communities", h.ListCommunities)
	api.Get("/packages/:community", h.ListPackages)
	api.Get("/packages/:community/search", h.SearchPackages)
	api.Get("/packages/:community/:fullName", h.GetPackage)
	api.Get("/resolve/:community/:fullName", h.ResolvePlan)

	api.Get("/installed", h.ListInstalled)
	api.Get("/history", h.ListHistory)
	api.Post("/install", h.Install)
	api.Delete("/uninstall/:fullName", h.Uninstall)

	api.Post("/start-server", h.StartServer)
	api.Post("/stop-server", h.StopServer)
	api.Post("/restart-server", h.RestartServer)
	api.Get("/server-status", h.ServerStatus)
	api.Get("/server-logs", h.ServerLogs)

	api.Get("/settings/auto-stop", h.GetAutoStop)
	api.Post("/settings/auto-stop", h.SetAutoStop)

	api.Get("/backups", h.ListBackups)
	api.Post("/backups/create", h.CreateBackup)
	api.Post("/backups/restore", h.RestoreBackup)
	api.Delete("/backups/:filename", h.DeleteBackup)
}
