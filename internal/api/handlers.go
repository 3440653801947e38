package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/LulfLoot/ThunderDockerman/internal/autostop"
	"github.com/LulfLoot/ThunderDockerman/internal/container"
	"github.com/LulfLoot/ThunderDockerman/internal/installer"
	"github.com/LulfLoot/ThunderDockerman/internal/thunderstore"
)

func notConfigured(what string) error {
	return fmt.Errorf("%s: %w", what, container.ErrNotConfigured)
}

// Package index

func (h *Handler) ListCommunities(c *fiber.Ctx) error {
	if h.opts.Index == nil {
		return notConfigured("package index")
	}
	communities, err := h.opts.Index.ListCommunities(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(communities)
}

func (h *Handler) ListPackages(c *fiber.Ctx) error {
	if h.opts.Index == nil {
		return notConfigured("package index")
	}
	community := c.Params("community")
	if c.QueryBool("refresh") {
		if r, ok := h.opts.Index.(Refresher); ok {
			if err := r.Refresh(community); err != nil {
				return err
			}
		}
	}

	packages, err := h.opts.Index.ListPackages(c.UserContext(), community)
	if err != nil {
		return err
	}
	return c.JSON(packages)
}

func (h *Handler) SearchPackages(c *fiber.Ctx) error {
	if h.opts.Index == nil {
		return notConfigured("package index")
	}

	opts := thunderstore.SearchOptions{
		Query: c.Query("q"),
		Sort:  c.Query("sort", thunderstore.SortLastUpdated),
	}
	if raw := c.Query("categories"); raw != "" {
		for _, cat := range strings.Split(raw, ",") {
			if cat = strings.TrimSpace(cat); cat != "" {
				opts.Categories = append(opts.Categories, cat)
			}
		}
	}

	packages, err := h.opts.Index.Search(c.UserContext(), c.Params("community"), opts)
	if err != nil {
		return err
	}
	return c.JSON(packages)
}

func (h *Handler) GetPackage(c *fiber.Ctx) error {
	if h.opts.Index == nil {
		return notConfigured("package index")
	}
	pkg, err := h.opts.Index.GetByFullName(c.UserContext(), c.Params("community"), c.Params("fullName"))
	if err != nil {
		return err
	}
	return c.JSON(pkg)
}

func (h *Handler) ResolvePlan(c *fiber.Ctx) error {
	if h.opts.Resolver == nil {
		return notConfigured("resolver")
	}
	plan, err := h.opts.Resolver.Resolve(c.UserContext(), c.Params("community"), c.Params("fullName"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"plan": plan})
}

// Mods

func (h *Handler) ListInstalled(c *fiber.Ctx) error {
	if h.opts.Installer == nil {
		return notConfigured("mod store")
	}
	records, err := h.opts.Installer.ListInstalled()
	if err != nil {
		return err
	}
	return c.JSON(records)
}

func (h *Handler) ListHistory(c *fiber.Ctx) error {
	if h.opts.History == nil {
		return notConfigured("install history")
	}
	events, err := h.opts.History.ListInstallEvents(c.Query("fullName"), c.QueryInt("limit", 100))
	if err != nil {
		return err
	}
	return c.JSON(events)
}

// InstallRequest is the body of POST /api/install.
type InstallRequest struct {
	Community   string `json:"community"`
	FullName    string `json:"fullName"`
	IncludeDeps bool   `json:"includeDeps"`
}

func (h *Handler) Install(c *fiber.Ctx) error {
	if h.opts.Installer == nil || h.opts.Resolver == nil {
		return notConfigured("mod store")
	}

	var req InstallRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Community == "" || req.FullName == "" {
		return badRequest(c, "community and fullName required")
	}

	// A client that disconnects must not abort an install halfway.
	ctx := context.WithoutCancel(c.UserContext())

	var results []installer.Result
	if req.IncludeDeps {
		plan, err := h.opts.Resolver.Resolve(ctx, req.Community, req.FullName)
		if err != nil {
			return err
		}
		results = h.opts.Installer.ApplyPlan(ctx, plan)
	} else {
		var err error
		results, err = h.opts.Installer.InstallSingle(ctx, req.Community, req.FullName)
		if err != nil {
			return err
		}
	}
	return c.JSON(fiber.Map{"results": results})
}

func (h *Handler) Uninstall(c *fiber.Ctx) error {
	if h.opts.Installer == nil {
		return notConfigured("mod store")
	}
	result := h.opts.Installer.Uninstall(context.WithoutCancel(c.UserContext()), c.Params("fullName"))
	return c.JSON(result)
}

// Server lifecycle

func (h *Handler) lifecycle(c *fiber.Ctx, verb string, fn func(context.Context) error) error {
	if err := fn(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": fmt.Sprintf("%s %s", verb, h.opts.Server.Name()),
	})
}

func (h *Handler) StartServer(c *fiber.Ctx) error {
	if h.opts.Server == nil {
		return container.ErrNotConfigured
	}
	return h.lifecycle(c, "Started", h.opts.Server.Start)
}

func (h *Handler) StopServer(c *fiber.Ctx) error {
	if h.opts.Server == nil {
		return container.ErrNotConfigured
	}
	return h.lifecycle(c, "Stopped", h.opts.Server.Stop)
}

func (h *Handler) RestartServer(c *fiber.Ctx) error {
	if h.opts.Server == nil {
		return container.ErrNotConfigured
	}
	return h.lifecycle(c, "Restarted", h.opts.Server.Restart)
}

func (h *Handler) ServerStatus(c *fiber.Ctx) error {
	if h.opts.Server == nil {
		return container.ErrNotConfigured
	}
	state, err := h.opts.Server.Status(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(state)
}

func (h *Handler) ServerLogs(c *fiber.Ctx) error {
	if h.opts.Server == nil {
		return container.ErrNotConfigured
	}
	logs, err := h.opts.Server.Logs(c.UserContext(), c.QueryInt("tail", container.DefaultLogTail))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"logs": logs})
}

// Auto-stop

func (h *Handler) GetAutoStop(c *fiber.Ctx) error {
	if h.opts.AutoStop == nil {
		return notConfigured("auto-stop")
	}
	return c.JSON(h.opts.AutoStop.Status())
}

func (h *Handler) SetAutoStop(c *fiber.Ctx) error {
	if h.opts.AutoStop == nil {
		return notConfigured("auto-stop")
	}

	var update autostop.Update
	if err := c.BodyParser(&update); err != nil {
		return badRequest(c, "invalid request body")
	}
	cfg, err := h.opts.AutoStop.SetConfig(update)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "config": cfg})
}

// Backups

func (h *Handler) ListBackups(c *fiber.Ctx) error {
	if h.opts.Backups == nil {
		return notConfigured("backups")
	}
	backups, err := h.opts.Backups.List()
	if err != nil {
		return err
	}
	return c.JSON(backups)
}

func (h *Handler) CreateBackup(c *fiber.Ctx) error {
	if h.opts.Backups == nil {
		return notConfigured("backups")
	}
	b, err := h.opts.Backups.Create()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"filename": b.Filename,
		"message":  "Backup created successfully",
	})
}

// RestoreRequest is the body of POST /api/backups/restore.
type RestoreRequest struct {
	Filename string `json:"filename"`
}

func (h *Handler) RestoreBackup(c *fiber.Ctx) error {
	if h.opts.Backups == nil {
		return notConfigured("backups")
	}

	var req RestoreRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Filename == "" {
		return badRequest(c, "Filename required")
	}
	if err := h.opts.Backups.Restore(req.Filename); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "Restored " + req.Filename})
}

func (h *Handler) DeleteBackup(c *fiber.Ctx) error {
	if h.opts.Backups == nil {
		return notConfigured("backups")
	}
	if err := h.opts.Backups.Delete(c.Params("filename")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "Backup deleted"})
}
