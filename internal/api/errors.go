package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/LulfLoot/ThunderDockerman/internal/autostop"
	"github.com/LulfLoot/ThunderDockerman/internal/backup"
	"github.com/LulfLoot/ThunderDockerman/internal/container"
	"github.com/LulfLoot/ThunderDockerman/internal/mods"
	"github.com/LulfLoot/ThunderDockerman/internal/resolver"
	"github.com/LulfLoot/ThunderDockerman/internal/thunderstore"
)

// Error codes returned in the "code" field of error responses.
const (
	CodeBadRequest          = "bad_request"
	CodeNotConfigured       = "not_configured"
	CodeUnknownCommunity    = "unknown_community"
	CodePackageNotFound     = "package_not_found"
	CodeNotInstalled        = "not_installed"
	CodeInvalidName         = "invalid_name"
	CodeInvalidSort         = "invalid_sort"
	CodeCyclicDependency    = "cyclic_dependency"
	CodeUnresolvableVersion = "unresolvable_version"
	CodeVersionConflict     = "version_conflict"
	CodeContainerNotFound   = "container_not_found"
	CodeRuntimeUnavailable  = "runtime_unavailable"
	CodeInvalidTimeout      = "invalid_timeout"
	CodeSourceMissing       = "source_missing"
	CodeInvalidFilename     = "invalid_filename"
	CodeBackupNotFound      = "backup_not_found"
	CodeRouteNotFound       = "route_not_found"
	CodeInternal            = "internal"
)

var errorStatus = []struct {
	target error
	status int
	code   string
}{
	{container.ErrNotConfigured, fiber.StatusBadRequest, CodeNotConfigured},
	{container.ErrRuntimeUnavailable, fiber.StatusServiceUnavailable, CodeRuntimeUnavailable},
	{container.ErrContainerNotFound, fiber.StatusNotFound, CodeContainerNotFound},
	{thunderstore.ErrUnknownCommunity, fiber.StatusNotFound, CodeUnknownCommunity},
	{thunderstore.ErrPackageNotFound, fiber.StatusNotFound, CodePackageNotFound},
	{thunderstore.ErrInvalidSort, fiber.StatusBadRequest, CodeInvalidSort},
	{resolver.ErrCyclicDependency, fiber.StatusUnprocessableEntity, CodeCyclicDependency},
	{resolver.ErrUnresolvableVersion, fiber.StatusUnprocessableEntity, CodeUnresolvableVersion},
	{resolver.ErrVersionConflict, fiber.StatusConflict, CodeVersionConflict},
	{mods.ErrNotInstalled, fiber.StatusNotFound, CodeNotInstalled},
	{mods.ErrInvalidName, fiber.StatusBadRequest, CodeInvalidName},
	{autostop.ErrInvalidTimeout, fiber.StatusBadRequest, CodeInvalidTimeout},
	{backup.ErrSourceMissing, fiber.StatusNotFound, CodeSourceMissing},
	{backup.ErrInvalidFilename, fiber.StatusBadRequest, CodeInvalidFilename},
	{backup.ErrBackupNotFound, fiber.StatusNotFound, CodeBackupNotFound},
}

// classify maps a domain error onto an HTTP status and error code.
func classify(err error) (int, string) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		if fe.Code == fiber.StatusNotFound {
			return fe.Code, CodeRouteNotFound
		}
		return fe.Code, CodeBadRequest
	}
	for _, e := range errorStatus {
		if errors.Is(err, e.target) {
			return e.status, e.code
		}
	}
	return fiber.StatusInternalServerError, CodeInternal
}

func writeError(c *fiber.Ctx, status int, code, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
		"code":  code,
	})
}

// errorHandler renders every error returned by a handler as
// {"error": ..., "code": ...}.
func (h *Handler) errorHandler(c *fiber.Ctx, err error) error {
	status, code := classify(err)
	if status >= fiber.StatusInternalServerError {
		h.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "err", err)
	}
	return writeError(c, status, code, err.Error())
}

func badRequest(c *fiber.Ctx, msg string) error {
	return writeError(c, fiber.StatusBadRequest, CodeBadRequest, msg)
}
