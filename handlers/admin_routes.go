// handlers/admin_routes.go
package handlers

import (
	"strconv"

	"streak-tracker/services"

	"github.com/gofiber/fiber/v2"
)

func setupAdminRoutes(admin fiber.Router, participants *services.ParticipantService, cleanup *services.CleanupService,
	scheduler *services.CleanupScheduler, reconciler *services.Reconciler) {
	admin.Get("/participants", func(c *fiber.Ctx) error {
		list, err := participants.AdminList(c.UserContext())
		if err != nil {
			return fail(c, fiber.StatusInternalServerError, "failed to list participants", err)
		}
		return c.JSON(list)
	})

	admin.Get("/participants/:id/audit", func(c *fiber.Ctx) error {
		audit, err := reconciler.Audit(c.UserContext(), c.Params("id"))
		if err != nil {
			return failService(c, "failed to audit participant", err)
		}
		return c.JSON(audit)
	})

	admin.Post("/participants/:id/repair", func(c *fiber.Ctx) error {
		audit, err := reconciler.Repair(c.UserContext(), c.Params("id"))
		if err != nil {
			return failService(c, "failed to repair participant", err)
		}
		return c.JSON(fiber.Map{"repaired": audit.Drift, "audit": audit})
	})

	admin.Get("/stats", func(c *fiber.Ctx) error {
		stats, err := participants.Stats(c.UserContext())
		if err != nil {
			return fail(c, fiber.StatusInternalServerError, "failed to compute stats", err)
		}
		return c.JSON(stats)
	})

	runCleanup := func(c *fiber.Ctx) error {
		res, err := scheduler.RunNow(c.UserContext())
		if err != nil {
			return fail(c, fiber.StatusInternalServerError, "Error during cleanup", err)
		}
		return c.JSON(fiber.Map{
			"message": "Cleanup completed",
			"result":  res,
		})
	}
	admin.Post("/cleanup", runCleanup)
	admin.Post("/cleanup/now", runCleanup)

	admin.Get("/cleanup/runs", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "20"))
		runs, err := cleanup.RecentRuns(c.UserContext(), limit)
		if err != nil {
			return fail(c, fiber.StatusInternalServerError, "failed to list cleanup runs", err)
		}
		return c.JSON(runs)
	})

	admin.Get("/scheduler/status", func(c *fiber.Ctx) error {
		return c.JSON(scheduler.Status())
	})

	admin.Post("/scheduler/start", func(c *fiber.Ctx) error {
		var req struct {
			Schedule string `json:"schedule"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fail(c, fiber.StatusBadRequest, "invalid request body", err)
			}
		}
		started, err := scheduler.Start(req.Schedule)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "failed to start scheduler", err)
		}
		msg := "Cleanup scheduler started"
		if !started {
			msg = "Cleanup scheduler is already running"
		}
		return c.JSON(fiber.Map{"message": msg, "started": started, "status": scheduler.Status()})
	})

	admin.Post("/scheduler/stop", func(c *fiber.Ctx) error {
		stopped, err := scheduler.Stop()
		if err != nil {
			return fail(c, fiber.StatusInternalServerError, "failed to stop scheduler", err)
		}
		msg := "Cleanup scheduler stopped"
		if !stopped {
			msg = "Cleanup scheduler is not running"
		}
		return c.JSON(fiber.Map{"message": msg, "stopped": stopped})
	})
}
