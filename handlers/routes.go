// handlers/routes.go
package handlers

import (
	"streak-tracker/middleware"
	"streak-tracker/models"
	"streak-tracker/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Services is everything the HTTP layer calls into.
type Services struct {
	Submissions  *services.SubmissionService
	Participants *services.ParticipantService
	Cleanup      *services.CleanupService
	Scheduler    *services.CleanupScheduler
	Reconciler   *services.Reconciler
	// Window gates project submissions by wall-clock hour.
	Window fiber.Handler
}

// SetupRoutes registers public routes at the root, user routes under /s and
// admin routes under /s/admin.
func SetupRoutes(app *fiber.App, svc Services, logger *zap.Logger) {
	if svc.Window == nil {
		svc.Window = func(c *fiber.Ctx) error { return c.Next() }
	}

	secured := app.Group("/s", middleware.UserContextMiddleware(logger))
	admin := secured.Group("/admin", middleware.RequireRole(models.RoleAdmin))

	setupSubmissionRoutes(secured, app, svc.Submissions, svc.Window)
	setupParticipantRoutes(secured, app, svc.Participants)
	setupAdminRoutes(admin, svc.Participants, svc.Cleanup, svc.Scheduler, svc.Reconciler)
}
