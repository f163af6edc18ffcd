// handlers/participant_routes.go
package handlers

import (
	"streak-tracker/middleware"
	"streak-tracker/models"
	"streak-tracker/services"

	"github.com/gofiber/fiber/v2"
)

func setupParticipantRoutes(secured, public fiber.Router, participants *services.ParticipantService) {
	secured.Post("/user/enroll", func(c *fiber.Ctx) error {
		name, email := middleware.UserProfile(c)
		role := models.RoleParticipant
		if middleware.HasRole(c, models.RoleAdmin) {
			role = models.RoleAdmin
		}
		p, err := participants.Ensure(c.UserContext(), middleware.UserID(c), name, email, role)
		if err != nil {
			return failService(c, "failed to enroll participant", err)
		}
		return c.JSON(p)
	})

	secured.Get("/user/streak", func(c *fiber.Ctx) error {
		p, err := participants.GetActive(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return failService(c, "failed to load streak", err)
		}
		return c.JSON(fiber.Map{
			"currentStreak":            p.CurrentStreak,
			"longestStreak":            p.LongestStreak,
			"lastSubmissionDate":       models.DatePtr(p.LastSubmissionDate),
			"firstSubmissionDate":      models.DatePtr(p.FirstSubmissionDate),
			"hasReachedThirtyProjects": p.HasReachedThirtyProjects,
			"points":                   p.Points,
		})
	})

	secured.Get("/user/profile", func(c *fiber.Ctx) error {
		profile, err := participants.Profile(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return failService(c, "failed to load profile", err)
		}
		return c.JSON(profile)
	})

	public.Get("/users/:id", func(c *fiber.Ctx) error {
		profile, err := participants.Profile(c.UserContext(), c.Params("id"))
		if err != nil {
			return failService(c, "failed to load profile", err)
		}
		// email stays private on the public view
		user := *profile.Participant
		user.Email = ""
		profile.Participant = &user
		return c.JSON(profile)
	})
}
