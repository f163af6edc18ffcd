// handlers/submission_routes.go
package handlers

import (
	"reflect"
	"strconv"
	"strings"

	"streak-tracker/middleware"
	"streak-tracker/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type submitProjectRequest struct {
	Name         string   `json:"name" validate:"required"`
	Description  string   `json:"description" validate:"min=150"`
	LiveLink     string   `json:"liveLink" validate:"required,url"`
	GithubLink   string   `json:"githubLink" validate:"required,url"`
	Technologies []string `json:"technologies" validate:"min=1,dive,required"`
}

func (r *submitProjectRequest) trim() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	r.LiveLink = strings.TrimSpace(r.LiveLink)
	r.GithubLink = strings.TrimSpace(r.GithubLink)
}

func setupSubmissionRoutes(secured, public fiber.Router, submissions *services.SubmissionService, window fiber.Handler) {
	secured.Post("/projects", window, func(c *fiber.Ctx) error {
		var req submitProjectRequest
		if err := c.BodyParser(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid request body", err)
		}
		req.trim()
		if err := validate.Struct(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":  "validation failed",
				"fields": fieldErrors(err),
			})
		}

		res, err := submissions.Submit(c.UserContext(), middleware.UserID(c), services.SubmissionInput{
			Name:         req.Name,
			Description:  req.Description,
			LiveLink:     req.LiveLink,
			GithubLink:   req.GithubLink,
			Technologies: req.Technologies,
		})
		if err != nil {
			return failService(c, "failed to submit project", err)
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message": "Project submitted successfully",
			"project": res.Submission,
			"streak": fiber.Map{
				"currentStreak":            res.Participant.CurrentStreak,
				"longestStreak":            res.Participant.LongestStreak,
				"points":                   res.Participant.Points,
				"hasReachedThirtyProjects": res.Participant.HasReachedThirtyProjects,
				"outcome":                  res.Outcome,
			},
		})
	})

	secured.Get("/projects/mine", func(c *fiber.Ctx) error {
		subs, err := submissions.ListByOwner(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return fail(c, fiber.StatusInternalServerError, "failed to list projects", err)
		}
		return c.JSON(subs)
	})

	public.Get("/projects", func(c *fiber.Ctx) error {
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "20"))
		subs, total, err := submissions.ListAll(c.UserContext(), page, size)
		if err != nil {
			return fail(c, fiber.StatusInternalServerError, "failed to list projects", err)
		}
		return c.JSON(fiber.Map{
			"projects": subs,
			"total":    total,
			"page":     max(page, 1),
		})
	})
}
