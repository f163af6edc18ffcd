// handlers/errors.go
package handlers

import (
	"errors"

	"streak-tracker/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// fail writes the {"error","cause"} body used by every route.
func fail(c *fiber.Ctx, status int, msg string, err error) error {
	body := fiber.Map{"error": msg}
	if err != nil {
		body["cause"] = err.Error()
	}
	return c.Status(status).JSON(body)
}

// failService maps service sentinel errors to HTTP statuses.
func failService(c *fiber.Ctx, msg string, err error) error {
	switch {
	case errors.Is(err, services.ErrParticipantNotFound):
		return fail(c, fiber.StatusNotFound, "participant not found", err)
	case errors.Is(err, services.ErrParticipantDeleted):
		return fail(c, fiber.StatusForbidden, "participant account is deactivated", err)
	case errors.Is(err, services.ErrInvalidSubmission):
		return fail(c, fiber.StatusBadRequest, msg, err)
	case errors.Is(err, services.ErrConcurrentUpdate):
		return fail(c, fiber.StatusConflict, "participant is being updated, try again", err)
	default:
		return fail(c, fiber.StatusInternalServerError, msg, err)
	}
}

// fieldErrors flattens validator output to field -> failed tag.
func fieldErrors(err error) fiber.Map {
	out := fiber.Map{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			out[fe.Field()] = fe.Tag()
		}
	}
	return out
}
