package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// SubmissionWindow only lets requests through when the wall-clock hour in
// loc is in [startHour, endHour). now may be nil.
func SubmissionWindow(startHour, endHour int, loc *time.Location, now func() time.Time) fiber.Handler {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	msg := fmt.Sprintf("Project submissions are only allowed between %s and %s",
		clockLabel(startHour, 0), clockLabel(endHour-1, 59))

	return func(c *fiber.Ctx) error {
		hour := now().In(loc).Hour()
		if hour < startHour || hour >= endHour {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": msg,
			})
		}
		return c.Next()
	}
}

func clockLabel(hour, minute int) string {
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	h := hour % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, minute, suffix)
}
