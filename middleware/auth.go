// middleware/auth.go
package middleware

import (
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	localUserID    = "user_id"
	localUserRoles = "user_roles"
	localUserName  = "user_name"
	localUserEmail = "user_email"
)

// UserContextMiddleware extracts user identity and roles set by Gateway.
// Routes under /s/ must carry X-User-ID.
func UserContextMiddleware(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		rolesStr := c.Get("X-User-Roles")

		path := c.Path()
		if strings.HasPrefix(path, "/s/") && userID == "" {
			logger.Warn("X-User-ID missing on secured route", zap.String("path", path))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID: request must come through gateway with auth context",
			})
		}

		var roles []string
		for _, r := range strings.Split(rolesStr, ",") {
			if r = strings.TrimSpace(strings.ToLower(r)); r != "" {
				roles = append(roles, r)
			}
		}

		c.Locals(localUserID, userID)
		c.Locals(localUserRoles, roles)
		c.Locals(localUserName, c.Get("X-User-Name"))
		c.Locals(localUserEmail, c.Get("X-User-Email"))

		logger.Debug("user context", zap.String("user_id", userID), zap.Strings("roles", roles), zap.String("path", path))
		return c.Next()
	}
}

// RequireRole rejects callers whose gateway roles do not include role.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !HasRole(c, role) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "forbidden",
				"cause": "requires role " + role,
			})
		}
		return c.Next()
	}
}

func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(localUserID).(string)
	return id
}

func UserRoles(c *fiber.Ctx) []string {
	roles, _ := c.Locals(localUserRoles).([]string)
	return roles
}

func HasRole(c *fiber.Ctx, role string) bool {
	return slices.Contains(UserRoles(c), role)
}

// UserProfile returns the display name and email the gateway forwarded.
func UserProfile(c *fiber.Ctx) (name, email string) {
	name, _ = c.Locals(localUserName).(string)
	email, _ = c.Locals(localUserEmail).(string)
	return name, email
}
