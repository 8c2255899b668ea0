package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"chess-mint-rewards/services"
)

// TokenValidator resolves a player session token.
type TokenValidator interface {
	ValidateToken(ctx context.Context, accessToken, deviceID string) (*services.StreamIdentity, error)
}

// StreamAuthMiddleware authenticates a websocket upgrade from the `token`
// and `device_id` query params.
func StreamAuthMiddleware(validator TokenValidator, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(c.Query("token"))
		deviceID := strings.TrimSpace(c.Query("device_id"))

		if accessToken == "" || deviceID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing token or device_id in query",
			})
		}

		id, err := validator.ValidateToken(c.UserContext(), accessToken, deviceID)
		if errors.Is(err, services.ErrInvalidSession) {
			logger.Warn("stream auth refused",
				zap.String("path", c.Path()),
				zap.String("device_id", deviceID))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		if err != nil {
			logger.Error("stream auth unavailable", zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "auth service unavailable",
			})
		}

		c.Locals(LocalUserID, id.UserID)
		c.Locals(LocalDeviceID, id.DeviceID)
		c.Locals(LocalUserRoles, id.Roles)
		return c.Next()
	}
}
