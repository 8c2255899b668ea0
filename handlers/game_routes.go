package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"chess-mint-rewards/middleware"
	"chess-mint-rewards/services"
)

const RoleGameServer = "game-server"

// SetupGameRoutes mounts milestone and progress routes on the secured router.
func SetupGameRoutes(secured fiber.Router, milestones *services.MilestoneService, ledger *services.RewardLedger, logger *zap.Logger) {
	// Results come from the game server after adjudication, never from players.
	secured.Post("/games/results", requireRole(RoleGameServer), func(c *fiber.Ctx) error {
		var in services.GameResultInput
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "invalid body",
				"details": err.Error(),
			})
		}

		out, err := milestones.RecordGameResult(c.UserContext(), in)
		switch {
		case errors.Is(err, services.ErrInvalidGameResult):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "invalid game result",
				"details": err.Error(),
			})
		case errors.Is(err, services.ErrPlayerNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "player not found"})
		case errors.Is(err, services.ErrDuplicateResult):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "game result already recorded"})
		case err != nil:
			logger.Error("record game result failed", zap.String("game_id", in.GameID), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "failed to record game result",
				"details": err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(out)
	})

	secured.Get("/players/me/progress", func(c *fiber.Ctx) error {
		prog, err := milestones.GetProgress(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "DB error fetching progress",
				"details": err.Error(),
			})
		}
		return c.JSON(prog)
	})

	secured.Get("/players/me/rewards", func(c *fiber.Ctx) error {
		rows, err := ledger.ListEarned(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "DB error fetching rewards",
				"details": err.Error(),
			})
		}
		return c.JSON(rows)
	})
}

func requireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if middleware.HasRole(c, role) {
			return c.Next()
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "role " + role + " required",
		})
	}
}
