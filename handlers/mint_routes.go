package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"chess-mint-rewards/middleware"
	"chess-mint-rewards/models"
	"chess-mint-rewards/realtime"
	"chess-mint-rewards/services"
)

// MintDeps bundles the services the mint HTTP and realtime surfaces share.
type MintDeps struct {
	Store      *services.TaskStore
	Gateway    *services.MintGateway
	Reconciler *services.Reconciler
	Reclaimer  *services.Reclaimer
	Players    *services.PlayerDirectory
	Registry   *realtime.Registry
	Logger     *zap.Logger
}

type requestMintBody struct {
	PlayerAddress string                 `json:"playerAddress"`
	RewardType    string                 `json:"rewardType"`
	Context       map[string]interface{} `json:"context"`
}

type completeBody struct {
	ObjectID     string `json:"objectId"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage"`
}

// SetupMintRoutes mounts the mint task API on a router already guarded by UserContextMiddleware.
func SetupMintRoutes(secured fiber.Router, deps MintDeps) {
	secured.Post("/mints", func(c *fiber.Ctx) error {
		var body requestMintBody
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "invalid body",
				"details": err.Error(),
			})
		}

		res, err := deps.Gateway.RequestMint(c.UserContext(), services.MintRequest{
			PlayerID:      middleware.UserID(c),
			PlayerAddress: body.PlayerAddress,
			RewardType:    models.RewardType(body.RewardType),
			Context:       body.Context,
		})
		if err != nil {
			deps.Logger.Error("request mint failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to enqueue mint",
			})
		}
		if !res.Accepted {
			return c.Status(rejectStatus(res.Reason)).JSON(res)
		}
		return c.Status(fiber.StatusAccepted).JSON(res)
	})

	secured.Get("/mints", func(c *fiber.Ctx) error {
		tasks, err := deps.Store.ListForPlayer(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "failed to list mint tasks",
				"details": err.Error(),
			})
		}
		return c.JSON(tasks)
	})

	secured.Get("/mints/pending", func(c *fiber.Ctx) error {
		address := strings.TrimSpace(c.Query("address"))
		if !models.ValidAddress(address) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "address query param must be a wallet address",
			})
		}
		owns, err := deps.Players.OwnsAddress(c.UserContext(), middleware.UserID(c), address)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "failed to verify address",
				"details": err.Error(),
			})
		}
		if !owns {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": services.ErrNotOwner.Error(),
			})
		}

		tasks, err := deps.Reclaimer.ListActionable(c.UserContext(), address)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "failed to list pending mints",
				"details": err.Error(),
			})
		}
		return c.JSON(pendingTasks(tasks))
	})

	secured.Post("/mints/:id/complete", func(c *fiber.Ctx) error {
		var body completeBody
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "invalid body",
				"details": err.Error(),
			})
		}

		res, err := deps.Reconciler.Complete(c.UserContext(), services.Completion{
			TaskID:       c.Params("id"),
			ObjectID:     body.ObjectID,
			Success:      body.Success,
			ErrorMessage: body.ErrorMessage,
			ReportedBy:   middleware.UserID(c),
		})
		switch {
		case errors.Is(err, services.ErrInvalidCompletion):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "invalid completion",
				"details": "objectId is required when success is true",
			})
		case errors.Is(err, services.ErrNotOwner):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "task belongs to another player",
			})
		case err != nil:
			deps.Logger.Error("completion failed", zap.String("task_id", c.Params("id")), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to record completion",
			})
		}
		return c.JSON(res)
	})
}

func rejectStatus(reason services.RejectReason) int {
	switch reason {
	case services.RejectUnknownPlayer:
		return fiber.StatusNotFound
	case services.RejectPlayerBanned, services.RejectAddressNotOwned:
		return fiber.StatusForbidden
	case services.RejectAlreadyEarned, services.RejectTaskAlreadyActive:
		return fiber.StatusConflict
	default:
		return fiber.StatusUnprocessableEntity
	}
}

func pendingTasks(tasks []models.MintTask) []realtime.PendingTask {
	out := make([]realtime.PendingTask, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, realtime.PendingTask{
			ID:            t.ID,
			RewardType:    string(t.RewardType),
			PlayerID:      t.PlayerID,
			PlayerAddress: t.PlayerAddress,
			CreatedAt:     t.CreatedAt,
		})
	}
	return out
}
