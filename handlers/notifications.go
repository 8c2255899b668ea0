package handlers

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"chess-mint-rewards/middleware"
	"chess-mint-rewards/realtime"
	"chess-mint-rewards/services"
)

const streamBuffer = 16

var errStreamFull = errors.New("notification stream buffer full")

// streamConn is a notify-only SSE connection; it never receives mint-now.
type streamConn struct {
	id     string
	events chan []byte
}

func newStreamConn() *streamConn {
	return &streamConn{id: uuid.NewString(), events: make(chan []byte, streamBuffer)}
}

func (s *streamConn) ID() string              { return s.id }
func (s *streamConn) Kind() realtime.ConnKind { return realtime.KindNotify }

func (s *streamConn) Send(msg realtime.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	frame := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", msg.ServerType(), payload))
	select {
	case s.events <- frame:
		return nil
	default:
		return errStreamFull
	}
}

// SetupNotificationRoutes mounts GET /notifications/stream on the secured router.
func SetupNotificationRoutes(secured fiber.Router, deps MintDeps) {
	secured.Get("/notifications/stream", func(c *fiber.Ctx) error {
		userID := middleware.UserID(c)
		player, err := deps.Players.Get(c.UserContext(), userID)
		if errors.Is(err, services.ErrPlayerNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "player not found"})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "failed to load player",
				"details": err.Error(),
			})
		}
		if player.WalletAddress == "" {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "player has no wallet address"})
		}

		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("X-Accel-Buffering", "no")

		conn := newStreamConn()
		deps.Registry.Join(player.WalletAddress, conn)
		logger := deps.Logger.With(zap.String("conn_id", conn.ID()), zap.String("player_id", userID))

		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer deps.Registry.Drop(conn.ID())
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()

			w.WriteString(":\n\n")
			if err := w.Flush(); err != nil {
				return
			}

			for {
				select {
				case frame := <-conn.events:
					w.Write(frame)
				case <-ticker.C:
					w.WriteString(": keepalive\n\n")
				}
				if err := w.Flush(); err != nil {
					logger.Debug("notification stream closed", zap.Error(err))
					return
				}
			}
		})
		return nil
	})
}
