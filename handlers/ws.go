package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"chess-mint-rewards/middleware"
	"chess-mint-rewards/realtime"
)

const writeWait = 10 * time.Second

// socketConn is an executor-capable realtime connection.
type socketConn struct {
	id string
	ws *websocket.Conn
	mu sync.Mutex
}

func (s *socketConn) ID() string              { return s.id }
func (s *socketConn) Kind() realtime.ConnKind { return realtime.KindExecutor }

func (s *socketConn) Send(msg realtime.ServerMessage) error {
	data, err := realtime.Encode(msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.ws.WriteMessage(websocket.TextMessage, data)
}

// SetupRealtimeRoutes mounts GET /ws. auth must populate the user id local.
func SetupRealtimeRoutes(app *fiber.App, auth fiber.Handler, deps MintDeps) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws", auth, websocket.New(func(c *websocket.Conn) {
		playerID, _ := c.Locals(middleware.LocalUserID).(string)
		conn := &socketConn{id: uuid.NewString(), ws: c}
		sess := newSession(playerID, conn, deps)
		defer sess.close()

		sess.logger.Info("realtime connection opened")
		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					sess.logger.Warn("realtime connection dropped", zap.Error(err))
				}
				return
			}
			sess.handle(context.Background(), raw)
		}
	}))
}
