package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chess-mint-rewards/realtime"
)

const writeWait = 10 * time.Second

type Config struct {
	ServerURL     string // e.g. wss://rewards.example/ws
	Token         string
	DeviceID      string
	PlayerAddress string
}

// Session is one authenticated realtime connection to the rewards server.
type Session struct {
	cfg    Config
	conn   *websocket.Conn
	logger *zap.Logger

	writeMu sync.Mutex

	// OnNotice, if set, receives mint-completed notices.
	OnNotice func(realtime.MintCompletedNotice)
}

// Dial opens the websocket, authenticating with token and device id query params.
func Dial(ctx context.Context, cfg Config, logger *zap.Logger) (*Session, error) {
	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	q := u.Query()
	q.Set("token", cfg.Token)
	q.Set("device_id", cfg.DeviceID)
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.ServerURL, err)
	}
	return &Session{cfg: cfg, conn: conn, logger: logger}, nil
}

// Send writes one client message.
func (s *Session) Send(msg realtime.ClientMessage) error {
	data, err := realtime.EncodeClient(msg)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Run joins the player's room and feeds mint-now instructions to an executor
// until ctx is cancelled or the connection drops.
func (s *Session) Run(ctx context.Context, signer Signer, opts ...Option) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	exec := NewExecutor(s.cfg.PlayerAddress, signer, func(r realtime.MintCompletedReport) error {
		return s.Send(r)
	}, s.logger, opts...)
	exec.Start(ctx)

	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	if err := s.Send(realtime.JoinRoom{PlayerAddress: s.cfg.PlayerAddress}); err != nil {
		return fmt.Errorf("join room: %w", err)
	}

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		msg, err := realtime.DecodeServerMessage(raw)
		if err != nil {
			s.logger.Warn("ignoring server message", zap.Error(err))
			continue
		}

		switch m := msg.(type) {
		case realtime.MintNow:
			exec.Submit(m)
		case realtime.MintCompletedNotice:
			if s.OnNotice != nil {
				s.OnNotice(m)
			}
		case realtime.RoomJoined:
			s.logger.Info("joined room", zap.String("player_address", m.PlayerAddress), zap.Int("actionable", m.Actionable))
		case realtime.ErrorMessage:
			s.logger.Warn("server error", zap.String("reason", m.Reason), zap.String("detail", m.Detail))
		}
	}
}

func (s *Session) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}
