package handlers

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"chess-mint-rewards/models"
	"chess-mint-rewards/realtime"
	"chess-mint-rewards/services"
)

// session handles client messages for one authenticated realtime connection.
type session struct {
	playerID string
	conn     realtime.Conn
	deps     MintDeps
	logger   *zap.Logger
}

func newSession(playerID string, conn realtime.Conn, deps MintDeps) *session {
	return &session{
		playerID: playerID,
		conn:     conn,
		deps:     deps,
		logger:   deps.Logger.With(zap.String("conn_id", conn.ID()), zap.String("player_id", playerID)),
	}
}

// handle decodes and applies one frame. Malformed frames get an error reply
// and the connection stays open.
func (s *session) handle(ctx context.Context, raw []byte) {
	msg, err := realtime.DecodeClientMessage(raw)
	if err != nil {
		s.reply(realtime.ErrorMessage{Reason: "malformed_message", Detail: err.Error()})
		return
	}

	switch m := msg.(type) {
	case realtime.JoinRoom:
		s.join(ctx, m.PlayerAddress)
	case realtime.LeaveRoom:
		s.deps.Registry.Leave(m.PlayerAddress, s.conn.ID())
		s.reply(realtime.RoomLeft{PlayerAddress: models.NormalizeAddress(m.PlayerAddress)})
	case realtime.RequestMint:
		s.requestMint(ctx, m)
	case realtime.MintCompletedReport:
		s.complete(ctx, m)
	case realtime.ListPending:
		s.listPending(ctx, m.PlayerAddress)
	}
}

func (s *session) close() {
	s.deps.Registry.Drop(s.conn.ID())
}

func (s *session) ownsAddress(ctx context.Context, address string) bool {
	owns, err := s.deps.Players.OwnsAddress(ctx, s.playerID, address)
	if err != nil {
		s.logger.Error("ownership check failed", zap.Error(err))
		s.reply(realtime.ErrorMessage{Reason: "internal_error"})
		return false
	}
	if !owns {
		s.reply(realtime.ErrorMessage{Reason: "not_owner", Detail: "address is not linked to this player"})
	}
	return owns
}

func (s *session) join(ctx context.Context, address string) {
	if !s.ownsAddress(ctx, address) {
		return
	}
	s.deps.Registry.Join(address, s.conn)

	tasks, err := s.deps.Reclaimer.OnJoin(ctx, address)
	if err != nil {
		s.logger.Error("reclaim on join failed", zap.Error(err))
	}
	s.reply(realtime.RoomJoined{PlayerAddress: models.NormalizeAddress(address), Actionable: len(tasks)})
}

func (s *session) requestMint(ctx context.Context, m realtime.RequestMint) {
	if m.PlayerID != s.playerID {
		s.reply(realtime.ErrorMessage{Reason: "not_owner", Detail: "playerId does not match the session"})
		return
	}
	res, err := s.deps.Gateway.RequestMint(ctx, services.MintRequest{
		PlayerID:      m.PlayerID,
		PlayerAddress: m.PlayerAddress,
		RewardType:    models.RewardType(m.RewardType),
	})
	if err != nil {
		s.logger.Error("request mint failed", zap.Error(err))
		s.reply(realtime.ErrorMessage{Reason: "internal_error"})
		return
	}
	s.reply(realtime.RequestResult{Accepted: res.Accepted, TaskID: res.TaskID, Reason: string(res.Reason)})
}

func (s *session) complete(ctx context.Context, m realtime.MintCompletedReport) {
	res, err := s.deps.Reconciler.Complete(ctx, services.Completion{
		TaskID:       m.TaskID,
		ObjectID:     m.ObjectID,
		Success:      m.Success,
		ErrorMessage: m.ErrorMessage,
		ReportedBy:   s.playerID,
	})
	switch {
	case errors.Is(err, services.ErrNotOwner):
		s.reply(realtime.ErrorMessage{Reason: "not_owner", Detail: "task belongs to another player"})
		return
	case err != nil:
		s.logger.Error("completion failed", zap.String("task_id", m.TaskID), zap.Error(err))
		s.reply(realtime.ErrorMessage{Reason: "internal_error"})
		return
	}
	s.reply(realtime.CompletionAck{TaskID: m.TaskID, Applied: res.Applied})
}

func (s *session) listPending(ctx context.Context, address string) {
	if !s.ownsAddress(ctx, address) {
		return
	}
	tasks, err := s.deps.Reclaimer.ListActionable(ctx, address)
	if err != nil {
		s.logger.Error("list pending failed", zap.Error(err))
		s.reply(realtime.ErrorMessage{Reason: "internal_error"})
		return
	}
	s.reply(realtime.PendingList{Tasks: pendingTasks(tasks)})
}

func (s *session) reply(msg realtime.ServerMessage) {
	if err := s.conn.Send(msg); err != nil {
		s.logger.Debug("reply dropped", zap.String("type", msg.ServerType()), zap.Error(err))
	}
}
