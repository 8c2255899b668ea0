package services

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"chess-mint-rewards/models"
	"chess-mint-rewards/observability"
)

var tracer = otel.Tracer("chess-mint-rewards/services")

type RejectReason string

const (
	RejectInvalidRequest    RejectReason = "invalid_request"
	RejectUnknownPlayer     RejectReason = "unknown_player"
	RejectPlayerBanned      RejectReason = "player_banned"
	RejectAddressNotOwned   RejectReason = "address_not_owned"
	RejectUnknownRewardType RejectReason = "unknown_reward_type"
	RejectAlreadyEarned     RejectReason = "already_earned"
	RejectTaskAlreadyActive RejectReason = "task_already_active"
)

type MintRequest struct {
	PlayerID      string                 `json:"playerId"`
	PlayerAddress string                 `json:"playerAddress"`
	RewardType    models.RewardType      `json:"rewardType"`
	Context       map[string]interface{} `json:"context,omitempty"`
}

type MintResult struct {
	Accepted bool         `json:"accepted"`
	TaskID   string       `json:"taskId,omitempty"`
	Reason   RejectReason `json:"reason,omitempty"`
}

// TaskScheduler is told about every accepted task. Scheduling is best effort;
// the periodic sweep picks up anything a lost timer misses.
type TaskScheduler interface {
	Schedule(task *models.MintTask)
}

// MintGateway is the single entry point for creating mint tasks.
type MintGateway struct {
	store     *TaskStore
	players   *PlayerDirectory
	ledger    *RewardLedger
	scheduler TaskScheduler
	logger    *zap.Logger
}

func NewMintGateway(store *TaskStore, players *PlayerDirectory, ledger *RewardLedger, scheduler TaskScheduler, logger *zap.Logger) *MintGateway {
	return &MintGateway{
		store:     store,
		players:   players,
		ledger:    ledger,
		scheduler: scheduler,
		logger:    logger,
	}
}

// RequestMint validates the request and stores a pending task. Rejections are
// returned in MintResult; err is reserved for infrastructure failures.
func (g *MintGateway) RequestMint(ctx context.Context, req MintRequest) (MintResult, error) {
	ctx, span := tracer.Start(ctx, "mint.request")
	defer span.End()
	span.SetAttributes(
		attribute.String("player.id", req.PlayerID),
		attribute.String("reward.type", string(req.RewardType)),
	)

	result, err := g.requestMint(ctx, req)
	switch {
	case err != nil:
		observability.MintRequestsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
	case result.Accepted:
		observability.MintRequestsTotal.WithLabelValues("accepted").Inc()
	default:
		observability.MintRequestsTotal.WithLabelValues(string(result.Reason)).Inc()
		g.logger.Info("mint request rejected",
			zap.String("player_id", req.PlayerID),
			zap.String("reward_type", string(req.RewardType)),
			zap.String("reason", string(result.Reason)))
	}
	return result, err
}

func (g *MintGateway) requestMint(ctx context.Context, req MintRequest) (MintResult, error) {
	if req.PlayerID == "" || req.RewardType == "" || !models.ValidAddress(req.PlayerAddress) {
		return reject(RejectInvalidRequest), nil
	}

	player, err := g.players.Get(ctx, req.PlayerID)
	if errors.Is(err, ErrPlayerNotFound) {
		return reject(RejectUnknownPlayer), nil
	}
	if err != nil {
		return MintResult{}, fmt.Errorf("lookup player: %w", err)
	}
	if player.IsBanned {
		return reject(RejectPlayerBanned), nil
	}
	// mint-now goes to the address room; only the owner's completion is accepted.
	if models.NormalizeAddress(player.WalletAddress) != models.NormalizeAddress(req.PlayerAddress) {
		return reject(RejectAddressNotOwned), nil
	}

	if _, ok := models.LookupReward(req.RewardType); !ok {
		return reject(RejectUnknownRewardType), nil
	}

	earned, err := g.ledger.HasEarned(ctx, req.PlayerID, req.RewardType)
	if err != nil {
		return MintResult{}, fmt.Errorf("check ledger: %w", err)
	}
	if earned {
		return reject(RejectAlreadyEarned), nil
	}

	task, err := g.store.CreatePending(ctx, NewMintTask{
		PlayerID:      req.PlayerID,
		PlayerAddress: req.PlayerAddress,
		RewardType:    req.RewardType,
		Context:       req.Context,
	})
	if errors.Is(err, ErrActiveTaskExists) {
		return reject(RejectTaskAlreadyActive), nil
	}
	if err != nil {
		return MintResult{}, fmt.Errorf("create mint task: %w", err)
	}

	g.logger.Info("mint task enqueued",
		zap.String("task_id", task.ID),
		zap.String("player_id", task.PlayerID),
		zap.String("reward_type", string(task.RewardType)))

	if g.scheduler != nil {
		g.scheduler.Schedule(task)
	}
	return MintResult{Accepted: true, TaskID: task.ID}, nil
}

func reject(reason RejectReason) MintResult {
	return MintResult{Accepted: false, Reason: reason}
}
