package services

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"chess-mint-rewards/models"
	"chess-mint-rewards/observability"
)

const MaxPendingPageSize = 200

// PlayerSweeper arms a delayed sweep for one player.
type PlayerSweeper interface {
	ScheduleSweep(address string)
}

// Reclaimer finds tasks a reconnecting player should still execute. It never
// changes status; redelivery goes through the dispatcher's CAS.
type Reclaimer struct {
	store    *TaskStore
	sweeper  PlayerSweeper
	stale    time.Duration
	pageSize int
	clock    clockwork.Clock
	logger   *zap.Logger
}

func NewReclaimer(store *TaskStore, sweeper PlayerSweeper, stale time.Duration, pageSize int, clock clockwork.Clock, logger *zap.Logger) *Reclaimer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > MaxPendingPageSize {
		pageSize = MaxPendingPageSize
	}
	return &Reclaimer{
		store:    store,
		sweeper:  sweeper,
		stale:    stale,
		pageSize: pageSize,
		clock:    clock,
		logger:   logger,
	}
}

// ListActionable returns pending tasks and stale in-flight tasks, oldest first.
func (r *Reclaimer) ListActionable(ctx context.Context, address string) ([]models.MintTask, error) {
	tasks, err := r.store.ListActionable(ctx, address, r.clock.Now().Add(-r.stale), r.pageSize)
	if err != nil {
		return nil, err
	}
	observability.MintActionableListed.Add(float64(len(tasks)))
	return tasks, nil
}

// OnJoin runs when a connection joins a player's room.
func (r *Reclaimer) OnJoin(ctx context.Context, address string) ([]models.MintTask, error) {
	tasks, err := r.ListActionable(ctx, address)
	if err != nil {
		return nil, err
	}
	if len(tasks) > 0 && r.sweeper != nil {
		r.logger.Info("actionable mint tasks on join",
			zap.String("player_address", models.NormalizeAddress(address)),
			zap.Int("count", len(tasks)))
		r.sweeper.ScheduleSweep(address)
	}
	return tasks, nil
}
