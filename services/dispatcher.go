package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"chess-mint-rewards/models"
	"chess-mint-rewards/observability"
	"chess-mint-rewards/realtime"
)

// graceSlack absorbs timer jitter between the gocron clock and stored timestamps.
const graceSlack = 100 * time.Millisecond

const alreadyEarnedMessage = "reward already earned"

// RoomPusher is the part of the room registry the dispatcher needs.
type RoomPusher interface {
	LiveExecutors(address string) int
	PushMintNow(address string, msg realtime.MintNow) int
	ExecutorAddresses() []string
}

type DispatcherConfig struct {
	Grace         time.Duration
	Stale         time.Duration
	SweepInterval time.Duration
	PageSize      int
	Clock         clockwork.Clock
	// MetadataURL resolves the collectible metadata location sent with mint-now.
	MetadataURL func(models.RewardType) string
}

type DispatchResult string

const (
	DispatchPushed        DispatchResult = "pushed"
	DispatchNotDue        DispatchResult = "not_due"
	DispatchNoConnection  DispatchResult = "no_connection"
	DispatchConflict      DispatchResult = "conflict"
	DispatchAlreadyEarned DispatchResult = "already_earned"
	DispatchMissing       DispatchResult = "missing"
	DispatchUndelivered   DispatchResult = "undelivered"
)

// Dispatcher decides when a stored task is pushed to the player's client.
type Dispatcher struct {
	store  *TaskStore
	ledger *RewardLedger
	rooms  RoomPusher
	cfg    DispatcherConfig
	clock  clockwork.Clock
	sched  gocron.Scheduler
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewDispatcher(store *TaskStore, ledger *RewardLedger, rooms RoomPusher, cfg DispatcherConfig, logger *zap.Logger) (*Dispatcher, error) {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}

	sched, err := gocron.NewScheduler(
		gocron.WithClock(cfg.Clock),
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(gocronLogger{logger}),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		store:  store,
		ledger: ledger,
		rooms:  rooms,
		cfg:    cfg,
		clock:  cfg.Clock,
		sched:  sched,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start registers the periodic sweep and starts the scheduler.
func (d *Dispatcher) Start() error {
	if d.cfg.SweepInterval > 0 {
		_, err := d.sched.NewJob(
			gocron.DurationJob(d.cfg.SweepInterval),
			gocron.NewTask(func() {
				if _, err := d.Sweep(d.ctx); err != nil {
					d.logger.Error("mint sweep failed", zap.Error(err))
				}
			}),
			gocron.WithName("mint-sweep"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("register sweep: %w", err)
		}
	}
	d.sched.Start()
	d.logger.Info("mint dispatcher started",
		zap.Duration("grace", d.cfg.Grace),
		zap.Duration("stale", d.cfg.Stale),
		zap.Duration("sweep_interval", d.cfg.SweepInterval))
	return nil
}

// Shutdown cancels pending timers and waits for running jobs.
func (d *Dispatcher) Shutdown() error {
	d.cancel()
	return d.sched.Shutdown()
}

// Schedule arms a one-time dispatch at created_at + grace.
func (d *Dispatcher) Schedule(task *models.MintTask) {
	d.oneShot(task.CreatedAt.Add(d.cfg.Grace), "dispatch:"+task.ID, func() {
		if _, err := d.Dispatch(d.ctx, task.ID); err != nil {
			d.logger.Error("scheduled dispatch failed", zap.String("task_id", task.ID), zap.Error(err))
		}
	})
}

// ScheduleSweep arms a sweep of one player's tasks a grace window from now.
// Called when a connection joins, so the client has time to settle.
func (d *Dispatcher) ScheduleSweep(address string) {
	address = models.NormalizeAddress(address)
	d.oneShot(d.clock.Now().Add(d.cfg.Grace), "sweep:"+address, func() {
		if _, err := d.SweepPlayer(d.ctx, address); err != nil {
			d.logger.Error("player sweep failed", zap.String("player_address", address), zap.Error(err))
		}
	})
}

func (d *Dispatcher) oneShot(at time.Time, name string, fn func()) {
	start := gocron.OneTimeJobStartDateTime(at)
	if !at.After(d.clock.Now()) {
		start = gocron.OneTimeJobStartImmediately()
	}
	_, err := d.sched.NewJob(
		gocron.OneTimeJob(start),
		gocron.NewTask(fn),
		gocron.WithName(name),
		gocron.WithLimitedRuns(1),
	)
	if err != nil {
		d.logger.Warn("could not schedule job; periodic sweep will cover it",
			zap.String("job", name), zap.Error(err))
	}
}

// Dispatch pushes one task to the player's live executor connections if it is due.
func (d *Dispatcher) Dispatch(ctx context.Context, taskID string) (DispatchResult, error) {
	ctx, span := tracer.Start(ctx, "mint.dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("task.id", taskID))

	result, err := d.dispatch(ctx, taskID)
	if err != nil {
		span.RecordError(err)
		observability.MintDispatchesTotal.WithLabelValues("error").Inc()
		return result, err
	}
	span.SetAttributes(attribute.String("dispatch.result", string(result)))
	observability.MintDispatchesTotal.WithLabelValues(string(result)).Inc()
	return result, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, taskID string) (DispatchResult, error) {
	task, err := d.store.Get(ctx, taskID)
	if errors.Is(err, ErrTaskNotFound) {
		return DispatchMissing, nil
	}
	if err != nil {
		return "", err
	}

	now := d.clock.Now()
	switch task.Status {
	case models.MintTaskPending:
		if now.Add(graceSlack).Before(task.CreatedAt.Add(d.cfg.Grace)) {
			return DispatchNotDue, nil
		}
	case models.MintTaskInFlight:
		if !task.UpdatedAt.Before(now.Add(-d.cfg.Stale)) {
			return DispatchNotDue, nil
		}
	default:
		return DispatchMissing, nil
	}

	earned, err := d.ledger.HasEarned(ctx, task.PlayerID, task.RewardType)
	if err != nil {
		return "", fmt.Errorf("check ledger: %w", err)
	}
	if earned {
		if _, err := d.store.MarkFailed(ctx, task.ID, alreadyEarnedMessage); err != nil {
			return "", err
		}
		d.logger.Info("mint task dropped, reward already earned",
			zap.String("task_id", task.ID), zap.String("player_id", task.PlayerID))
		return DispatchAlreadyEarned, nil
	}

	if d.rooms.LiveExecutors(task.PlayerAddress) == 0 {
		return DispatchNoConnection, nil
	}

	updated, err := d.store.MarkInFlight(ctx, task.ID, task.Version)
	if errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrTaskNotFound) {
		return DispatchConflict, nil
	}
	if err != nil {
		return "", err
	}

	msg := realtime.MintNow{
		TaskID:        updated.ID,
		RewardType:    string(updated.RewardType),
		PlayerID:      updated.PlayerID,
		PlayerAddress: updated.PlayerAddress,
	}
	if d.cfg.MetadataURL != nil {
		msg.MetadataURL = d.cfg.MetadataURL(updated.RewardType)
	}

	delivered := d.rooms.PushMintNow(updated.PlayerAddress, msg)
	if delivered == 0 {
		d.logger.Warn("mint-now not delivered; task stays in flight until stale",
			zap.String("task_id", updated.ID))
		return DispatchUndelivered, nil
	}

	d.logger.Info("mint-now pushed",
		zap.String("task_id", updated.ID),
		zap.String("player_address", updated.PlayerAddress),
		zap.Int("connections", delivered))
	return DispatchPushed, nil
}

// Sweep dispatches due tasks for every player with a live executor here.
func (d *Dispatcher) Sweep(ctx context.Context) (int, error) {
	return d.sweep(ctx, d.rooms.ExecutorAddresses())
}

// SweepPlayer dispatches due tasks for one player.
func (d *Dispatcher) SweepPlayer(ctx context.Context, address string) (int, error) {
	return d.sweep(ctx, []string{address})
}

func (d *Dispatcher) sweep(ctx context.Context, addresses []string) (int, error) {
	if len(addresses) == 0 {
		return 0, nil
	}
	now := d.clock.Now()
	tasks, err := d.store.ListDue(ctx, addresses, now.Add(-d.cfg.Grace), now.Add(-d.cfg.Stale), d.cfg.PageSize)
	if err != nil {
		return 0, fmt.Errorf("list due tasks: %w", err)
	}

	pushed := 0
	for _, task := range tasks {
		result, err := d.Dispatch(ctx, task.ID)
		if err != nil {
			d.logger.Error("dispatch failed", zap.String("task_id", task.ID), zap.Error(err))
			continue
		}
		if result == DispatchPushed {
			pushed++
		}
	}
	return pushed, nil
}

type gocronLogger struct {
	z *zap.Logger
}

func (l gocronLogger) Debug(msg string, args ...any) { l.z.Sugar().Debugw(msg, args...) }
func (l gocronLogger) Info(msg string, args ...any)  { l.z.Sugar().Infow(msg, args...) }
func (l gocronLogger) Warn(msg string, args ...any)  { l.z.Sugar().Warnw(msg, args...) }
func (l gocronLogger) Error(msg string, args ...any) { l.z.Sugar().Errorw(msg, args...) }
