package services

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"chess-mint-rewards/models"
	"chess-mint-rewards/observability"
	"chess-mint-rewards/realtime"
)

const defaultFailureMessage = "mint failed"

// CompletionNotifier fans a mint-completed notice out to the player's connections.
type CompletionNotifier interface {
	NotifyMintCompleted(ctx context.Context, address string, notice realtime.MintCompletedNotice) error
}

type Completion struct {
	TaskID       string
	ObjectID     string
	Success      bool
	ErrorMessage string
	// ReportedBy is the authenticated player sending the report; empty for trusted callers.
	ReportedBy string
}

type CompletionResult struct {
	Applied bool   `json:"applied"`
	Outcome string `json:"outcome"` // minted, failed or noop
}

// Reconciler applies completion reports to the task store.
type Reconciler struct {
	store    *TaskStore
	ledger   *RewardLedger
	notifier CompletionNotifier
	logger   *zap.Logger
}

func NewReconciler(store *TaskStore, ledger *RewardLedger, notifier CompletionNotifier, logger *zap.Logger) *Reconciler {
	return &Reconciler{store: store, ledger: ledger, notifier: notifier, logger: logger}
}

// Complete records the result of a client's signing attempt. Reports for
// missing or already terminal tasks are no-ops.
func (r *Reconciler) Complete(ctx context.Context, c Completion) (CompletionResult, error) {
	ctx, span := tracer.Start(ctx, "mint.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("task.id", c.TaskID),
		attribute.Bool("mint.success", c.Success),
	)

	if c.TaskID == "" || (c.Success && c.ObjectID == "") {
		return CompletionResult{}, ErrInvalidCompletion
	}
	if c.ReportedBy != "" {
		if err := r.checkOwner(ctx, c); err != nil {
			return CompletionResult{}, err
		}
	}

	var (
		result CompletionResult
		err    error
	)
	if c.Success {
		result, err = r.completeSuccess(ctx, c)
	} else {
		result, err = r.completeFailure(ctx, c)
	}
	if err != nil {
		span.RecordError(err)
		observability.MintCompletionsTotal.WithLabelValues("error").Inc()
		return result, err
	}
	observability.MintCompletionsTotal.WithLabelValues(result.Outcome).Inc()
	return result, nil
}

func (r *Reconciler) checkOwner(ctx context.Context, c Completion) error {
	task, err := r.store.Get(ctx, c.TaskID)
	if errors.Is(err, ErrTaskNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if task.PlayerID != c.ReportedBy {
		return ErrNotOwner
	}
	return nil
}

func (r *Reconciler) completeSuccess(ctx context.Context, c Completion) (CompletionResult, error) {
	task, err := r.store.DeleteCompleted(ctx, c.TaskID, func(tx *gorm.DB, task *models.MintTask) error {
		return r.ledger.RecordTx(tx, task, c.ObjectID)
	})
	if err != nil {
		return CompletionResult{}, fmt.Errorf("complete mint task: %w", err)
	}
	if task == nil {
		r.logger.Info("completion for unknown or finished task ignored", zap.String("task_id", c.TaskID))
		return CompletionResult{Outcome: "noop"}, nil
	}

	r.logger.Info("mint completed",
		zap.String("task_id", task.ID),
		zap.String("player_id", task.PlayerID),
		zap.String("object_id", c.ObjectID))

	notice := realtime.MintCompletedNotice{
		RewardName: rewardName(task.RewardType),
		RewardType: string(task.RewardType),
		ObjectID:   c.ObjectID,
		Success:    true,
	}
	r.notify(ctx, task.PlayerAddress, notice)
	return CompletionResult{Applied: true, Outcome: "minted"}, nil
}

func (r *Reconciler) completeFailure(ctx context.Context, c Completion) (CompletionResult, error) {
	message := c.ErrorMessage
	if message == "" {
		message = defaultFailureMessage
	}

	// Load first so the notice can name the player; MarkFailed still guards the transition.
	task, err := r.store.Get(ctx, c.TaskID)
	if errors.Is(err, ErrTaskNotFound) {
		r.logger.Info("failure for unknown task ignored", zap.String("task_id", c.TaskID))
		return CompletionResult{Outcome: "noop"}, nil
	}
	if err != nil {
		return CompletionResult{}, err
	}

	applied, err := r.store.MarkFailed(ctx, c.TaskID, message)
	if err != nil {
		return CompletionResult{}, fmt.Errorf("fail mint task: %w", err)
	}
	if !applied {
		return CompletionResult{Outcome: "noop"}, nil
	}

	r.logger.Warn("mint failed",
		zap.String("task_id", task.ID),
		zap.String("player_id", task.PlayerID),
		zap.String("error_message", message))

	r.notify(ctx, task.PlayerAddress, realtime.MintCompletedNotice{
		RewardName:   rewardName(task.RewardType),
		RewardType:   string(task.RewardType),
		Success:      false,
		ErrorMessage: message,
	})
	return CompletionResult{Applied: true, Outcome: "failed"}, nil
}

func (r *Reconciler) notify(ctx context.Context, address string, notice realtime.MintCompletedNotice) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.NotifyMintCompleted(ctx, address, notice); err != nil {
		r.logger.Warn("mint notice not delivered", zap.String("player_address", address), zap.Error(err))
	}
}

func rewardName(t models.RewardType) string {
	if def, ok := models.LookupReward(t); ok {
		return def.Name
	}
	return string(t)
}
