package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chess-mint-rewards/models"
)

// TaskStore owns every read and write of mint_tasks. All status changes go
// through a version compare-and-set so concurrent writers cannot both win.
type TaskStore struct {
	DB    *gorm.DB
	clock clockwork.Clock
}

func NewTaskStore(db *gorm.DB, clock clockwork.Clock) *TaskStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TaskStore{DB: db, clock: clock}
}

type NewMintTask struct {
	PlayerID      string
	PlayerAddress string
	RewardType    models.RewardType
	Context       map[string]interface{}
}

// CreatePending inserts a pending task unless the player already has an active
// one for the same reward. The check and insert share a transaction.
func (s *TaskStore) CreatePending(ctx context.Context, in NewMintTask) (*models.MintTask, error) {
	now := s.clock.Now().UTC()
	task := models.MintTask{
		ID:            uuid.NewString(),
		RewardType:    in.RewardType,
		PlayerID:      in.PlayerID,
		PlayerAddress: models.NormalizeAddress(in.PlayerAddress),
		Status:        models.MintTaskPending,
		Context:       datatypes.JSONMap(in.Context),
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.MintTask{}).
			Where("player_id = ? AND reward_type = ? AND status IN ?", in.PlayerID, in.RewardType, models.ActiveMintStatuses).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrActiveTaskExists
		}
		return tx.Create(&task).Error
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TaskStore) Get(ctx context.Context, id string) (*models.MintTask, error) {
	var task models.MintTask
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// MarkInFlight moves a pending (or stale in-flight) task to inFlight if its
// version is still expectedVersion.
func (s *TaskStore) MarkInFlight(ctx context.Context, id string, expectedVersion int) (*models.MintTask, error) {
	now := s.clock.Now().UTC()
	res := s.DB.WithContext(ctx).Model(&models.MintTask{}).
		Where("id = ? AND version = ? AND status IN ?", id, expectedVersion, models.ActiveMintStatuses).
		Updates(map[string]interface{}{
			"status":     models.MintTaskInFlight,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, s.missOrConflict(ctx, id)
	}
	return s.Get(ctx, id)
}

// MarkFailed records a failure. Only active tasks transition; it reports
// whether a row changed.
func (s *TaskStore) MarkFailed(ctx context.Context, id, message string) (bool, error) {
	now := s.clock.Now().UTC()
	res := s.DB.WithContext(ctx).Model(&models.MintTask{}).
		Where("id = ? AND status IN ?", id, models.ActiveMintStatuses).
		Updates(map[string]interface{}{
			"status":        models.MintTaskFailed,
			"error_message": message,
			"version":       gorm.Expr("version + 1"),
			"updated_at":    now,
			"processed_at":  now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteCompleted locks the active task, runs onDeleted inside the same
// transaction and removes the row. It returns nil when there was nothing to
// delete (already completed, failed or unknown).
func (s *TaskStore) DeleteCompleted(ctx context.Context, id string, onDeleted func(tx *gorm.DB, task *models.MintTask) error) (*models.MintTask, error) {
	var deleted *models.MintTask

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task models.MintTask
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND status IN ?", id, models.ActiveMintStatuses).
			First(&task).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		res := tx.Where("id = ? AND version = ?", id, task.Version).Delete(&models.MintTask{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return nil
		}
		if onDeleted != nil {
			if err := onDeleted(tx, &task); err != nil {
				return err
			}
		}
		deleted = &task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// ListActionable returns the player's pending tasks plus in-flight tasks not
// touched since staleBefore, oldest first.
func (s *TaskStore) ListActionable(ctx context.Context, address string, staleBefore time.Time, limit int) ([]models.MintTask, error) {
	var tasks []models.MintTask
	err := s.DB.WithContext(ctx).
		Where("player_address = ?", models.NormalizeAddress(address)).
		Where(s.DB.Where("status = ?", models.MintTaskPending).
			Or("status = ? AND updated_at < ?", models.MintTaskInFlight, staleBefore.UTC())).
		Order("created_at ASC").
		Limit(limit).
		Find(&tasks).Error
	return tasks, err
}

// ListDue returns tasks for the given addresses that a sweep should try to
// dispatch: pending past the grace window, or in-flight and stale.
func (s *TaskStore) ListDue(ctx context.Context, addresses []string, graceBefore, staleBefore time.Time, limit int) ([]models.MintTask, error) {
	if len(addresses) == 0 {
		return nil, nil
	}
	normalized := make([]string, len(addresses))
	for i, a := range addresses {
		normalized[i] = models.NormalizeAddress(a)
	}

	var tasks []models.MintTask
	err := s.DB.WithContext(ctx).
		Where("player_address IN ?", normalized).
		Where(s.DB.Where("status = ? AND created_at <= ?", models.MintTaskPending, graceBefore.UTC()).
			Or("status = ? AND updated_at < ?", models.MintTaskInFlight, staleBefore.UTC())).
		Order("created_at ASC").
		Limit(limit).
		Find(&tasks).Error
	return tasks, err
}

// ListForPlayer returns every stored task for a player, failed ones included.
func (s *TaskStore) ListForPlayer(ctx context.Context, playerID string) ([]models.MintTask, error) {
	var tasks []models.MintTask
	err := s.DB.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("created_at DESC").
		Find(&tasks).Error
	return tasks, err
}

func (s *TaskStore) missOrConflict(ctx context.Context, id string) error {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.MintTask{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrTaskNotFound
	}
	return ErrVersionConflict
}
