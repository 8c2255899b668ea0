package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chess-mint-rewards/models"
)

// RewardLedger is the permanent record of collectibles that were minted.
type RewardLedger struct {
	DB    *gorm.DB
	clock clockwork.Clock
}

func NewRewardLedger(db *gorm.DB, clock clockwork.Clock) *RewardLedger {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RewardLedger{DB: db, clock: clock}
}

func (l *RewardLedger) HasEarned(ctx context.Context, playerID string, rewardType models.RewardType) (bool, error) {
	var count int64
	err := l.DB.WithContext(ctx).Model(&models.EarnedReward{}).
		Where("player_id = ? AND reward_type = ?", playerID, rewardType).
		Count(&count).Error
	return count > 0, err
}

// RecordTx writes the ledger row inside tx. A second record for the same
// player and reward is ignored.
func (l *RewardLedger) RecordTx(tx *gorm.DB, task *models.MintTask, objectID string) error {
	row := models.EarnedReward{
		ID:         uuid.NewString(),
		PlayerID:   task.PlayerID,
		RewardType: task.RewardType,
		ObjectID:   objectID,
		TaskID:     task.ID,
		EarnedAt:   l.clock.Now().UTC(),
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func (l *RewardLedger) ListEarned(ctx context.Context, playerID string) ([]models.EarnedReward, error) {
	var rows []models.EarnedReward
	err := l.DB.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("earned_at ASC").
		Find(&rows).Error
	return rows, err
}
