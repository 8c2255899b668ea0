package models

import (
	"time"

	"gorm.io/datatypes"
)

// MintTaskStatus is the stored lifecycle state. Success is not stored: the row is deleted.
type MintTaskStatus string

const (
	MintTaskPending  MintTaskStatus = "pending"
	MintTaskInFlight MintTaskStatus = "inFlight"
	MintTaskFailed   MintTaskStatus = "failed"
)

// ActiveMintStatuses block a second enqueue for the same player and reward.
var ActiveMintStatuses = []MintTaskStatus{MintTaskPending, MintTaskInFlight}

// MintTask is one pending collectible mint for a player.
type MintTask struct {
	ID            string            `gorm:"primaryKey;type:uuid" json:"id"`
	RewardType    RewardType        `gorm:"type:varchar(64);not null;index:idx_mint_tasks_player_reward" json:"reward_type"`
	PlayerID      string            `gorm:"type:varchar(64);not null;index:idx_mint_tasks_player_reward" json:"player_id"`
	PlayerAddress string            `gorm:"type:varchar(128);not null;index" json:"player_address"`
	Status        MintTaskStatus    `gorm:"type:varchar(16);not null;index;check:status IN ('pending','inFlight','failed')" json:"status"`
	ErrorMessage  *string           `gorm:"type:text" json:"error_message,omitempty"`
	Context       datatypes.JSONMap `json:"context,omitempty"` // e.g. {"game_id": "..."}
	Version       int               `gorm:"not null" json:"version"`
	CreatedAt     time.Time         `gorm:"not null;index" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"not null" json:"updated_at"`
	ProcessedAt   *time.Time        `json:"processed_at,omitempty"`
}

func (t *MintTask) IsActive() bool {
	return t.Status == MintTaskPending || t.Status == MintTaskInFlight
}
