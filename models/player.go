package models

import (
	"time"

	"gorm.io/gorm"
)

// Player is a local snapshot of a chess player, mirrored from the profile service
// by the player sync worker. ID is the profile service's user id.
type Player struct {
	ID            string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Username      string    `gorm:"index;not null" json:"username"`
	WalletAddress string    `gorm:"type:varchar(128);index" json:"wallet_address"`
	IsBanned      bool      `gorm:"default:false" json:"is_banned"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
