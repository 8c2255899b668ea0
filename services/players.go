package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"chess-mint-rewards/models"
)

// PlayerDirectory reads the local player mirror kept fresh by the sync worker.
type PlayerDirectory struct {
	DB *gorm.DB
}

func NewPlayerDirectory(db *gorm.DB) *PlayerDirectory {
	return &PlayerDirectory{DB: db}
}

func (d *PlayerDirectory) Get(ctx context.Context, playerID string) (*models.Player, error) {
	var player models.Player
	err := d.DB.WithContext(ctx).Where("id = ?", playerID).First(&player).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &player, nil
}

// OwnsAddress reports whether address is the player's registered wallet.
func (d *PlayerDirectory) OwnsAddress(ctx context.Context, playerID, address string) (bool, error) {
	player, err := d.Get(ctx, playerID)
	if errors.Is(err, ErrPlayerNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return player.WalletAddress != "" &&
		models.NormalizeAddress(player.WalletAddress) == models.NormalizeAddress(address), nil
}
