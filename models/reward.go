package models

import (
	"time"
)

// RewardType is a collectible category a player can earn once.
type RewardType string

const (
	RewardFirstWin       RewardType = "first_win"
	RewardFirstCheckmate RewardType = "first_checkmate"
	RewardQuickMate      RewardType = "quick_mate"
	RewardTenWins        RewardType = "ten_wins"
	RewardWinStreak      RewardType = "win_streak_5"
	RewardDedicated      RewardType = "games_50"
)

// RewardDefinition is static catalog config for one collectible.
type RewardDefinition struct {
	Type        RewardType
	Name        string
	Description string
	Rarity      string           // common, rare, epic, legendary
	ImageURL    string           // R2/CDN path of the artwork
	Threshold   map[string]int64 // e.g. {"wins": 10}; all keys must be met
}

var RewardCatalog = []RewardDefinition{
	{
		Type:        RewardFirstWin,
		Name:        "First Victory",
		Description: "Won your first game",
		Rarity:      "common",
		ImageURL:    "collectibles/art/first-victory.png",
		Threshold:   map[string]int64{"wins": 1},
	},
	{
		Type:        RewardFirstCheckmate,
		Name:        "Checkmate Artist",
		Description: "Delivered your first checkmate",
		Rarity:      "common",
		ImageURL:    "collectibles/art/checkmate-artist.png",
		Threshold:   map[string]int64{"checkmates": 1},
	},
	{
		Type:        RewardQuickMate,
		Name:        "Lightning Mate",
		Description: "Checkmated an opponent within 20 moves",
		Rarity:      "rare",
		ImageURL:    "collectibles/art/lightning-mate.png",
		Threshold:   map[string]int64{"quick_mates": 1},
	},
	{
		Type:        RewardTenWins,
		Name:        "Seasoned Player",
		Description: "Won ten games",
		Rarity:      "rare",
		ImageURL:    "collectibles/art/seasoned-player.png",
		Threshold:   map[string]int64{"wins": 10},
	},
	{
		Type:        RewardWinStreak,
		Name:        "Unstoppable",
		Description: "Won five games in a row",
		Rarity:      "epic",
		ImageURL:    "collectibles/art/unstoppable.png",
		Threshold:   map[string]int64{"best_streak": 5},
	},
	{
		Type:        RewardDedicated,
		Name:        "Dedicated",
		Description: "Finished fifty games",
		Rarity:      "epic",
		ImageURL:    "collectibles/art/dedicated.png",
		Threshold:   map[string]int64{"games_played": 50},
	},
}

// LookupReward finds a catalog entry by type.
func LookupReward(t RewardType) (RewardDefinition, bool) {
	for _, def := range RewardCatalog {
		if def.Type == t {
			return def, true
		}
	}
	return RewardDefinition{}, false
}

// EarnedReward is the ledger row written once a collectible has actually been minted.
type EarnedReward struct {
	ID         string     `gorm:"primaryKey;type:uuid" json:"id"`
	PlayerID   string     `gorm:"not null;uniqueIndex:idx_earned_player_reward" json:"player_id"`
	RewardType RewardType `gorm:"type:varchar(64);not null;uniqueIndex:idx_earned_player_reward" json:"reward_type"`
	ObjectID   string     `gorm:"type:varchar(128)" json:"object_id"` // on-chain object of the minted collectible
	TaskID     string     `gorm:"type:uuid" json:"task_id"`
	EarnedAt   time.Time  `gorm:"not null" json:"earned_at"`
}
