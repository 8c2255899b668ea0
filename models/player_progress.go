package models

import (
	"time"

	"gorm.io/gorm"
)

// PlayerProgress holds the milestone counters reward thresholds are evaluated against.
type PlayerProgress struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	PlayerID string `gorm:"uniqueIndex;not null" json:"player_id"`

	GamesPlayed int64 `json:"games_played" gorm:"default:0"`
	Wins        int64 `json:"wins" gorm:"default:0"`
	Losses      int64 `json:"losses" gorm:"default:0"`
	Draws       int64 `json:"draws" gorm:"default:0"`
	Checkmates  int64 `json:"checkmates" gorm:"default:0"`
	QuickMates  int64 `json:"quick_mates" gorm:"default:0"` // checkmates delivered within QuickMateMoves

	CurrentStreak int64 `json:"current_streak" gorm:"default:0"`
	BestStreak    int64 `json:"best_streak" gorm:"default:0"`

	LastGameAt *time.Time `json:"last_game_at,omitempty"`

	Timestamps
}

// Counter returns the value a reward threshold key refers to.
func (p *PlayerProgress) Counter(key string) (int64, bool) {
	switch key {
	case "games_played":
		return p.GamesPlayed, true
	case "wins":
		return p.Wins, true
	case "checkmates":
		return p.Checkmates, true
	case "quick_mates":
		return p.QuickMates, true
	case "best_streak":
		return p.BestStreak, true
	}
	return 0, false
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
