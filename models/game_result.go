package models

const (
	GameOutcomeWin  = "win"
	GameOutcomeLoss = "loss"
	GameOutcomeDraw = "draw"
)

const (
	TerminationCheckmate   = "checkmate"
	TerminationResignation = "resignation"
	TerminationTimeout     = "timeout"
	TerminationStalemate   = "stalemate"
	TerminationAgreement   = "agreement"
)

// QuickMateMoves is the move count at or under which a checkmate counts as quick.
const QuickMateMoves = 20

// GameResult records one finished game from a single player's point of view.
// Legality and adjudication happen in the rules engine; this is only the outcome.
type GameResult struct {
	ID          string  `gorm:"primaryKey;type:uuid" json:"id"`
	PlayerID    string  `gorm:"not null;uniqueIndex:idx_game_results_player_game" json:"player_id"`
	GameID      string  `gorm:"not null;uniqueIndex:idx_game_results_player_game" json:"game_id"`
	OpponentID  *string `gorm:"index" json:"opponent_id,omitempty"` // nil = engine opponent
	Outcome     string  `gorm:"type:varchar(8);not null;check:outcome IN ('win','loss','draw')" json:"outcome"`
	Termination string  `gorm:"type:varchar(16)" json:"termination"`
	MoveCount   int     `json:"move_count" gorm:"default:0"`

	Timestamps
}
