package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chess-mint-rewards/models"
)

type GameResultInput struct {
	PlayerID    string  `json:"player_id"`
	GameID      string  `json:"game_id"`
	OpponentID  *string `json:"opponent_id,omitempty"`
	Outcome     string  `json:"outcome"`
	Termination string  `json:"termination"`
	MoveCount   int     `json:"move_count"`
}

type MilestoneOutcome struct {
	Progress *models.PlayerProgress `json:"progress"`
	Requests map[string]MintResult  `json:"mint_requests"` // keyed by reward type
}

// MilestoneService turns adjudicated game results into progress counters and
// mint requests for the rewards those counters unlock.
type MilestoneService struct {
	DB      *gorm.DB
	gateway *MintGateway
	players *PlayerDirectory
	clock   clockwork.Clock
	logger  *zap.Logger
}

func NewMilestoneService(db *gorm.DB, gateway *MintGateway, players *PlayerDirectory, clock clockwork.Clock, logger *zap.Logger) *MilestoneService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MilestoneService{DB: db, gateway: gateway, players: players, clock: clock, logger: logger}
}

// EnsureProgressRecord returns the player's progress row inside tx, creating it if needed.
func (s *MilestoneService) EnsureProgressRecord(tx *gorm.DB, playerID string) (*models.PlayerProgress, error) {
	var prog models.PlayerProgress
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("player_id = ?", playerID).
		First(&prog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		prog = models.PlayerProgress{ID: uuid.NewString(), PlayerID: playerID}
		if err := tx.Create(&prog).Error; err != nil {
			return nil, err
		}
		return &prog, nil
	}
	if err != nil {
		return nil, err
	}
	return &prog, nil
}

func (s *MilestoneService) GetProgress(ctx context.Context, playerID string) (*models.PlayerProgress, error) {
	var prog models.PlayerProgress
	err := s.DB.WithContext(ctx).Where("player_id = ?", playerID).First(&prog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.PlayerProgress{PlayerID: playerID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &prog, nil
}

// RecordGameResult stores the result, bumps counters and requests a mint for
// every reward whose thresholds are now met.
func (s *MilestoneService) RecordGameResult(ctx context.Context, in GameResultInput) (*MilestoneOutcome, error) {
	if err := validateGameResult(in); err != nil {
		return nil, err
	}

	player, err := s.players.Get(ctx, in.PlayerID)
	if err != nil {
		return nil, err
	}

	var updated models.PlayerProgress
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.GameResult{}).
			Where("player_id = ? AND game_id = ?", in.PlayerID, in.GameID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateResult
		}

		result := models.GameResult{
			ID:          uuid.NewString(),
			PlayerID:    in.PlayerID,
			GameID:      in.GameID,
			OpponentID:  in.OpponentID,
			Outcome:     in.Outcome,
			Termination: in.Termination,
			MoveCount:   in.MoveCount,
		}
		if err := tx.Create(&result).Error; err != nil {
			return err
		}

		prog, err := s.EnsureProgressRecord(tx, in.PlayerID)
		if err != nil {
			return err
		}
		s.applyResult(prog, in)
		if err := tx.Save(prog).Error; err != nil {
			return err
		}
		updated = *prog
		return nil
	})
	if err != nil {
		return nil, err
	}

	outcome := &MilestoneOutcome{Progress: &updated, Requests: map[string]MintResult{}}
	if player.WalletAddress == "" {
		s.logger.Info("player has no wallet, skipping reward evaluation", zap.String("player_id", player.ID))
		return outcome, nil
	}

	for _, def := range models.RewardCatalog {
		if !meetsThreshold(&updated, def.Threshold) {
			continue
		}
		res, err := s.gateway.RequestMint(ctx, MintRequest{
			PlayerID:      player.ID,
			PlayerAddress: player.WalletAddress,
			RewardType:    def.Type,
			Context:       map[string]interface{}{"game_id": in.GameID},
		})
		if err != nil {
			return outcome, fmt.Errorf("request %s: %w", def.Type, err)
		}
		// Already earned rewards keep meeting their threshold forever; only report new work.
		if res.Reason == RejectAlreadyEarned {
			continue
		}
		outcome.Requests[string(def.Type)] = res
	}
	return outcome, nil
}

func (s *MilestoneService) applyResult(prog *models.PlayerProgress, in GameResultInput) {
	now := s.clock.Now().UTC()
	prog.GamesPlayed++
	prog.LastGameAt = &now

	switch in.Outcome {
	case models.GameOutcomeWin:
		prog.Wins++
		prog.CurrentStreak++
		if prog.CurrentStreak > prog.BestStreak {
			prog.BestStreak = prog.CurrentStreak
		}
		if in.Termination == models.TerminationCheckmate {
			prog.Checkmates++
			if in.MoveCount > 0 && in.MoveCount <= models.QuickMateMoves {
				prog.QuickMates++
			}
		}
	case models.GameOutcomeLoss:
		prog.Losses++
		prog.CurrentStreak = 0
	case models.GameOutcomeDraw:
		prog.Draws++
		prog.CurrentStreak = 0
	}
}

func meetsThreshold(prog *models.PlayerProgress, req map[string]int64) bool {
	for key, required := range req {
		have, ok := prog.Counter(key)
		if !ok || have < required {
			return false
		}
	}
	return true
}

func validateGameResult(in GameResultInput) error {
	if in.PlayerID == "" || in.GameID == "" {
		return fmt.Errorf("%w: player_id and game_id are required", ErrInvalidGameResult)
	}
	switch in.Outcome {
	case models.GameOutcomeWin, models.GameOutcomeLoss, models.GameOutcomeDraw:
	default:
		return fmt.Errorf("%w: outcome must be win, loss or draw", ErrInvalidGameResult)
	}
	if in.MoveCount < 0 {
		return fmt.Errorf("%w: move_count must not be negative", ErrInvalidGameResult)
	}
	return nil
}
