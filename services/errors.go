package services

import "errors"

var (
	ErrTaskNotFound      = errors.New("mint task not found")
	ErrVersionConflict   = errors.New("mint task was modified concurrently")
	ErrActiveTaskExists  = errors.New("an active mint task already exists")
	ErrNotOwner          = errors.New("address does not belong to player")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrInvalidCompletion = errors.New("invalid completion report")
	ErrInvalidGameResult = errors.New("invalid game result")
	ErrDuplicateResult   = errors.New("game result already recorded")
)
