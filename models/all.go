package models

// All lists every model the service migrates.
func All() []interface{} {
	return []interface{}{
		&Player{},
		&PlayerProgress{},
		&GameResult{},
		&MintTask{},
		&EarnedReward{},
	}
}
