package game

import "time"

const (
	NumStages     = 6
	PairsPerStage = 6
	CardsPerStage = PairsPerStage * 2
	GridCols      = 3 // board renders 3 columns wide

	StageTimeBudget = 15 * time.Second
	MatchTimeBonus  = 1 * time.Second

	ExpPerMatch   = 50
	CoinsPerMatch = 10
	ExpPerLevel   = 250

	MatchSettleDelay   = 500 * time.Millisecond
	MismatchResetDelay = 1000 * time.Millisecond
	StageClearDelay    = 1500 * time.Millisecond

	FreezeDuration     = 5 * time.Second
	MultiplierDuration = 10 * time.Second
	RewardMultiplier   = 2

	// Reward boxes: every level-up grants one roll, levels divisible by
	// BonusBoxLevelStep grant BonusBoxRolls instead.
	BonusBoxLevelStep = 5
	BonusBoxRolls     = 3

	GainPopupDuration        = 1 * time.Second
	LevelUpPopupDuration     = 2 * time.Second
	AchievementPopupDuration = 5 * time.Second
)
