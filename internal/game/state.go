// internal/game/state.go
//
// State, event and snapshot types for the run state machine.
// Game (game.go) owns all of this exclusively; the HTTP layer only ever
// sees Snapshot copies and drained Events.

package game

import (
	"time"

	"github.com/satoshimatch/go-server/internal/achieve"
	"github.com/satoshimatch/go-server/internal/audio"
)

// Phase is the coarse state of a run.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseActive        Phase = "active"
	PhaseStageClearing Phase = "stage_clearing"
	PhaseLost          Phase = "lost"
	PhaseCompleted     Phase = "completed"
)

// RunState aggregates the mutable counters of one play-through.
// Invariants: Exp in [0, ExpPerLevel); Stage in [1, NumStages];
// TimeRemaining never negative.
type RunState struct {
	Level              int
	Exp                int
	Coins              int
	Stage              int
	TimeRemaining      time.Duration
	TimeSpentStage     time.Duration
	TimeSpentRun       time.Duration
	TotalTimeSpent     time.Duration // across restarts, for the session
	MatchesInStage     int
	MatchedCardsInRun  int
	OwnedPowerUps      []PowerUpID
	UsedUpgradesInRun  bool
	BoxesUnlockedInRun int
	ExpMultiplier      int
	CoinMultiplier     int
}

// resolution is the pending settle of a two-card selection. Only one may be
// outstanding at a time.
type resolution struct {
	first, second int
	match         bool
	due           time.Duration
}

// rewardBox is a queued level-up grant, opened by player interaction.
type rewardBox struct {
	Level   int
	Rewards []PowerUpID
}

// PopupKind tags a transient notice shown by the presentation layer.
type PopupKind string

const (
	PopupExpGain     PopupKind = "exp"
	PopupCoinGain    PopupKind = "coin"
	PopupLevelUp     PopupKind = "levelUp"
	PopupAchievement PopupKind = "achievement"
)

// GridCell anchors a popup to a board position (3 columns wide).
type GridCell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type popup struct {
	kind      PopupKind
	text      string
	cell      *GridCell
	expiresAt time.Duration
}

// EventKind tags a side effect the caller must carry out after an intent or
// clock advance: play a cue, persist a snapshot, bump the restart counter.
type EventKind string

const (
	EventCue                 EventKind = "cue"
	EventAchievementUnlocked EventKind = "achievement_unlocked"
	EventAchievementsChanged EventKind = "achievements_changed"
	EventRestartCounted      EventKind = "restart_counted"
)

// Event is a fire-and-forget side-effect record. Failures handling one must
// never feed back into game state.
type Event struct {
	Kind         EventKind
	Cue          audio.Cue
	Achievement  achieve.Achievement
	RestartCount int
}

// CardView is the presentation-safe projection of a Card. Symbol is only
// populated while the card is face-up or matched.
type CardView struct {
	ID      int    `json:"id"`
	Symbol  string `json:"symbol,omitempty"`
	FaceUp  bool   `json:"faceUp"`
	Matched bool   `json:"matched"`
	Hinted  bool   `json:"hinted"`
}

// ActiveEffectView is a running timed power-up effect.
type ActiveEffectView struct {
	ID               PowerUpID `json:"id"`
	SecondsRemaining int       `json:"secondsRemaining"`
}

// PopupView is a transient notice with its remaining display time.
type PopupView struct {
	Kind        PopupKind `json:"kind"`
	Text        string    `json:"text"`
	Cell        *GridCell `json:"cell,omitempty"`
	RemainingMs int       `json:"remainingMs"`
}

// BoxView announces a pending reward box without revealing its rolls.
type BoxView struct {
	Level   int `json:"level"`
	Rewards int `json:"rewards"`
}

// Snapshot is the full UI state exposed by the core.
type Snapshot struct {
	Phase             Phase                 `json:"phase"`
	Level             int                   `json:"level"`
	Exp               int                   `json:"exp"`
	Coins             int                   `json:"coins"`
	Stage             int                   `json:"stage"`
	TimeRemaining     int                   `json:"timeRemaining"`
	TimeSpent         int                   `json:"timeSpent"`
	TotalTimeSpent    int                   `json:"totalTimeSpent"`
	MatchesInStage    int                   `json:"matchesInStage"`
	MatchedCardsInRun int                   `json:"matchedCardsInRun"`
	Cards             []CardView            `json:"cards"`
	Flipped           []int                 `json:"flipped"`
	ResolutionPending bool                  `json:"resolutionPending"`
	Frozen            bool                  `json:"frozen"`
	ExpMultiplier     int                   `json:"expMultiplier"`
	CoinMultiplier    int                   `json:"coinMultiplier"`
	OwnedPowerUps     []PowerUpID           `json:"ownedPowerUps"`
	ActiveEffects     []ActiveEffectView    `json:"activeEffects"`
	ShopOpen          bool                  `json:"shopOpen"`
	AchievementsOpen  bool                  `json:"achievementsOpen"`
	Box               *BoxView              `json:"box,omitempty"`
	Popups            []PopupView           `json:"popups"`
	Achievements      []achieve.Achievement `json:"achievements"`
	RestartCount      int                   `json:"restartCount"`
	ScoreSubmitted    bool                  `json:"scoreSubmitted"`
}
