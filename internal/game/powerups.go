// internal/game/powerups.go
//
// Power-up catalog. Purchase/activation logic lives on Game; this file is
// the immutable catalog plus lookup helpers.

package game

import "time"

// PowerUpID identifies a catalog entry.
type PowerUpID string

const (
	PowerUpFreeze     PowerUpID = "freeze"
	PowerUpHint       PowerUpID = "hint"
	PowerUpMultiplier PowerUpID = "multiplier"
)

// PowerUp is an immutable catalog entry. Duration is zero for instant
// effects (hint).
type PowerUp struct {
	ID          PowerUpID     `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Cost        int           `json:"cost"`
	Duration    time.Duration `json:"-"`
}

var catalog = []PowerUp{
	{
		ID:          PowerUpFreeze,
		Name:        "Freeze Time",
		Description: "Freezes the timer for 5 seconds",
		Cost:        30,
		Duration:    FreezeDuration,
	},
	{
		ID:          PowerUpHint,
		Name:        "Match Hint",
		Description: "Reveals one matching pair",
		Cost:        40,
	},
	{
		ID:          PowerUpMultiplier,
		Name:        "2x Rewards",
		Description: "Doubles EXP and Coins for 10 seconds",
		Cost:        50,
		Duration:    MultiplierDuration,
	},
}

// Catalog returns the purchasable power-ups in display order.
func Catalog() []PowerUp {
	out := make([]PowerUp, len(catalog))
	copy(out, catalog)
	return out
}

func lookupPowerUp(id PowerUpID) (PowerUp, bool) {
	for _, p := range catalog {
		if p.ID == id {
			return p, true
		}
	}
	return PowerUp{}, false
}

// rewardKinds are the possible reward-box rolls. Rolls are uniform with
// replacement, so a 3-reward box can hold duplicates.
var rewardKinds = []PowerUpID{PowerUpFreeze, PowerUpHint, PowerUpMultiplier}
