// internal/achieve/achieve.go
//
// Achievement evaluator. Evaluate is a pure pass over run statistics:
// it updates progress counters, unlocks anything whose condition holds, and
// reports only the newly unlocked entries. Unlocks are monotonic: an
// unlocked achievement is never re-locked and never re-reported, so running
// the evaluator twice with the same stats is a no-op the second time.

package achieve

// ID identifies an achievement.
type ID string

const (
	CryptoConqueror ID = "crypto-conqueror"
	BlockBuster     ID = "block-buster"
	Hodler          ID = "hodler"
	QuickHands      ID = "quick-hands"
	Miner           ID = "miner"
	SatoshisShadow  ID = "satoshis-shadow"
	WeakHands       ID = "weak-hands"
	Collector       ID = "collector"
)

// Achievement is the persisted unlock record. Progress/Target are zero for
// the all-or-nothing conditions (hodler, quick-hands, collector).
type Achievement struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Unlocked    bool   `json:"unlocked"`
	Progress    int    `json:"progress,omitempty"`
	Target      int    `json:"target,omitempty"`
	RewardImage string `json:"rewardImage"`
}

// Stats is everything the evaluator looks at. Completed means the run
// reached the end of stage 6.
type Stats struct {
	Level        int
	MatchedInRun int
	Coins        int
	BoxesInRun   int
	RestartCount int
	RunSeconds   int
	Completed    bool
	UsedUpgrades bool
}

const (
	targetLevel    = 10
	targetMatches  = 32
	targetBoxes    = 12
	targetCoins    = 320
	targetRestarts = 50
	speedRunLimit  = 120 // seconds
)

// Defaults returns the locked achievement set in display order.
func Defaults() []Achievement {
	return []Achievement{
		{
			ID:          CryptoConqueror,
			Name:        "Crypto Conqueror",
			Description: "Reach experience level 10",
			Target:      targetLevel,
			RewardImage: "/assets/rewards/crypto-conqueror.png",
		},
		{
			ID:          BlockBuster,
			Name:        "Block Buster",
			Description: "Match 32 cards in a single run",
			Target:      targetMatches,
			RewardImage: "/assets/rewards/block-buster.png",
		},
		{
			ID:          Hodler,
			Name:        "The HODLer",
			Description: "Beat the game without using any upgrades",
			RewardImage: "/assets/rewards/hodler.png",
		},
		{
			ID:          QuickHands,
			Name:        "Quick Hands",
			Description: "Beat the game in under 2 minutes",
			RewardImage: "/assets/rewards/quick-hands.png",
		},
		{
			ID:          Miner,
			Name:        "The Miner",
			Description: "Unlock 12 gift boxes from leveling up",
			Target:      targetBoxes,
			RewardImage: "/assets/rewards/miner.png",
		},
		{
			ID:          SatoshisShadow,
			Name:        "Satoshi's Shadow",
			Description: "Have 320 coins at the end of the game",
			Target:      targetCoins,
			RewardImage: "/assets/rewards/satoshis-shadow.png",
		},
		{
			ID:          WeakHands,
			Name:        "Weak Hands",
			Description: "Restart or retry the game more than 50 times",
			Target:      targetRestarts,
			RewardImage: "/assets/rewards/weak-hands.png",
		},
		{
			ID:          Collector,
			Name:        "The Collector",
			Description: "Unlock all other achievements",
			RewardImage: "/assets/rewards/collector.png",
		},
	}
}

// Merge overlays a persisted snapshot onto the defaults. Unknown ids in the
// snapshot are dropped, missing ids come back locked, and name/description/
// image always come from the defaults so stale snapshots cannot pin old
// copy. A corrupt snapshot therefore degrades to "whatever it did record".
func Merge(saved []Achievement) []Achievement {
	out := Defaults()
	for i := range out {
		for _, s := range saved {
			if s.ID != out[i].ID {
				continue
			}
			out[i].Unlocked = s.Unlocked
			out[i].Progress = s.Progress
			break
		}
	}
	return out
}

// Evaluate updates list in place and returns the newly unlocked entries.
func Evaluate(list []Achievement, s Stats) []Achievement {
	var newly []Achievement

	unlock := func(i int) {
		list[i].Unlocked = true
		newly = append(newly, list[i])
	}

	for i := range list {
		a := &list[i]
		if a.Unlocked {
			continue
		}
		switch a.ID {
		case CryptoConqueror:
			a.Progress = s.Level
			if s.Level >= targetLevel {
				unlock(i)
			}
		case BlockBuster:
			a.Progress = s.MatchedInRun
			if s.MatchedInRun >= targetMatches {
				unlock(i)
			}
		case Hodler:
			if s.Completed && !s.UsedUpgrades {
				unlock(i)
			}
		case QuickHands:
			if s.Completed && s.RunSeconds <= speedRunLimit {
				unlock(i)
			}
		case Miner:
			a.Progress = s.BoxesInRun
			if s.BoxesInRun >= targetBoxes {
				unlock(i)
			}
		case SatoshisShadow:
			a.Progress = s.Coins
			if s.Completed && s.Coins >= targetCoins {
				unlock(i)
			}
		case WeakHands:
			a.Progress = s.RestartCount
			if s.RestartCount >= targetRestarts {
				unlock(i)
			}
		}
	}

	// Collector goes last so it can see unlocks from this same pass.
	for i := range list {
		if list[i].ID != Collector || list[i].Unlocked {
			continue
		}
		all := true
		for j := range list {
			if list[j].ID != Collector && !list[j].Unlocked {
				all = false
				break
			}
		}
		if all {
			unlock(i)
		}
	}
	return newly
}
