package game

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/satoshimatch/go-server/internal/achieve"
	"github.com/satoshimatch/go-server/internal/audio"
)

func newStarted(t *testing.T) *Game {
	t.Helper()
	g := New(Config{Rng: rand.New(rand.NewPCG(1, 2))})
	g.Start()
	g.DrainEvents()
	return g
}

// findPair returns the indices of one fully unmatched pair.
func findPair(t *testing.T, g *Game) (int, int) {
	t.Helper()
	bySym := map[Symbol][]int{}
	for i, c := range g.deck {
		if !c.Matched {
			bySym[c.Symbol] = append(bySym[c.Symbol], i)
		}
	}
	for _, idx := range bySym {
		if len(idx) == 2 {
			return idx[0], idx[1]
		}
	}
	t.Fatal("no unmatched pair left")
	return 0, 0
}

// findMismatch returns indices of two unmatched cards with different symbols.
func findMismatch(t *testing.T, g *Game) (int, int) {
	t.Helper()
	for i, a := range g.deck {
		if a.Matched {
			continue
		}
		for j, b := range g.deck {
			if j != i && !b.Matched && b.Symbol != a.Symbol {
				return i, j
			}
		}
	}
	t.Fatal("no mismatching cards left")
	return 0, 0
}

// matchPair opens any pending reward boxes, then flips one pair and settles
// the resolution.
func matchPair(t *testing.T, g *Game) {
	t.Helper()
	for len(g.boxes) > 0 {
		_, err := g.OpenBox()
		require.NoError(t, err)
	}
	a, b := findPair(t, g)
	require.NoError(t, g.FlipCard(a))
	require.NoError(t, g.FlipCard(b))
	g.Advance(MatchSettleDelay)
}

func clearStage(t *testing.T, g *Game) {
	t.Helper()
	for i := 0; i < PairsPerStage; i++ {
		matchPair(t, g)
	}
	g.Advance(StageClearDelay)
}

func hasCue(events []Event, c audio.Cue) bool {
	for _, ev := range events {
		if ev.Kind == EventCue && ev.Cue == c {
			return true
		}
	}
	return false
}

func TestNewStartsIdleWithPreviewDeck(t *testing.T) {
	g := New(Config{Rng: rand.New(rand.NewPCG(1, 2))})
	require.Equal(t, PhaseIdle, g.Phase())

	snap := g.Snapshot()
	require.Len(t, snap.Cards, CardsPerStage)
	require.Equal(t, 1, snap.Level)
	require.Equal(t, 1, snap.Stage)
	require.Equal(t, int(StageTimeBudget/time.Second), snap.TimeRemaining)
	for _, c := range snap.Cards {
		require.False(t, c.FaceUp)
		require.Empty(t, c.Symbol, "face-down cards must not leak symbols")
	}

	ev := g.DrainEvents()
	require.True(t, hasCue(ev, audio.CueIntro))
	require.True(t, hasCue(ev, audio.CueAtmosphere))
	require.Empty(t, g.DrainEvents(), "drain must clear")
}

func TestStartCountsEveryRestart(t *testing.T) {
	g := New(Config{Rng: rand.New(rand.NewPCG(1, 2))})
	g.Start()
	require.Equal(t, PhaseActive, g.Phase())
	require.Equal(t, 1, g.RestartCount())

	ev := g.DrainEvents()
	var counted []int
	for _, e := range ev {
		if e.Kind == EventRestartCounted {
			counted = append(counted, e.RestartCount)
		}
	}
	require.Equal(t, []int{1}, counted)

	// Mid-run restart counts too and resets the run.
	matchPair(t, g)
	require.Equal(t, 1, g.Snapshot().MatchesInStage)
	g.Start()
	require.Equal(t, 2, g.RestartCount())
	snap := g.Snapshot()
	require.Zero(t, snap.MatchesInStage)
	require.Zero(t, snap.Coins)
	require.Equal(t, 1, snap.Level)
}

func TestRestartPreservesTotalTimeOnly(t *testing.T) {
	g := newStarted(t)
	g.Advance(3 * time.Second)
	require.Equal(t, 3, g.Snapshot().TimeSpent)

	g.Start()
	snap := g.Snapshot()
	require.Zero(t, snap.TimeSpent)
	require.Equal(t, 3, snap.TotalTimeSpent)
}

func TestMatchScoring(t *testing.T) {
	g := newStarted(t)
	a, b := findPair(t, g)
	require.NoError(t, g.FlipCard(a))
	require.NoError(t, g.FlipCard(b))

	// Armed but not yet settled.
	snap := g.Snapshot()
	require.True(t, snap.ResolutionPending)
	require.True(t, snap.Cards[a].FaceUp)
	require.NotEmpty(t, snap.Cards[a].Symbol)
	require.Zero(t, snap.Coins)

	g.Advance(MatchSettleDelay)
	snap = g.Snapshot()
	require.Equal(t, CoinsPerMatch, snap.Coins)
	require.Equal(t, ExpPerMatch, snap.Exp)
	require.Equal(t, 1, snap.MatchesInStage)
	require.Equal(t, 1, snap.MatchedCardsInRun)
	require.True(t, snap.Cards[a].Matched)
	require.True(t, snap.Cards[b].Matched)
	require.Empty(t, snap.Flipped)
	require.Equal(t, int((StageTimeBudget+MatchTimeBonus)/time.Second), snap.TimeRemaining)
	require.True(t, hasCue(g.DrainEvents(), audio.CueMatch))

	// Gain popups anchored at the second card's cell.
	var texts []string
	for _, p := range snap.Popups {
		texts = append(texts, p.Text)
	}
	require.Contains(t, texts, "+10 Coins")
	require.Contains(t, texts, "+50 EXP")
}

func TestMismatchResetsWithoutScoring(t *testing.T) {
	g := newStarted(t)
	a, b := findMismatch(t, g)
	require.NoError(t, g.FlipCard(a))
	require.NoError(t, g.FlipCard(b))

	g.Advance(MismatchResetDelay)
	snap := g.Snapshot()
	require.Zero(t, snap.Coins)
	require.Zero(t, snap.Exp)
	require.Zero(t, snap.MatchesInStage)
	require.Empty(t, snap.Flipped)
	require.False(t, snap.Cards[a].Matched)
	require.False(t, snap.Cards[b].Matched)
	require.True(t, hasCue(g.DrainEvents(), audio.CueWrongMatch))
}

func TestFlipGuards(t *testing.T) {
	idle := New(Config{Rng: rand.New(rand.NewPCG(1, 2))})
	require.ErrorIs(t, idle.FlipCard(0), ErrNotActive)

	g := newStarted(t)
	require.ErrorIs(t, g.FlipCard(-1), ErrInvalidIndex)
	require.ErrorIs(t, g.FlipCard(CardsPerStage), ErrInvalidIndex)

	a, b := findMismatch(t, g)
	require.NoError(t, g.FlipCard(a))
	require.ErrorIs(t, g.FlipCard(a), ErrCardUnavailable)
	require.NoError(t, g.FlipCard(b))
	require.ErrorIs(t, g.FlipCard(0), ErrResolutionPending)
	g.Advance(MismatchResetDelay)

	g.SetShopOpen(true)
	require.ErrorIs(t, g.FlipCard(a), ErrOverlayOpen)
	g.SetShopOpen(false)

	// Matched cards stay out of play.
	matchPair(t, g)
	for i, c := range g.deck {
		if c.Matched {
			require.ErrorIs(t, g.FlipCard(i), ErrCardUnavailable)
			break
		}
	}
}

func TestCountdownExpiryLosesRun(t *testing.T) {
	g := newStarted(t)
	g.Advance(StageTimeBudget)

	require.Equal(t, PhaseLost, g.Phase())
	snap := g.Snapshot()
	require.Zero(t, snap.TimeRemaining)
	require.True(t, hasCue(g.DrainEvents(), audio.CueGameOver))
	require.ErrorIs(t, g.FlipCard(0), ErrNotActive)

	// Dead runs accrue no further time.
	g.Advance(10 * time.Second)
	require.Equal(t, snap.TimeSpent, g.Snapshot().TimeSpent)
}

func TestOverlaySuspendsAllClocks(t *testing.T) {
	g := newStarted(t)
	g.SetShopOpen(true)
	g.Advance(10 * time.Second)

	snap := g.Snapshot()
	require.Equal(t, int(StageTimeBudget/time.Second), snap.TimeRemaining)
	require.Zero(t, snap.TimeSpent)

	g.SetShopOpen(false)
	g.Advance(2 * time.Second)
	snap = g.Snapshot()
	require.Equal(t, int(StageTimeBudget/time.Second)-2, snap.TimeRemaining)
	require.Equal(t, 2, snap.TimeSpent)
}

func TestPurchaseRules(t *testing.T) {
	g := newStarted(t)
	require.ErrorIs(t, g.Purchase("warp"), ErrUnknownPowerUp)

	g.run.Coins = 25
	require.ErrorIs(t, g.Purchase(PowerUpFreeze), ErrInsufficientCoins)
	require.Equal(t, 25, g.run.Coins)
	require.Empty(t, g.run.OwnedPowerUps)

	g.run.Coins = 30
	require.NoError(t, g.Purchase(PowerUpFreeze))
	require.Zero(t, g.run.Coins)
	require.Equal(t, []PowerUpID{PowerUpFreeze}, g.run.OwnedPowerUps)

	require.ErrorIs(t, g.Activate(PowerUpHint), ErrPowerUpNotOwned)
}

func TestFreezeSuspendsCountdownOnly(t *testing.T) {
	g := newStarted(t)
	g.run.Coins = 100
	require.NoError(t, g.Purchase(PowerUpFreeze))
	require.NoError(t, g.Activate(PowerUpFreeze))
	require.True(t, g.Snapshot().Frozen)

	g.Advance(FreezeDuration)
	snap := g.Snapshot()
	require.Equal(t, int(StageTimeBudget/time.Second), snap.TimeRemaining)
	require.Equal(t, int(FreezeDuration/time.Second), snap.TimeSpent)
	require.False(t, snap.Frozen)

	g.Advance(3 * time.Second)
	require.Equal(t, int(StageTimeBudget/time.Second)-3, g.Snapshot().TimeRemaining)
}

func TestMultiplierDoublesThenReverts(t *testing.T) {
	g := newStarted(t)
	g.run.Coins = 100
	require.NoError(t, g.Purchase(PowerUpMultiplier))
	require.Equal(t, 50, g.run.Coins)
	require.NoError(t, g.Activate(PowerUpMultiplier))
	require.True(t, g.run.UsedUpgradesInRun)

	snap := g.Snapshot()
	require.Equal(t, RewardMultiplier, snap.ExpMultiplier)
	require.Equal(t, RewardMultiplier, snap.CoinMultiplier)
	require.Len(t, snap.ActiveEffects, 1)
	require.Equal(t, int(MultiplierDuration/time.Second), snap.ActiveEffects[0].SecondsRemaining)

	matchPair(t, g)
	require.Equal(t, 50+RewardMultiplier*CoinsPerMatch, g.Snapshot().Coins)
	require.Equal(t, RewardMultiplier*ExpPerMatch, g.Snapshot().Exp)

	g.Advance(MultiplierDuration)
	snap = g.Snapshot()
	require.Equal(t, 1, snap.ExpMultiplier)
	require.Equal(t, 1, snap.CoinMultiplier)
	require.Empty(t, snap.ActiveEffects)
}

func TestReactivationRefreshesEffect(t *testing.T) {
	g := newStarted(t)
	g.run.Coins = 100
	require.NoError(t, g.Purchase(PowerUpMultiplier))
	require.NoError(t, g.Purchase(PowerUpMultiplier))
	require.NoError(t, g.Activate(PowerUpMultiplier))

	g.Advance(6 * time.Second)
	require.NoError(t, g.Activate(PowerUpMultiplier))
	require.Equal(t, MultiplierDuration, g.effects[PowerUpMultiplier])
	require.Equal(t, RewardMultiplier, g.run.ExpMultiplier)
}

func TestHintMarksFreshPairEachTime(t *testing.T) {
	g := newStarted(t)
	g.run.Coins = 100
	require.NoError(t, g.Purchase(PowerUpHint))
	require.NoError(t, g.Purchase(PowerUpHint))

	require.NoError(t, g.Activate(PowerUpHint))
	first := hintedIndices(g)
	require.Len(t, first, 2)
	require.Equal(t, g.deck[first[0]].Symbol, g.deck[first[1]].Symbol)

	require.NoError(t, g.Activate(PowerUpHint))
	second := hintedIndices(g)
	require.Len(t, second, 4)
}

func TestHintNoOpWhenAllPairsHinted(t *testing.T) {
	g := newStarted(t)
	g.run.Coins = 300
	for i := 0; i < 7; i++ {
		require.NoError(t, g.Purchase(PowerUpHint))
	}
	for i := 0; i < 6; i++ {
		require.NoError(t, g.Activate(PowerUpHint))
	}
	require.Len(t, hintedIndices(g), CardsPerStage)

	// Seventh activation has nothing left to mark but is still consumed.
	require.NoError(t, g.Activate(PowerUpHint))
	require.Len(t, hintedIndices(g), CardsPerStage)
	require.Empty(t, g.run.OwnedPowerUps)
}

func hintedIndices(g *Game) []int {
	var out []int
	for i, c := range g.deck {
		if c.Hinted {
			out = append(out, i)
		}
	}
	return out
}

func TestExpCarriesIntoLevelUp(t *testing.T) {
	g := newStarted(t)
	g.run.Exp = 230
	matchPair(t, g)

	snap := g.Snapshot()
	require.Equal(t, 2, snap.Level)
	require.Equal(t, 30, snap.Exp)
	require.NotNil(t, snap.Box)
	require.Equal(t, 2, snap.Box.Level)
	require.Equal(t, 1, snap.Box.Rewards)
	require.True(t, hasCue(g.DrainEvents(), audio.CueLevelUp))
}

func TestLargeGainGrantsMultipleLevels(t *testing.T) {
	g := newStarted(t)
	g.gainExp(2*ExpPerLevel + 40)
	require.Equal(t, 3, g.run.Level)
	require.Equal(t, 40, g.run.Exp)
	require.Len(t, g.boxes, 2)
}

func TestMilestoneLevelBoxRollsThree(t *testing.T) {
	g := newStarted(t)
	g.run.Level = BonusBoxLevelStep - 1
	g.run.Exp = ExpPerLevel - ExpPerMatch
	matchPair(t, g)

	require.Equal(t, BonusBoxLevelStep, g.run.Level)
	require.Len(t, g.boxes, 1)
	require.Len(t, g.boxes[0].Rewards, BonusBoxRolls)
}

func TestPendingBoxBlocksPlayUntilOpened(t *testing.T) {
	g := newStarted(t)
	g.run.Exp = ExpPerLevel - ExpPerMatch
	matchPairNoBoxes(t, g)

	require.ErrorIs(t, g.FlipCard(0), ErrOverlayOpen)

	before := g.Snapshot().TimeRemaining
	g.Advance(5 * time.Second)
	require.Equal(t, before, g.Snapshot().TimeRemaining)

	rewards, err := g.OpenBox()
	require.NoError(t, err)
	require.Len(t, rewards, 1)
	require.Equal(t, rewards, g.run.OwnedPowerUps)
	require.Equal(t, 1, g.run.BoxesUnlockedInRun)

	_, err = g.OpenBox()
	require.ErrorIs(t, err, ErrNoBox)

	a, _ := findPair(t, g)
	require.NoError(t, g.FlipCard(a))
}

// matchPairNoBoxes is matchPair without the box drain, for tests that assert
// on the pending box itself.
func matchPairNoBoxes(t *testing.T, g *Game) {
	t.Helper()
	a, b := findPair(t, g)
	require.NoError(t, g.FlipCard(a))
	require.NoError(t, g.FlipCard(b))
	g.Advance(MatchSettleDelay)
}

func TestStageClearAdvancesWithTimeCarry(t *testing.T) {
	g := newStarted(t)
	for i := 0; i < PairsPerStage; i++ {
		matchPair(t, g)
	}
	require.Equal(t, PhaseStageClearing, g.Phase())
	remaining := g.Snapshot().TimeRemaining

	g.Advance(StageClearDelay)
	snap := g.Snapshot()
	require.Equal(t, PhaseActive, g.Phase())
	require.Equal(t, 2, snap.Stage)
	require.Zero(t, snap.MatchesInStage)
	require.Equal(t, remaining+int(StageTimeBudget/time.Second), snap.TimeRemaining)
	for _, c := range snap.Cards {
		require.False(t, c.Matched, "new stage deals a fresh deck")
	}
}

func TestFullRunCompletesAndClaimsScore(t *testing.T) {
	g := newStarted(t)
	for stage := 0; stage < NumStages; stage++ {
		clearStage(t, g)
	}
	require.Equal(t, PhaseCompleted, g.Phase())

	snap := g.Snapshot()
	require.Equal(t, NumStages*PairsPerStage, snap.MatchedCardsInRun)
	require.Equal(t, NumStages*PairsPerStage*CoinsPerMatch, snap.Coins)

	unlocked := map[achieve.ID]bool{}
	for _, a := range snap.Achievements {
		unlocked[a.ID] = a.Unlocked
	}
	require.True(t, unlocked[achieve.BlockBuster])
	require.True(t, unlocked[achieve.Hodler], "no upgrades were used")
	require.True(t, unlocked[achieve.QuickHands])
	require.True(t, unlocked[achieve.SatoshisShadow])
	require.False(t, unlocked[achieve.Collector])

	_, err := g.ClaimScore("  ")
	require.ErrorIs(t, err, ErrEmptyName)

	score, err := g.ClaimScore("satoshi")
	require.NoError(t, err)
	require.Equal(t, "satoshi", score.Name)
	require.Equal(t, NumStages, score.Stage)
	require.Equal(t, snap.Coins, score.Coins)

	_, err = g.ClaimScore("again")
	require.ErrorIs(t, err, ErrScoreSubmitted)
}

func TestClaimScoreRequiresCompletion(t *testing.T) {
	g := newStarted(t)
	_, err := g.ClaimScore("satoshi")
	require.ErrorIs(t, err, ErrNotCompleted)
}

func TestLoseCancelsEffectsAndOverlays(t *testing.T) {
	g := newStarted(t)
	g.run.Coins = 100
	require.NoError(t, g.Purchase(PowerUpMultiplier))
	require.NoError(t, g.Activate(PowerUpMultiplier))
	g.DrainEvents()

	g.Advance(StageTimeBudget + MultiplierDuration)
	require.Equal(t, PhaseLost, g.Phase())
	snap := g.Snapshot()
	require.Empty(t, snap.ActiveEffects)
	require.Equal(t, 1, snap.ExpMultiplier)
	require.False(t, snap.ShopOpen)
}

func TestWeakHandsUnlocksOnFiftiethRestart(t *testing.T) {
	g := New(Config{Rng: rand.New(rand.NewPCG(1, 2)), RestartCount: 49})
	g.DrainEvents()
	g.Start()

	var unlockedIDs []achieve.ID
	changed := false
	for _, ev := range g.DrainEvents() {
		switch ev.Kind {
		case EventAchievementUnlocked:
			unlockedIDs = append(unlockedIDs, ev.Achievement.ID)
		case EventAchievementsChanged:
			changed = true
		}
	}
	require.Equal(t, []achieve.ID{achieve.WeakHands}, unlockedIDs)
	require.True(t, changed)

	var texts []string
	for _, p := range g.Snapshot().Popups {
		texts = append(texts, p.Text)
	}
	require.Contains(t, texts, "Weak Hands")

	// Already unlocked: no repeat event on the next restart.
	g.Start()
	for _, ev := range g.DrainEvents() {
		require.NotEqual(t, EventAchievementUnlocked, ev.Kind)
	}
}

func TestPopupsExpire(t *testing.T) {
	g := newStarted(t)
	matchPair(t, g)
	require.NotEmpty(t, g.Snapshot().Popups)

	g.Advance(AchievementPopupDuration + time.Second)
	require.Empty(t, g.Snapshot().Popups)
}

func TestSavedAchievementsSeedTheGame(t *testing.T) {
	saved := achieve.Defaults()
	saved[0].Unlocked = true
	g := New(Config{Rng: rand.New(rand.NewPCG(1, 2)), Achievements: saved})

	got := g.Achievements()
	require.True(t, got[0].Unlocked)

	// The accessor hands out copies.
	got[1].Unlocked = true
	require.False(t, g.Achievements()[1].Unlocked)
}
