// internal/game/game.go
//
// The run state machine. One Game owns the entire RunState for a session:
// card flipping and match resolution, the countdown and elapsed-time clocks,
// timed power-up effects, stage progression, reward boxes and achievement
// evaluation.
//
// Time is internal and deterministic. The caller advances the clock with
// Advance(dt); all delays (match settle, mismatch reset, stage clear, effect
// expiry) are deadlines against that clock, and the countdown derives from a
// single accumulator that only accrues while the run is eligible to tick,
// so exactly one countdown tick fires per unsuspended second, with no drift
// or double firing when suspension toggles.
//
// Every intent and every fired deadline mutates state synchronously, then
// records side effects (sound cues, persistence triggers) as Events for the
// caller to drain. Nothing in here blocks, sleeps, or touches storage.

package game

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/satoshimatch/go-server/internal/achieve"
	"github.com/satoshimatch/go-server/internal/audio"
)

// Invalid intents. These reject the intent with no state change; the HTTP
// layer maps them to transient user-facing notices.
var (
	ErrNotActive         = errors.New("game not active")
	ErrOverlayOpen       = errors.New("overlay open")
	ErrInvalidIndex      = errors.New("card index out of range")
	ErrResolutionPending = errors.New("resolution pending")
	ErrCardUnavailable   = errors.New("card already matched or flipped")
	ErrSelectionFull     = errors.New("two cards already flipped")
	ErrUnknownPowerUp    = errors.New("unknown power-up")
	ErrInsufficientCoins = errors.New("insufficient coins")
	ErrPowerUpNotOwned   = errors.New("power-up not owned")
	ErrNoBox             = errors.New("no reward box pending")
	ErrNotCompleted      = errors.New("run not completed")
	ErrScoreSubmitted    = errors.New("score already submitted")
	ErrEmptyName         = errors.New("player name required")
)

// Config seeds a new Game. Zero values are fine: a nil Rng gets a random
// seed, nil Achievements start locked, RestartCount starts at zero.
type Config struct {
	Rng          *rand.Rand
	Achievements []achieve.Achievement
	RestartCount int
}

// Game is the single owner of one session's state. Not safe for concurrent
// use; callers serialize access (the HTTP layer holds one mutex per session).
type Game struct {
	rng *rand.Rand

	phase   Phase
	run     RunState
	deck    []Card
	flipped []int
	pending *resolution

	stageClearDue time.Duration
	effects       map[PowerUpID]time.Duration
	boxes         []rewardBox
	popups        []popup

	shopOpen         bool
	achievementsOpen bool

	achievements   []achieve.Achievement
	restartCount   int
	scoreSubmitted bool

	// internal clock
	now          time.Duration
	countdownAcc time.Duration
	elapsedAcc   time.Duration

	events []Event
}

// New builds a Game in Idle with a preview deck dealt. The intro and
// ambience cues fire immediately so the client can start them on load.
func New(cfg Config) *Game {
	rng := cfg.Rng
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	ach := cfg.Achievements
	if ach == nil {
		ach = achieve.Defaults()
	}
	g := &Game{
		rng:          rng,
		phase:        PhaseIdle,
		effects:      make(map[PowerUpID]time.Duration),
		achievements: ach,
		restartCount: cfg.RestartCount,
	}
	g.run = RunState{Level: 1, Stage: 1, TimeRemaining: StageTimeBudget, ExpMultiplier: 1, CoinMultiplier: 1}
	g.deck = NewDeck(rng)
	g.emitCue(audio.CueIntro)
	g.emitCue(audio.CueAtmosphere)
	return g
}

// Phase reports the coarse run state.
func (g *Game) Phase() Phase { return g.phase }

// RestartCount reports the cumulative start/restart count for this profile.
func (g *Game) RestartCount() int { return g.restartCount }

// Achievements returns a copy of the current achievement records.
func (g *Game) Achievements() []achieve.Achievement {
	out := make([]achieve.Achievement, len(g.achievements))
	copy(out, g.achievements)
	return out
}

// DrainEvents returns and clears the pending side-effect records.
func (g *Game) DrainEvents() []Event {
	ev := g.events
	g.events = nil
	return ev
}

// ----------------------------- intents -------------------------------------

// Start begins a fresh run from any phase: full RunState reset, new deck,
// all pending timers and effects cancelled. The cumulative restart counter
// increments on every call, including mid-run restarts.
func (g *Game) Start() {
	total := g.run.TotalTimeSpent
	g.run = RunState{
		Level:          1,
		Stage:          1,
		TimeRemaining:  StageTimeBudget,
		ExpMultiplier:  1,
		CoinMultiplier: 1,
		TotalTimeSpent: total,
	}
	g.deck = NewDeck(g.rng)
	g.flipped, g.pending = nil, nil
	g.effects = make(map[PowerUpID]time.Duration)
	g.boxes, g.popups = nil, nil
	g.shopOpen, g.achievementsOpen = false, false
	g.scoreSubmitted = false
	g.countdownAcc, g.elapsedAcc = 0, 0
	g.phase = PhaseActive

	g.restartCount++
	g.events = append(g.events, Event{Kind: EventRestartCounted, RestartCount: g.restartCount})
	g.emitCue(audio.CueInterface)
	g.evaluate()
}

// FlipCard flips the card at index i. The second flip of a selection arms a
// pending resolution; its scoring fires after the settle delay via Advance.
func (g *Game) FlipCard(i int) error {
	if g.phase != PhaseActive {
		return ErrNotActive
	}
	if g.overlayOpen() {
		return ErrOverlayOpen
	}
	if i < 0 || i >= len(g.deck) {
		return ErrInvalidIndex
	}
	if g.pending != nil {
		return ErrResolutionPending
	}
	if len(g.flipped) >= 2 {
		return ErrSelectionFull
	}
	if g.deck[i].Matched {
		return ErrCardUnavailable
	}
	for _, f := range g.flipped {
		if f == i {
			return ErrCardUnavailable
		}
	}

	g.flipped = append(g.flipped, i)
	if len(g.flipped) < 2 {
		return nil
	}

	a, b := g.flipped[0], g.flipped[1]
	match := g.deck[a].Symbol == g.deck[b].Symbol
	delay := MismatchResetDelay
	if match {
		delay = MatchSettleDelay
	}
	g.pending = &resolution{first: a, second: b, match: match, due: g.now + delay}
	return nil
}

// SetShopOpen opens or closes the upgrade shop overlay. Open overlays
// suspend the countdown and the elapsed/effect clocks.
func (g *Game) SetShopOpen(open bool) {
	if g.shopOpen == open {
		return
	}
	g.shopOpen = open
	g.emitCue(audio.CueInterface)
}

// SetAchievementsOpen opens or closes the achievements overlay.
func (g *Game) SetAchievementsOpen(open bool) {
	if g.achievementsOpen == open {
		return
	}
	g.achievementsOpen = open
	g.emitCue(audio.CueInterface)
}

// Purchase buys one unit of a power-up, rejecting with ErrInsufficientCoins
// (no state change) when coins fall short of the cost.
func (g *Game) Purchase(id PowerUpID) error {
	if g.phase != PhaseActive {
		return ErrNotActive
	}
	p, ok := lookupPowerUp(id)
	if !ok {
		return ErrUnknownPowerUp
	}
	if g.run.Coins < p.Cost {
		return ErrInsufficientCoins
	}
	g.run.Coins -= p.Cost
	g.run.OwnedPowerUps = append(g.run.OwnedPowerUps, id)
	g.emitCue(audio.CueInterface)
	return nil
}

// Activate consumes one owned unit and applies the effect. Re-activating a
// timed effect refreshes its remaining duration instead of stacking.
func (g *Game) Activate(id PowerUpID) error {
	if g.phase != PhaseActive {
		return ErrNotActive
	}
	p, ok := lookupPowerUp(id)
	if !ok {
		return ErrUnknownPowerUp
	}
	idx := -1
	for j, owned := range g.run.OwnedPowerUps {
		if owned == id {
			idx = j
			break
		}
	}
	if idx < 0 {
		return ErrPowerUpNotOwned
	}
	g.run.OwnedPowerUps = append(g.run.OwnedPowerUps[:idx], g.run.OwnedPowerUps[idx+1:]...)
	g.run.UsedUpgradesInRun = true
	g.emitCue(audio.CueInterface)

	switch id {
	case PowerUpFreeze:
		g.effects[id] = p.Duration
	case PowerUpMultiplier:
		g.effects[id] = p.Duration
		g.run.ExpMultiplier = RewardMultiplier
		g.run.CoinMultiplier = RewardMultiplier
	case PowerUpHint:
		g.revealHint()
	}
	return nil
}

// OpenBox opens the oldest pending reward box, granting its rolls. Returns
// the granted power-up ids.
func (g *Game) OpenBox() ([]PowerUpID, error) {
	if len(g.boxes) == 0 {
		return nil, ErrNoBox
	}
	box := g.boxes[0]
	g.boxes = g.boxes[1:]
	g.run.OwnedPowerUps = append(g.run.OwnedPowerUps, box.Rewards...)
	g.run.BoxesUnlockedInRun++
	g.emitCue(audio.CueBox)
	g.evaluate()
	return box.Rewards, nil
}

// Score is a finished run's leaderboard entry, claimed once per run.
type Score struct {
	Name      string
	Coins     int
	Stage     int
	TimeSpent int // seconds, whole session
}

// ClaimScore validates the name prompt for a completed run and marks the
// score as submitted so it cannot be claimed twice.
func (g *Game) ClaimScore(name string) (Score, error) {
	if g.phase != PhaseCompleted {
		return Score{}, ErrNotCompleted
	}
	if g.scoreSubmitted {
		return Score{}, ErrScoreSubmitted
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Score{}, ErrEmptyName
	}
	g.scoreSubmitted = true
	return Score{
		Name:      name,
		Coins:     g.run.Coins,
		Stage:     NumStages,
		TimeSpent: int(g.run.TotalTimeSpent / time.Second),
	}, nil
}

// ------------------------------ clock --------------------------------------

func (g *Game) frozen() bool {
	_, ok := g.effects[PowerUpFreeze]
	return ok
}

func (g *Game) overlayOpen() bool {
	return g.shopOpen || g.achievementsOpen || len(g.boxes) > 0
}

// countdownRunning: the main countdown accrues only in Active play with no
// freeze and no overlay. Stage clearing is a separate phase, so it suspends
// too.
func (g *Game) countdownRunning() bool {
	return g.phase == PhaseActive && !g.frozen() && !g.overlayOpen()
}

// clocksRunning: the elapsed-time counters and power-up effect timers keep
// running while frozen but stop for overlays and stage transitions.
func (g *Game) clocksRunning() bool {
	return g.phase == PhaseActive && !g.overlayOpen()
}

// Advance moves the internal clock forward by dt, firing every deadline in
// order. Eligibility for each accumulator is constant between deadlines
// because the step never crosses one.
func (g *Game) Advance(dt time.Duration) {
	g.fireDue()
	for dt > 0 {
		step := dt
		if d := g.nextDeadlineIn(); d > 0 && d < step {
			step = d
		}
		g.now += step
		if g.countdownRunning() {
			g.countdownAcc += step
		}
		if g.clocksRunning() {
			g.elapsedAcc += step
			for id := range g.effects {
				g.effects[id] -= step
			}
		}
		dt -= step
		g.fireDue()
	}
	g.prunePopups()
}

// nextDeadlineIn returns the time until the nearest scheduled event, or 0
// when nothing is scheduled.
func (g *Game) nextDeadlineIn() time.Duration {
	var next time.Duration
	add := func(d time.Duration) {
		if d <= 0 {
			return
		}
		if next == 0 || d < next {
			next = d
		}
	}
	if g.pending != nil {
		add(g.pending.due - g.now)
	}
	if g.phase == PhaseStageClearing {
		add(g.stageClearDue - g.now)
	}
	if g.countdownRunning() {
		add(time.Second - g.countdownAcc)
	}
	if g.clocksRunning() {
		add(time.Second - g.elapsedAcc)
		for _, rem := range g.effects {
			add(rem)
		}
	}
	return next
}

// fireDue applies every deadline that has come due, repeating until the
// state is quiescent (a fired event can arm or cancel others).
func (g *Game) fireDue() {
	for {
		fired := false

		if g.pending != nil && g.pending.due <= g.now {
			g.resolveSelection()
			fired = true
		}
		for g.countdownRunning() && g.countdownAcc >= time.Second {
			g.countdownAcc -= time.Second
			g.tickCountdown()
			fired = true
		}
		for g.clocksRunning() && g.elapsedAcc >= time.Second {
			g.elapsedAcc -= time.Second
			g.run.TimeSpentStage += time.Second
			g.run.TimeSpentRun += time.Second
			g.run.TotalTimeSpent += time.Second
			fired = true
		}
		for id, rem := range g.effects {
			if rem <= 0 {
				g.expireEffect(id)
				fired = true
			}
		}
		if g.phase == PhaseStageClearing && g.stageClearDue <= g.now {
			g.advanceStage()
			fired = true
		}

		if !fired {
			return
		}
	}
}

func (g *Game) tickCountdown() {
	g.run.TimeRemaining -= time.Second
	if g.run.TimeRemaining > 0 {
		return
	}
	g.run.TimeRemaining = 0
	g.lose()
}

// ---------------------------- transitions ----------------------------------

// resolveSelection applies the armed two-card resolution. Scoring is a
// single synchronous mutation, so no countdown tick can observe it
// half-applied.
func (g *Game) resolveSelection() {
	p := g.pending
	g.pending = nil
	if g.phase != PhaseActive {
		return
	}
	g.flipped = nil

	if !p.match {
		g.emitCue(audio.CueWrongMatch)
		return
	}

	g.deck[p.first].Matched, g.deck[p.first].Hinted = true, false
	g.deck[p.second].Matched, g.deck[p.second].Hinted = true, false
	g.run.MatchesInStage++
	g.run.MatchedCardsInRun++
	g.run.TimeRemaining += MatchTimeBonus
	g.emitCue(audio.CueMatch)

	cell := cellOf(p.second)
	coinGain := CoinsPerMatch * g.run.CoinMultiplier
	g.run.Coins += coinGain
	g.pushPopup(PopupCoinGain, fmt.Sprintf("+%d Coins", coinGain), cell, GainPopupDuration)

	expGain := ExpPerMatch * g.run.ExpMultiplier
	g.pushPopup(PopupExpGain, fmt.Sprintf("+%d EXP", expGain), cell, GainPopupDuration)
	g.gainExp(expGain)

	if g.run.MatchesInStage >= PairsPerStage {
		g.phase = PhaseStageClearing
		g.stageClearDue = g.now + StageClearDelay
	}
	g.evaluate()
}

// gainExp adds experience, carrying every full ExpPerLevel into a level-up.
// A single large gain can grant several levels.
func (g *Game) gainExp(n int) {
	g.run.Exp += n
	for g.run.Exp >= ExpPerLevel {
		g.run.Exp -= ExpPerLevel
		g.levelUp()
	}
}

func (g *Game) levelUp() {
	g.run.Level++
	g.emitCue(audio.CueLevelUp)
	g.pushPopup(PopupLevelUp, fmt.Sprintf("Level %d!", g.run.Level), nil, LevelUpPopupDuration)

	rolls := 1
	if g.run.Level%BonusBoxLevelStep == 0 {
		rolls = BonusBoxRolls
	}
	rewards := make([]PowerUpID, rolls)
	for i := range rewards {
		rewards[i] = rewardKinds[g.rng.IntN(len(rewardKinds))]
	}
	g.boxes = append(g.boxes, rewardBox{Level: g.run.Level, Rewards: rewards})
}

func (g *Game) advanceStage() {
	if g.run.Stage < NumStages {
		g.run.Stage++
		g.deck = NewDeck(g.rng)
		g.flipped, g.pending = nil, nil
		g.run.MatchesInStage = 0
		g.run.TimeSpentStage = 0
		g.run.TimeRemaining += StageTimeBudget
		g.phase = PhaseActive
		return
	}
	g.complete()
}

func (g *Game) complete() {
	g.phase = PhaseCompleted
	g.cancelRunTimers()
	g.evaluate()
}

func (g *Game) lose() {
	g.phase = PhaseLost
	g.cancelRunTimers()
	g.emitCue(audio.CueGameOver)
	g.evaluate()
}

// cancelRunTimers drops everything tied to the Active phase: the pending
// resolution, timed effects (multipliers reverted), unopened boxes, open
// overlays and the tick accumulators.
func (g *Game) cancelRunTimers() {
	g.pending = nil
	g.flipped = nil
	g.effects = make(map[PowerUpID]time.Duration)
	g.run.ExpMultiplier, g.run.CoinMultiplier = 1, 1
	g.boxes = nil
	g.shopOpen, g.achievementsOpen = false, false
	g.countdownAcc, g.elapsedAcc = 0, 0
}

func (g *Game) expireEffect(id PowerUpID) {
	delete(g.effects, id)
	if id == PowerUpMultiplier {
		g.run.ExpMultiplier = 1
		g.run.CoinMultiplier = 1
	}
}

// revealHint marks one fully unmatched, not-yet-hinted pair. When every
// remaining pair is already hinted (or fewer than one pair remains) it is a
// no-op; the activation is still consumed.
func (g *Game) revealHint() {
	bySym := make(map[Symbol][]int)
	for i, c := range g.deck {
		if !c.Matched {
			bySym[c.Symbol] = append(bySym[c.Symbol], i)
		}
	}
	for i := range g.deck {
		c := g.deck[i]
		if c.Matched {
			continue
		}
		pair := bySym[c.Symbol]
		if len(pair) != 2 {
			continue
		}
		if g.deck[pair[0]].Hinted && g.deck[pair[1]].Hinted {
			continue
		}
		g.deck[pair[0]].Hinted = true
		g.deck[pair[1]].Hinted = true
		return
	}
}

// --------------------------- achievements ----------------------------------

// evaluate re-runs the achievement evaluator over current stats. Unlocks are
// monotonic and the evaluator only reports new ones, so repeated calls with
// unchanged inputs emit nothing.
func (g *Game) evaluate() {
	stats := achieve.Stats{
		Level:        g.run.Level,
		MatchedInRun: g.run.MatchedCardsInRun,
		Coins:        g.run.Coins,
		BoxesInRun:   g.run.BoxesUnlockedInRun,
		RestartCount: g.restartCount,
		RunSeconds:   int(g.run.TimeSpentRun / time.Second),
		Completed:    g.phase == PhaseCompleted,
		UsedUpgrades: g.run.UsedUpgradesInRun,
	}
	newly := achieve.Evaluate(g.achievements, stats)
	for _, a := range newly {
		g.emitCue(audio.CueAchievement)
		g.pushPopup(PopupAchievement, a.Name, nil, AchievementPopupDuration)
		g.events = append(g.events, Event{Kind: EventAchievementUnlocked, Achievement: a})
	}
	if len(newly) > 0 {
		g.events = append(g.events, Event{Kind: EventAchievementsChanged})
	}
}

// ------------------------------ output -------------------------------------

func (g *Game) emitCue(c audio.Cue) {
	g.events = append(g.events, Event{Kind: EventCue, Cue: c})
}

func (g *Game) pushPopup(kind PopupKind, text string, cell *GridCell, ttl time.Duration) {
	g.popups = append(g.popups, popup{kind: kind, text: text, cell: cell, expiresAt: g.now + ttl})
}

func (g *Game) prunePopups() {
	kept := g.popups[:0]
	for _, p := range g.popups {
		if p.expiresAt > g.now {
			kept = append(kept, p)
		}
	}
	g.popups = kept
}

func cellOf(index int) *GridCell {
	return &GridCell{Row: index / GridCols, Col: index % GridCols}
}

// Snapshot projects the full UI state. Face-down cards carry no symbol.
func (g *Game) Snapshot() Snapshot {
	faceUp := make(map[int]bool, len(g.flipped))
	for _, i := range g.flipped {
		faceUp[i] = true
	}

	cards := make([]CardView, len(g.deck))
	for i, c := range g.deck {
		cv := CardView{ID: c.ID, Matched: c.Matched, Hinted: c.Hinted, FaceUp: c.Matched || faceUp[i]}
		if cv.FaceUp {
			cv.Symbol = c.Symbol.String()
		}
		cards[i] = cv
	}

	effects := make([]ActiveEffectView, 0, len(g.effects))
	for id, rem := range g.effects {
		secs := int((rem + time.Second - 1) / time.Second)
		effects = append(effects, ActiveEffectView{ID: id, SecondsRemaining: secs})
	}
	sort.Slice(effects, func(i, j int) bool { return effects[i].ID < effects[j].ID })

	var box *BoxView
	if len(g.boxes) > 0 {
		box = &BoxView{Level: g.boxes[0].Level, Rewards: len(g.boxes[0].Rewards)}
	}

	popups := make([]PopupView, 0, len(g.popups))
	for _, p := range g.popups {
		if p.expiresAt <= g.now {
			continue
		}
		popups = append(popups, PopupView{
			Kind:        p.kind,
			Text:        p.text,
			Cell:        p.cell,
			RemainingMs: int((p.expiresAt - g.now) / time.Millisecond),
		})
	}

	owned := make([]PowerUpID, len(g.run.OwnedPowerUps))
	copy(owned, g.run.OwnedPowerUps)

	flipped := make([]int, len(g.flipped))
	copy(flipped, g.flipped)

	return Snapshot{
		Phase:             g.phase,
		Level:             g.run.Level,
		Exp:               g.run.Exp,
		Coins:             g.run.Coins,
		Stage:             g.run.Stage,
		TimeRemaining:     int(g.run.TimeRemaining / time.Second),
		TimeSpent:         int(g.run.TimeSpentRun / time.Second),
		TotalTimeSpent:    int(g.run.TotalTimeSpent / time.Second),
		MatchesInStage:    g.run.MatchesInStage,
		MatchedCardsInRun: g.run.MatchedCardsInRun,
		Cards:             cards,
		Flipped:           flipped,
		ResolutionPending: g.pending != nil,
		Frozen:            g.frozen(),
		ExpMultiplier:     g.run.ExpMultiplier,
		CoinMultiplier:    g.run.CoinMultiplier,
		OwnedPowerUps:     owned,
		ActiveEffects:     effects,
		ShopOpen:          g.shopOpen,
		AchievementsOpen:  g.achievementsOpen,
		Box:               box,
		Popups:            popups,
		Achievements:      g.Achievements(),
		RestartCount:      g.restartCount,
		ScoreSubmitted:    g.scoreSubmitted,
	}
}
