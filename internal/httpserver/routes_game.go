// internal/httpserver/routes_game.go
//
// Game session endpoints. Each session owns one game.Game behind a mutex;
// the game's deterministic clock is advanced lazily from wall time on every
// touch, then intents are applied and side-effect events drained (cue log,
// achievement persistence, restart counter).

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/satoshimatch/go-server/internal/achieve"
	"github.com/satoshimatch/go-server/internal/game"
	"github.com/satoshimatch/go-server/internal/leaderboard"
	"github.com/satoshimatch/go-server/internal/store"
)

// Sessions idle longer than this are reaped.
const sessionTTL = 30 * time.Minute

type session struct {
	id      string
	profile string

	mu    sync.Mutex
	g     *game.Game
	last  time.Time
	sound bool
}

// gameServer owns the live sessions and the leaderboard.
type gameServer struct {
	srv   *Server
	kv    store.KV
	board *leaderboard.Board

	mu       sync.Mutex
	sessions map[string]*session

	now func() time.Time
}

func (s *Server) mountGame(r chi.Router) {
	gs := &gameServer{
		srv:      s,
		kv:       s.kv,
		board:    leaderboard.New(s.kv),
		sessions: make(map[string]*session),
		now:      time.Now,
	}

	r.Post("/game/new", gs.handleNew)
	r.Get("/game/{id}", gs.withSession(gs.handleSnapshot))
	r.Post("/game/{id}/start", gs.withSession(gs.handleStart))
	r.Post("/game/{id}/flip", gs.withSession(gs.handleFlip))
	r.Post("/game/{id}/shop", gs.withSession(gs.handleShop))
	r.Post("/game/{id}/achievements", gs.withSession(gs.handleAchievementsOverlay))
	r.Post("/game/{id}/buy", gs.withSession(gs.handleBuy))
	r.Post("/game/{id}/activate", gs.withSession(gs.handleActivate))
	r.Post("/game/{id}/box/open", gs.withSession(gs.handleOpenBox))
	r.Post("/game/{id}/score", gs.withSession(gs.handleScore))

	r.Get("/leaderboard", gs.handleLeaderboard)
	r.Get("/achievements", gs.handleAchievements)
	r.Get("/achievements/{id}/reward", gs.handleReward)
	r.Get("/powerups", gs.handlePowerUps)
	r.Post("/sound", gs.handleSound)

	go gs.reapLoop()
}

// ------------------------------ sessions -----------------------------------

// handleNew builds a game seeded from the profile's persisted achievements,
// restart counter and sound preference.
func (gs *gameServer) handleNew(w http.ResponseWriter, r *http.Request) {
	profile := gs.srv.profileID(w, r)
	ctx := r.Context()

	var saved []achieve.Achievement
	store.LoadJSON(ctx, gs.kv, profile, store.KeyAchievements, &saved)

	restarts := 0
	store.LoadJSON(ctx, gs.kv, profile, store.KeyRestartCount, &restarts)

	sound := true
	store.LoadJSON(ctx, gs.kv, profile, store.KeySoundsEnabled, &sound)

	sess := &session{
		id:      uuid.NewString(),
		profile: profile,
		g: game.New(game.Config{
			Achievements: achieve.Merge(saved),
			RestartCount: restarts,
		}),
		last:  gs.now(),
		sound: sound,
	}

	gs.mu.Lock()
	gs.sessions[sess.id] = sess
	gs.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	gs.applyEvents(sess)
	log.Info().Str("session", sess.id).Str("profile", profile).Msg("game created")
	gs.writeSnapshot(w, sess)
}

// withSession resolves the {id} session, advances its clock from wall time,
// runs the handler under the session mutex, drains events, and replies with
// the fresh snapshot unless the handler already wrote a response.
func (gs *gameServer) withSession(h func(sess *session, w http.ResponseWriter, r *http.Request) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		gs.mu.Lock()
		sess := gs.sessions[id]
		gs.mu.Unlock()
		if sess == nil {
			http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
			return
		}

		sess.mu.Lock()
		defer sess.mu.Unlock()

		now := gs.now()
		if dt := now.Sub(sess.last); dt > 0 {
			sess.g.Advance(dt)
		}
		sess.last = now

		done := h(sess, w, r)
		gs.applyEvents(sess)
		if !done {
			gs.writeSnapshot(w, sess)
		}
	}
}

func (gs *gameServer) writeSnapshot(w http.ResponseWriter, sess *session) {
	snap := sess.g.Snapshot()
	_ = json.NewEncoder(w).Encode(map[string]any{
		"sessionId": sess.id,
		"sound":     sess.sound,
		"state":     snap,
	})
}

// applyEvents performs the drained side effects. Persistence failures are
// logged and dropped; they never touch game state. Caller holds sess.mu.
func (gs *gameServer) applyEvents(sess *session) {
	ctx := context.Background()
	for _, ev := range sess.g.DrainEvents() {
		switch ev.Kind {
		case game.EventCue:
			if sess.sound {
				log.Debug().Str("session", sess.id).Str("cue", string(ev.Cue)).Msg("cue")
			}
		case game.EventAchievementUnlocked:
			log.Info().
				Str("session", sess.id).
				Str("profile", sess.profile).
				Str("achievement", string(ev.Achievement.ID)).
				Msg("achievement unlocked")
		case game.EventAchievementsChanged:
			store.SaveJSON(ctx, gs.kv, sess.profile, store.KeyAchievements, sess.g.Achievements())
		case game.EventRestartCounted:
			store.SaveJSON(ctx, gs.kv, sess.profile, store.KeyRestartCount, ev.RestartCount)
		}
	}
}

// reapLoop drops sessions idle past sessionTTL.
func (gs *gameServer) reapLoop() {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()
	for range t.C {
		cutoff := gs.now().Add(-sessionTTL)
		gs.mu.Lock()
		for id, sess := range gs.sessions {
			sess.mu.Lock()
			idle := sess.last.Before(cutoff)
			sess.mu.Unlock()
			if idle {
				delete(gs.sessions, id)
				log.Debug().Str("session", id).Msg("session reaped")
			}
		}
		gs.mu.Unlock()
	}
}

// ------------------------------- intents -----------------------------------

func (gs *gameServer) handleSnapshot(sess *session, w http.ResponseWriter, r *http.Request) bool {
	return false
}

func (gs *gameServer) handleStart(sess *session, w http.ResponseWriter, r *http.Request) bool {
	sess.g.Start()
	return false
}

func (gs *gameServer) handleFlip(sess *session, w http.ResponseWriter, r *http.Request) bool {
	var body struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return true
	}
	if err := sess.g.FlipCard(body.Index); err != nil {
		return writeGameError(w, err)
	}
	return false
}

func (gs *gameServer) handleShop(sess *session, w http.ResponseWriter, r *http.Request) bool {
	var body struct {
		Open bool `json:"open"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return true
	}
	sess.g.SetShopOpen(body.Open)
	return false
}

func (gs *gameServer) handleAchievementsOverlay(sess *session, w http.ResponseWriter, r *http.Request) bool {
	var body struct {
		Open bool `json:"open"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return true
	}
	sess.g.SetAchievementsOpen(body.Open)
	return false
}

func (gs *gameServer) handleBuy(sess *session, w http.ResponseWriter, r *http.Request) bool {
	var body struct {
		PowerUp game.PowerUpID `json:"powerUp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return true
	}
	if err := sess.g.Purchase(body.PowerUp); err != nil {
		return writeGameError(w, err)
	}
	return false
}

func (gs *gameServer) handleActivate(sess *session, w http.ResponseWriter, r *http.Request) bool {
	var body struct {
		PowerUp game.PowerUpID `json:"powerUp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return true
	}
	if err := sess.g.Activate(body.PowerUp); err != nil {
		return writeGameError(w, err)
	}
	return false
}

func (gs *gameServer) handleOpenBox(sess *session, w http.ResponseWriter, r *http.Request) bool {
	rewards, err := sess.g.OpenBox()
	if err != nil {
		return writeGameError(w, err)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"rewards": rewards,
		"state":   sess.g.Snapshot(),
	})
	return true
}

func (gs *gameServer) handleScore(sess *session, w http.ResponseWriter, r *http.Request) bool {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return true
	}
	score, err := sess.g.ClaimScore(body.Name)
	if err != nil {
		return writeGameError(w, err)
	}
	entries := gs.board.Add(r.Context(), leaderboard.Entry{
		Name:      score.Name,
		Coins:     score.Coins,
		Stage:     score.Stage,
		TimeSpent: score.TimeSpent,
	})
	log.Info().Str("name", score.Name).Int("coins", score.Coins).Msg("score submitted")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"leaderboard": entries,
		"state":       sess.g.Snapshot(),
	})
	return true
}

// writeGameError maps a rejected intent to a 4xx JSON body.
func writeGameError(w http.ResponseWriter, err error) bool {
	code := http.StatusConflict
	switch {
	case errors.Is(err, game.ErrInvalidIndex),
		errors.Is(err, game.ErrUnknownPowerUp),
		errors.Is(err, game.ErrEmptyName):
		code = http.StatusBadRequest
	case errors.Is(err, game.ErrInsufficientCoins):
		code = http.StatusPaymentRequired
	}
	http.Error(w, `{"error":"`+err.Error()+`"}`, code)
	return true
}

// ------------------------- profile-level endpoints -------------------------

func (gs *gameServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(gs.board.Top(r.Context()))
}

// handleAchievements returns the profile's persisted achievement records,
// merged over the defaults so new achievements appear locked.
func (gs *gameServer) handleAchievements(w http.ResponseWriter, r *http.Request) {
	profile := gs.srv.profileID(w, r)
	var saved []achieve.Achievement
	store.LoadJSON(r.Context(), gs.kv, profile, store.KeyAchievements, &saved)
	_ = json.NewEncoder(w).Encode(achieve.Merge(saved))
}

// handleReward resolves an achievement's collectible image, 403 while the
// profile has not unlocked it.
func (gs *gameServer) handleReward(w http.ResponseWriter, r *http.Request) {
	id := achieve.ID(chi.URLParam(r, "id"))
	profile := gs.srv.profileID(w, r)

	var saved []achieve.Achievement
	store.LoadJSON(r.Context(), gs.kv, profile, store.KeyAchievements, &saved)

	for _, a := range achieve.Merge(saved) {
		if a.ID != id {
			continue
		}
		if !a.Unlocked {
			http.Error(w, `{"error":"achievement locked"}`, http.StatusForbidden)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":          string(a.ID),
			"name":        a.Name,
			"rewardImage": a.RewardImage,
		})
		return
	}
	http.Error(w, `{"error":"unknown achievement"}`, http.StatusNotFound)
}

func (gs *gameServer) handlePowerUps(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(game.Catalog())
}

// handleSound persists the profile's sound preference and applies it to the
// profile's live sessions.
func (gs *gameServer) handleSound(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	profile := gs.srv.profileID(w, r)
	store.SaveJSON(r.Context(), gs.kv, profile, store.KeySoundsEnabled, body.Enabled)

	gs.mu.Lock()
	for _, sess := range gs.sessions {
		if sess.profile == profile {
			sess.mu.Lock()
			sess.sound = body.Enabled
			sess.mu.Unlock()
		}
	}
	gs.mu.Unlock()

	_ = json.NewEncoder(w).Encode(map[string]bool{"enabled": body.Enabled})
}
