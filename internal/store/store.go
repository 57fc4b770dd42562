// internal/store/store.go
//
// Persistence adapter: string-keyed JSON values scoped to a profile (the
// server-side stand-in for one browser's local storage). Implementations may
// be backed by memory (this file) or SQLite (sqlite.go).
//
// Writes are fire-and-forget from the game's point of view: callers log
// failures and keep playing. Reads of corrupt or missing data fall back to
// defaults via LoadJSON.

package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// Well-known keys, matching the web client's local storage names.
const (
	KeyLeaderboard   = "satoshiMatchLeaderboard"
	KeyAchievements  = "satoshiMatchAchievements"
	KeyRestartCount  = "satoshiMatchRestartCount"
	KeySoundsEnabled = "satoshiMatchSoundsEnabled"
)

// GlobalProfile scopes entries shared by everyone (the leaderboard).
const GlobalProfile = "global"

// KV is the persistence interface for profile-scoped JSON snapshots.
type KV interface {
	// Get retrieves the raw value. ok is false when the key is absent.
	Get(ctx context.Context, profile, key string) (value []byte, ok bool, err error)

	// Put persists or replaces the value.
	Put(ctx context.Context, profile, key string, value []byte) error
}

// LoadJSON reads and decodes a stored value into v. Missing keys, read
// errors and corrupt payloads all report false and leave v untouched, so the
// caller's default wins.
func LoadJSON(ctx context.Context, kv KV, profile, key string, v any) bool {
	raw, ok, err := kv.Get(ctx, profile, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("kv read failed, using default")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("corrupt kv value, using default")
		return false
	}
	return true
}

// SaveJSON encodes and persists v. Failures are logged, never fatal.
func SaveJSON(ctx context.Context, kv KV, profile, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("kv encode failed")
		return
	}
	if err := kv.Put(ctx, profile, key, raw); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("kv write failed")
	}
}

// memory is a map-based KV for tests and durability-free runs.
type memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory constructs an in-memory KV.
func NewMemory() KV {
	return &memory{data: make(map[string][]byte)}
}

func memKey(profile, key string) string { return profile + "|" + key }

func (m *memory) Get(ctx context.Context, profile, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[memKey(profile, key)]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *memory) Put(ctx context.Context, profile, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.data[memKey(profile, key)] = v
	return nil
}
