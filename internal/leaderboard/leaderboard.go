// internal/leaderboard/leaderboard.go
//
// Local leaderboard: a global top-10 list ordered by coins descending,
// persisted as one JSON value in the KV store. A corrupt or missing
// snapshot reads back as an empty board.

package leaderboard

import (
	"context"
	"sort"

	"github.com/satoshimatch/go-server/internal/store"
)

// MaxEntries caps the persisted list.
const MaxEntries = 10

// Entry is one finished run on the board.
type Entry struct {
	Name      string `json:"name"`
	Coins     int    `json:"coins"`
	Stage     int    `json:"stage"`
	TimeSpent int    `json:"timeSpent"` // seconds
}

// Board reads and writes the shared leaderboard.
type Board struct {
	kv store.KV
}

func New(kv store.KV) *Board {
	return &Board{kv: kv}
}

// Top returns the current list, best first. Never errors; bad data reads as
// empty.
func (b *Board) Top(ctx context.Context) []Entry {
	var entries []Entry
	store.LoadJSON(ctx, b.kv, store.GlobalProfile, store.KeyLeaderboard, &entries)
	return entries
}

// Add inserts an entry, re-sorts by coins descending and truncates to
// MaxEntries, then persists. The resulting list is returned even when the
// write fails, so the run keeps its in-memory board.
func (b *Board) Add(ctx context.Context, e Entry) []Entry {
	entries := append(b.Top(ctx), e)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Coins > entries[j].Coins })
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	store.SaveJSON(ctx, b.kv, store.GlobalProfile, store.KeyLeaderboard, entries)
	return entries
}
