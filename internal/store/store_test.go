package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	_, ok, err := kv.Get(ctx, "p1", KeyRestartCount)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, kv.Put(ctx, "p1", KeyRestartCount, []byte("7")))
	raw, ok, err := kv.Get(ctx, "p1", KeyRestartCount)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("7"), raw)

	// Overwrite replaces.
	require.NoError(t, kv.Put(ctx, "p1", KeyRestartCount, []byte("8")))
	raw, _, _ = kv.Get(ctx, "p1", KeyRestartCount)
	require.Equal(t, []byte("8"), raw)
}

func TestMemoryProfileIsolation(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	require.NoError(t, kv.Put(ctx, "alice", KeySoundsEnabled, []byte("true")))

	_, ok, err := kv.Get(ctx, "bob", KeySoundsEnabled)
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, _ = kv.Get(ctx, GlobalProfile, KeySoundsEnabled)
	require.False(t, ok)
}

func TestMemoryCopiesValues(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	in := []byte(`{"a":1}`)
	require.NoError(t, kv.Put(ctx, "p", "k", in))
	in[0] = 'X'

	out, ok, _ := kv.Get(ctx, "p", "k")
	require.True(t, ok)
	require.Equal(t, []byte(`{"a":1}`), out)

	out[0] = 'Y'
	again, _, _ := kv.Get(ctx, "p", "k")
	require.Equal(t, []byte(`{"a":1}`), again)
}

func TestLoadJSONDefaultsWin(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	// Missing key leaves the default alone.
	count := 42
	require.False(t, LoadJSON(ctx, kv, "p", KeyRestartCount, &count))
	require.Equal(t, 42, count)

	// Corrupt payload too.
	require.NoError(t, kv.Put(ctx, "p", KeyRestartCount, []byte("{not json")))
	require.False(t, LoadJSON(ctx, kv, "p", KeyRestartCount, &count))
	require.Equal(t, 42, count)

	// A good value decodes.
	SaveJSON(ctx, kv, "p", KeyRestartCount, 7)
	require.True(t, LoadJSON(ctx, kv, "p", KeyRestartCount, &count))
	require.Equal(t, 7, count)
}

func TestSaveLoadJSONStructs(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	type pref struct {
		Enabled bool `json:"enabled"`
	}
	SaveJSON(ctx, kv, "p", KeySoundsEnabled, pref{Enabled: true})

	var got pref
	require.True(t, LoadJSON(ctx, kv, "p", KeySoundsEnabled, &got))
	require.True(t, got.Enabled)
}
