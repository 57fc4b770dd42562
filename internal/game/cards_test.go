package game

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDeckComposition(t *testing.T) {
	for seed := uint64(0); seed < 20; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed+1))
		deck := NewDeck(rng)
		require.Len(t, deck, CardsPerStage)

		bySymbol := map[Symbol]int{}
		ids := map[int]bool{}
		for _, c := range deck {
			bySymbol[c.Symbol]++
			require.False(t, ids[c.ID], "duplicate card id %d", c.ID)
			ids[c.ID] = true
			require.False(t, c.Matched)
			require.False(t, c.Hinted)
		}
		require.Len(t, bySymbol, int(numSymbols))
		for s, n := range bySymbol {
			require.Equal(t, 2, n, "symbol %s", s)
		}
	}
}

func TestNewDeckStableIDsPerSymbol(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	deck := NewDeck(rng)
	for _, c := range deck {
		require.Equal(t, c.Symbol, Symbol(c.ID/2))
	}
}

func TestNewDeckShuffleDeterministicPerSeed(t *testing.T) {
	a := NewDeck(rand.New(rand.NewPCG(42, 1)))
	b := NewDeck(rand.New(rand.NewPCG(42, 1)))
	require.Equal(t, a, b)
}

func TestSymbolString(t *testing.T) {
	require.Equal(t, "bitcoin", SymbolBitcoin.String())
	require.Equal(t, "unknown", Symbol(99).String())
	require.Len(t, Symbols(), int(numSymbols))
}
