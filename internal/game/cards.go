// internal/game/cards.go
//
// Card deck generation for a single stage.
// A stage board is 12 cards: each of the 6 crypto symbols exactly twice,
// in uniformly random order.

package game

import "math/rand/v2"

// Symbol identifies a card face. It is a closed set resolved to an icon
// at the presentation boundary; core logic never sees free-form strings.
type Symbol int

const (
	SymbolX Symbol = iota
	SymbolTron
	SymbolEthereum
	SymbolSolana
	SymbolBitcoin
	SymbolBinance

	numSymbols
)

var symbolNames = [numSymbols]string{"x", "tron", "ethereum", "solana", "bitcoin", "binance"}

func (s Symbol) String() string {
	if s < 0 || s >= numSymbols {
		return "unknown"
	}
	return symbolNames[s]
}

// Symbols returns the fixed palette, one entry per symbol.
func Symbols() []Symbol {
	out := make([]Symbol, numSymbols)
	for i := range out {
		out[i] = Symbol(i)
	}
	return out
}

// Card is one tile on the board. Matched is permanent for the life of the
// stage; Hinted is set by the hint power-up and cleared when the pair is
// consumed by a match.
type Card struct {
	ID      int
	Symbol  Symbol
	Matched bool
	Hinted  bool
}

// NewDeck builds a freshly shuffled 12-card stage deck. Card IDs are stable
// per symbol (2*s and 2*s+1) regardless of shuffle order.
func NewDeck(rng *rand.Rand) []Card {
	deck := make([]Card, 0, CardsPerStage)
	for s := Symbol(0); s < numSymbols; s++ {
		deck = append(deck,
			Card{ID: int(s) * 2, Symbol: s},
			Card{ID: int(s)*2 + 1, Symbol: s},
		)
	}
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}
