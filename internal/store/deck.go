package store

import (
	rand "math/rand/v2"

	"github.com/lox/petpoker/internal/combat"
)

// Deck is a 52-card deck dealt from the top.
type Deck struct {
	cards []combat.Card
	rng   *rand.Rand
}

// NewDeck creates a full deck in index order. Call Shuffle before dealing.
func NewDeck(rng *rand.Rand) *Deck {
	d := &Deck{cards: make([]combat.Card, 0, 52), rng: rng}
	d.fill()
	return d
}

// newStackedDeck deals cards in the given order, followed by the rest of the
// deck shuffled.
func newStackedDeck(rng *rand.Rand, top []combat.Card) *Deck {
	d := NewDeck(rng)
	d.Shuffle()

	used := make(map[combat.Card]bool, len(top))
	for _, c := range top {
		used[c] = true
	}
	rest := d.cards[:0]
	for _, c := range d.cards {
		if !used[c] {
			rest = append(rest, c)
		}
	}
	d.cards = append(append([]combat.Card(nil), top...), rest...)
	return d
}

func (d *Deck) fill() {
	d.cards = d.cards[:0]
	for i := 0; i < 52; i++ {
		d.cards = append(d.cards, combat.CardFromIndex(i))
	}
}

// Shuffle randomizes the order of the remaining cards.
func (d *Deck) Shuffle() {
	d.rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// Deal removes and returns the top card.
func (d *Deck) Deal() (combat.Card, bool) {
	if len(d.cards) == 0 {
		return combat.Card{}, false
	}
	c := d.cards[0]
	d.cards = d.cards[1:]
	return c, true
}

// DealN deals up to n cards.
func (d *Deck) DealN(n int) []combat.Card {
	n = min(n, len(d.cards))
	out := make([]combat.Card, 0, n)
	for i := 0; i < n; i++ {
		c, _ := d.Deal()
		out = append(out, c)
	}
	return out
}

func (d *Deck) Remaining() int {
	return len(d.cards)
}
