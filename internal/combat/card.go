package combat

import (
	"fmt"
	"strings"

	"github.com/paulhankin/poker"
)

// Suit of a card. The order matches the evaluator's suit numbering.
type Suit uint8

const (
	Clubs Suit = iota
	Diamonds
	Hearts
	Spades
)

// Rank of a card, Two through Ace.
type Rank uint8

const (
	Two Rank = iota + 2
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

const (
	rankChars = "23456789TJQKA"
	suitChars = "cdhs"
)

// Card is a single playing card.
type Card struct {
	Rank Rank
	Suit Suit
}

// NewCard creates a card.
func NewCard(rank Rank, suit Suit) Card {
	return Card{Rank: rank, Suit: suit}
}

// Valid reports whether the card is a real card of the 52-card deck.
func (c Card) Valid() bool {
	return c.Rank >= Two && c.Rank <= Ace && c.Suit <= Spades
}

// Index maps the card to 0..51.
func (c Card) Index() int {
	return int(c.Rank-Two)*4 + int(c.Suit)
}

// CardFromIndex is the inverse of Index.
func CardFromIndex(i int) Card {
	return Card{Rank: Rank(i/4) + Two, Suit: Suit(i % 4)}
}

func (c Card) String() string {
	if !c.Valid() {
		return "??"
	}
	return string([]byte{rankChars[c.Rank-Two], suitChars[c.Suit]})
}

// Poker converts the card to the evaluator's representation, where aces are rank 1.
func (c Card) Poker() (poker.Card, error) {
	if !c.Valid() {
		return 0, fmt.Errorf("invalid card %d/%d", c.Rank, c.Suit)
	}
	rank := int(c.Rank)
	if c.Rank == Ace {
		rank = 1
	}
	return poker.MakeCard(poker.Suit(c.Suit), poker.Rank(rank))
}

// ParseCard parses a two character card such as "As" or "Td".
func ParseCard(s string) (Card, error) {
	if len(s) != 2 {
		return Card{}, fmt.Errorf("invalid card %q", s)
	}
	r := strings.IndexByte(rankChars, upper(s[0]))
	if r < 0 {
		return Card{}, fmt.Errorf("invalid rank %q in card %q", s[0], s)
	}
	su := strings.IndexByte(suitChars, lower(s[1]))
	if su < 0 {
		return Card{}, fmt.Errorf("invalid suit %q in card %q", s[1], s)
	}
	return Card{Rank: Rank(r) + Two, Suit: Suit(su)}, nil
}

// ParseCards parses concatenated card notation, for example "AsKd" or "As Kd 2c".
func ParseCards(s string) ([]Card, error) {
	s = strings.ReplaceAll(s, " ", "")
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("invalid card string length: %d (must be even)", len(s))
	}
	cards := make([]Card, 0, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		c, err := ParseCard(s[i : i+2])
		if err != nil {
			return nil, fmt.Errorf("card at position %d: %w", i, err)
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// MustParseCards parses cards and panics on error (for tests)
func MustParseCards(s string) []Card {
	cards, err := ParseCards(s)
	if err != nil {
		panic(fmt.Sprintf("failed to parse cards '%s': %v", s, err))
	}
	return cards
}

// FormatCards renders cards separated by spaces.
func FormatCards(cards []Card) string {
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b - 'A' + 'a'
	}
	return b
}
