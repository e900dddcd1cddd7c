package equity

import (
	"fmt"

	"github.com/lox/petpoker/internal/combat"
	"github.com/paulhankin/poker"
)

// Score ranks the best five-card hand from two hole cards and a full board.
// Higher scores are better.
func Score(hole, board []combat.Card) (int16, error) {
	hand, err := seven(hole, board)
	if err != nil {
		return 0, err
	}
	return poker.Eval7(&hand), nil
}

// Compare returns 1 if a beats b on board, -1 if b wins, and 0 for a tie.
func Compare(a, b, board []combat.Card) (int, error) {
	sa, err := Score(a, board)
	if err != nil {
		return 0, fmt.Errorf("first hand: %w", err)
	}
	sb, err := Score(b, board)
	if err != nil {
		return 0, fmt.Errorf("second hand: %w", err)
	}
	switch {
	case sa > sb:
		return 1, nil
	case sa < sb:
		return -1, nil
	}
	return 0, nil
}

// Describe names the hand, for example "pair of kings".
func Describe(hole, board []combat.Card) (string, error) {
	hand, err := seven(hole, board)
	if err != nil {
		return "", err
	}
	return poker.Describe(hand[:])
}

func seven(hole, board []combat.Card) ([7]poker.Card, error) {
	var hand [7]poker.Card
	if len(board) != 5 {
		return hand, fmt.Errorf("%w: showdown needs 5 community cards, got %d", ErrInvalidCards, len(board))
	}
	if _, err := usedSet(hole, board); err != nil {
		return hand, err
	}
	for i, c := range hole {
		hand[i] = pokerDeck[c.Index()]
	}
	for i, c := range board {
		hand[2+i] = pokerDeck[c.Index()]
	}
	return hand, nil
}
